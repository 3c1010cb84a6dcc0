package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// UnitOfWork manages MongoDB transactions. Transactions need a replica set;
// standalone deployments use NoTransaction instead.
type UnitOfWork struct {
	client *mongo.Client
}

// NewUnitOfWork creates a new Unit of Work instance
func NewUnitOfWork(client *mongo.Client) *UnitOfWork {
	return &UnitOfWork{
		client: client,
	}
}

// WithTransaction executes fn within a MongoDB transaction.
// If fn returns an error, the transaction is aborted. fn may be retried on
// transient errors, so it must not have effects outside the database.
func (uow *UnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := uow.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})

	return err
}

// Transactional reports that writes inside WithTransaction are atomic
func (uow *UnitOfWork) Transactional() bool { return true }

// NoTransaction runs the work directly; callers compensate on failure
type NoTransaction struct{}

func (NoTransaction) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (NoTransaction) Transactional() bool { return false }
