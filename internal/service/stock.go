package service

import (
	"context"

	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockLedger is the only writer of variant stock
type StockLedger struct {
	products repository.ProductRepository
	log      *logrus.Logger
}

func NewStockLedger(products repository.ProductRepository, logger *logrus.Logger) *StockLedger {
	return &StockLedger{products: products, log: logger}
}

// Reserve takes quantity units out of stock in one conditional update
func (l *StockLedger) Reserve(ctx context.Context, variantID primitive.ObjectID, quantity int) error {
	if quantity <= 0 {
		return apperrors.Validation("quantity must be positive")
	}
	if err := l.products.DecrementStock(ctx, variantID, quantity); err != nil {
		if apperrors.Is(err, apperrors.ErrOutOfStock) {
			l.log.Warnf("Use Case: Stock reservation of %d for variant %s rejected: insufficient stock", quantity, variantID.Hex())
		}
		return err
	}
	l.log.Infof("Use Case: Reserved %d unit(s) of variant %s", quantity, variantID.Hex())
	return nil
}

// Release returns quantity units to stock. Callers guarantee it runs once per item.
func (l *StockLedger) Release(ctx context.Context, variantID primitive.ObjectID, quantity int) error {
	if quantity <= 0 {
		return apperrors.Validation("quantity must be positive")
	}
	if err := l.products.IncrementStock(ctx, variantID, quantity); err != nil {
		return err
	}
	l.log.Infof("Use Case: Released %d unit(s) of variant %s", quantity, variantID.Hex())
	return nil
}
