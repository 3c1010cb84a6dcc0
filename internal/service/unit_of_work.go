package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// UnitOfWork runs a group of writes. When Transactional reports false the
// writes are applied one by one and the caller must undo them on failure.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// compensations collects undo steps for writes made outside a transaction
type compensations []compensation

func (c *compensations) add(name string, fn func(ctx context.Context) error) {
	*c = append(*c, compensation{name: name, fn: fn})
}

// run executes the undo steps in reverse order. It keeps going after a failed
// step so that one broken write does not leave the others in place.
func (c compensations) run(ctx context.Context, log *logrus.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c) - 1; i >= 0; i-- {
		step := c[i]
		if err := step.fn(ctx); err != nil {
			log.Errorf("CRITICAL: compensation '%s' failed: %v. Manual intervention required.", step.name, err)
			continue
		}
		log.Infof("Use Case: compensation '%s' applied", step.name)
	}
}
