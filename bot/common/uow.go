package common

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/service"
)

// WithUnitOfWork runs fn in a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func WithUnitOfWork(ctx context.Context, factory service.UnitOfWorkFactory, fn func(uow service.UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
