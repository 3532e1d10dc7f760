package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus

	guildRepo     service.GuildRepository
	settingRepo   service.SettingRepository
	userRepo      service.UserRepository
	userXPRepo    service.UserXPRepository
	rolestateRepo service.RolestateRepository
	rolemeRepo    service.RolemeRepository
	tagRepo       service.TagRepository
	reminderRepo  service.ReminderRepository
	stockRepo     service.StockRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.guildRepo = newGuildRepositoryWithTx(tx)
	u.settingRepo = newSettingRepositoryWithTx(tx)
	u.userRepo = newUserRepositoryWithTx(tx)
	u.userXPRepo = newUserXPRepositoryWithTx(tx)
	u.rolestateRepo = newRolestateRepositoryWithTx(tx)
	u.rolemeRepo = newRolemeRepositoryWithTx(tx)
	u.tagRepo = newTagRepositoryWithTx(tx)
	u.reminderRepo = newReminderRepositoryWithTx(tx)
	u.stockRepo = newStockRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Discard()
	return nil
}

func mustStarted[T any](repo T, started bool) T {
	if !started {
		panic("unit of work not started - call Begin() first")
	}
	return repo
}

func (u *unitOfWork) GuildRepository() service.GuildRepository {
	return mustStarted(u.guildRepo, u.guildRepo != nil)
}

func (u *unitOfWork) SettingRepository() service.SettingRepository {
	return mustStarted(u.settingRepo, u.settingRepo != nil)
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	return mustStarted(u.userRepo, u.userRepo != nil)
}

func (u *unitOfWork) UserXPRepository() service.UserXPRepository {
	return mustStarted(u.userXPRepo, u.userXPRepo != nil)
}

func (u *unitOfWork) RolestateRepository() service.RolestateRepository {
	return mustStarted(u.rolestateRepo, u.rolestateRepo != nil)
}

func (u *unitOfWork) RolemeRepository() service.RolemeRepository {
	return mustStarted(u.rolemeRepo, u.rolemeRepo != nil)
}

func (u *unitOfWork) TagRepository() service.TagRepository {
	return mustStarted(u.tagRepo, u.tagRepo != nil)
}

func (u *unitOfWork) ReminderRepository() service.ReminderRepository {
	return mustStarted(u.reminderRepo, u.reminderRepo != nil)
}

func (u *unitOfWork) StockRepository() service.StockRepository {
	return mustStarted(u.stockRepo, u.stockRepo != nil)
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
