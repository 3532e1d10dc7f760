package service

import (
	"context"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// GuildRepository defines the interface for guild data access
type GuildRepository interface {
	// EnsureGuild returns the guild row, creating it on first reference
	EnsureGuild(ctx context.Context, guildID int64) (*models.Guild, error)

	// SetStocksEnabled toggles the stock market for a guild
	SetStocksEnabled(ctx context.Context, guildID int64, enabled bool) error

	// SetBulletin records the channel and message of the stock bulletin
	SetBulletin(ctx context.Context, guildID, channelID, messageID int64) error
}

// SettingRepository stores JSON-encoded per-guild settings
type SettingRepository interface {
	// Get returns the raw value, or nil if the setting is unset
	Get(ctx context.Context, guildID int64, name string) ([]byte, error)

	// Set inserts or replaces a setting
	Set(ctx context.Context, guildID int64, name string, value []byte) error

	// Delete removes a setting; deleting an unset name is not an error
	Delete(ctx context.Context, guildID int64, name string) error

	// List returns every setting for a guild ordered by name
	List(ctx context.Context, guildID int64) ([]*models.Setting, error)
}

// UserRepository defines the interface for global user data access
type UserRepository interface {
	// Ensure returns the user row, creating it with the starting balance if needed
	Ensure(ctx context.Context, userID int64) (*models.User, error)

	// GetByID returns nil when the user does not exist
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// AddMoney adjusts a balance and returns the new value
	AddMoney(ctx context.Context, userID int64, delta int64) (int64, error)

	// ListDecayable locks and returns users outside the [0, 1343] bracket
	ListDecayable(ctx context.Context) ([]*models.User, error)

	// SetMoney overwrites a balance
	SetMoney(ctx context.Context, userID int64, money int64) error
}

// UserXPRepository defines the interface for per-guild experience
type UserXPRepository interface {
	// LockOrCreate returns the (guild, user) row locked FOR UPDATE, inserting a fresh row first if needed
	LockOrCreate(ctx context.Context, guildID, userID int64) (*models.UserXP, error)

	// Update writes xp and level back
	Update(ctx context.Context, row *models.UserXP) error

	// Get returns nil when the member has no experience yet
	Get(ctx context.Context, guildID, userID int64) (*models.UserXP, error)

	// TopByGuild returns the highest-xp members of a guild
	TopByGuild(ctx context.Context, guildID int64, limit int) ([]*models.UserXP, error)

	// Rank returns the 1-based leaderboard position, or 0 if absent
	Rank(ctx context.Context, guildID, userID int64) (int, error)
}

// RolestateRepository stores role snapshots of departed members
type RolestateRepository interface {
	Save(ctx context.Context, state *models.Rolestate) error
	Get(ctx context.Context, guildID, userID int64) (*models.Rolestate, error)
	Delete(ctx context.Context, guildID, userID int64) error
}

// RolemeRepository stores self-assignable roles
type RolemeRepository interface {
	Upsert(ctx context.Context, role *models.RolemeRole) error
	Get(ctx context.Context, roleID int64) (*models.RolemeRole, error)
	ListByGuild(ctx context.Context, guildID int64) ([]*models.RolemeRole, error)
	Delete(ctx context.Context, roleID int64) error
}

// TagRepository defines the interface for tag lookup
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	AddAlias(ctx context.Context, guildID int64, alias string, tagID int64) error

	// GetByNameOrAlias resolves a name through the alias table when no tag matches directly
	GetByNameOrAlias(ctx context.Context, guildID int64, name string) (*models.Tag, error)
}

// ReminderRepository defines the interface for reminder data access
type ReminderRepository interface {
	Create(ctx context.Context, reminder *models.Reminder) error

	// ListDue returns enabled reminders whose time is before the horizon
	ListDue(ctx context.Context, before time.Time) ([]*models.Reminder, error)

	// Disable flips enabled to false. It returns true only for the caller that flipped it.
	Disable(ctx context.Context, reminderID int64) (bool, error)

	ListByUser(ctx context.Context, userID int64) ([]*models.Reminder, error)
}

// StockRepository defines the interface for stock data access
type StockRepository interface {
	Create(ctx context.Context, stock *models.Stock) error
	Get(ctx context.Context, channelID int64) (*models.Stock, error)
	ListAll(ctx context.Context) ([]*models.Stock, error)
	UpdatePrice(ctx context.Context, channelID int64, price float64) error
	CountHolders(ctx context.Context, channelID int64) (int, error)
}

// EventPublisher accepts domain events raised inside a unit of work
type EventPublisher interface {
	Publish(event events.Event) error
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction; safe to call after Commit
	Rollback() error

	// Repository getters
	GuildRepository() GuildRepository
	SettingRepository() SettingRepository
	UserRepository() UserRepository
	UserXPRepository() UserXPRepository
	RolestateRepository() RolestateRepository
	RolemeRepository() RolemeRepository
	TagRepository() TagRepository
	ReminderRepository() ReminderRepository
	StockRepository() StockRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// SettingsService is the public API for guild settings
type SettingsService interface {
	// GetSetting decodes the named setting into dest. found is false when unset.
	GetSetting(ctx context.Context, guildID int64, name string, dest any) (found bool, err error)

	// SetSetting encodes and stores value, creating the guild row if needed
	SetSetting(ctx context.Context, guildID int64, name string, value any) error

	DeleteSetting(ctx context.Context, guildID int64, name string) error

	// GetBool returns def when the setting is unset
	GetBool(ctx context.Context, guildID int64, name string, def bool) (bool, error)

	// GetIDList returns an empty list when the setting is unset
	GetIDList(ctx context.Context, guildID int64, name string) ([]int64, error)
}

// XPService applies experience awards
type XPService interface {
	// AwardXP adds delta to the member's experience under a row lock and
	// publishes a LevelUpEvent if a level boundary was crossed.
	AwardXP(ctx context.Context, guildID, channelID, userID, delta int64) (*XPAward, error)

	GetXP(ctx context.Context, guildID, userID int64) (*models.UserXP, error)
	Leaderboard(ctx context.Context, guildID int64, limit int) ([]*models.UserXP, error)
	Rank(ctx context.Context, guildID, userID int64) (int, error)
}

// XPAward describes the result of one award
type XPAward struct {
	XP       int64
	OldLevel int
	NewLevel int
}

// LeveledUp reports whether the award crossed a level boundary
func (a *XPAward) LeveledUp() bool {
	return a.NewLevel > a.OldLevel
}

// EconomyService handles balances and the hourly decay
type EconomyService interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, userID int64, amount int64) (int64, error)

	// ApplyDecay runs one decay pass over all users outside the exempt bracket
	ApplyDecay(ctx context.Context, hours int) (*DecayResult, error)
}

// DecayResult summarises a decay pass
type DecayResult struct {
	UsersAffected int
	TotalDelta    int64
}

// ReminderService schedules and claims reminders
type ReminderService interface {
	Schedule(ctx context.Context, userID, channelID int64, at time.Time, text string) (*models.Reminder, error)
	Due(ctx context.Context, horizon time.Time) ([]*models.Reminder, error)

	// Claim disables the reminder and reports whether this caller won the claim
	Claim(ctx context.Context, reminder *models.Reminder, delivered bool) (bool, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.Reminder, error)
}

// StockService manages stocks
type StockService interface {
	Register(ctx context.Context, guildID, channelID int64, price float64, amount int64) (*models.Stock, error)
	Get(ctx context.Context, channelID int64) (*models.Stock, error)
	Holders(ctx context.Context, channelID int64) (int, error)

	// Tick perturbs every stock price by a draw from noise and returns the updated stocks
	Tick(ctx context.Context, noise func() float64) ([]*models.Stock, error)
}

// RolestateService snapshots and restores member roles
type RolestateService interface {
	Snapshot(ctx context.Context, guildID, userID int64, roleIDs []int64, nick string) error

	// Restore returns and removes the snapshot; nil if none exists
	Restore(ctx context.Context, guildID, userID int64) (*models.Rolestate, error)
}

// RolemeService manages self-assignable roles
type RolemeService interface {
	Register(ctx context.Context, guildID, roleID int64, selfAssignable, isColour bool) error
	Assignable(ctx context.Context, guildID, roleID int64) (*models.RolemeRole, error)
	ColourRoles(ctx context.Context, guildID int64) ([]*models.RolemeRole, error)
}

// TagService resolves tags
type TagService interface {
	Lookup(ctx context.Context, guildID int64, name string) (*models.Tag, error)
	Create(ctx context.Context, guildID, ownerID int64, name, content string, isLua bool) (*models.Tag, error)
}
