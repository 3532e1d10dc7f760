package service

import (
	"context"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/stretchr/testify/mock"
)

// MockGuildRepository is a mock implementation of GuildRepository
type MockGuildRepository struct {
	mock.Mock
}

func (m *MockGuildRepository) EnsureGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Guild), args.Error(1)
}

func (m *MockGuildRepository) SetStocksEnabled(ctx context.Context, guildID int64, enabled bool) error {
	args := m.Called(ctx, guildID, enabled)
	return args.Error(0)
}

func (m *MockGuildRepository) SetBulletin(ctx context.Context, guildID, channelID, messageID int64) error {
	args := m.Called(ctx, guildID, channelID, messageID)
	return args.Error(0)
}

// MockSettingRepository is a mock implementation of SettingRepository
type MockSettingRepository struct {
	mock.Mock
}

func (m *MockSettingRepository) Get(ctx context.Context, guildID int64, name string) ([]byte, error) {
	args := m.Called(ctx, guildID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSettingRepository) Set(ctx context.Context, guildID int64, name string, value []byte) error {
	args := m.Called(ctx, guildID, name, value)
	return args.Error(0)
}

func (m *MockSettingRepository) Delete(ctx context.Context, guildID int64, name string) error {
	args := m.Called(ctx, guildID, name)
	return args.Error(0)
}

func (m *MockSettingRepository) List(ctx context.Context, guildID int64) ([]*models.Setting, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Setting), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Ensure(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) AddMoney(ctx context.Context, userID int64, delta int64) (int64, error) {
	args := m.Called(ctx, userID, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) ListDecayable(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) SetMoney(ctx context.Context, userID int64, money int64) error {
	args := m.Called(ctx, userID, money)
	return args.Error(0)
}

// MockUserXPRepository is a mock implementation of UserXPRepository
type MockUserXPRepository struct {
	mock.Mock
}

func (m *MockUserXPRepository) LockOrCreate(ctx context.Context, guildID, userID int64) (*models.UserXP, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserXP), args.Error(1)
}

func (m *MockUserXPRepository) Update(ctx context.Context, row *models.UserXP) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockUserXPRepository) Get(ctx context.Context, guildID, userID int64) (*models.UserXP, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserXP), args.Error(1)
}

func (m *MockUserXPRepository) TopByGuild(ctx context.Context, guildID int64, limit int) ([]*models.UserXP, error) {
	args := m.Called(ctx, guildID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserXP), args.Error(1)
}

func (m *MockUserXPRepository) Rank(ctx context.Context, guildID, userID int64) (int, error) {
	args := m.Called(ctx, guildID, userID)
	return args.Int(0), args.Error(1)
}

// MockReminderRepository is a mock implementation of ReminderRepository
type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	args := m.Called(ctx, reminder)
	return args.Error(0)
}

func (m *MockReminderRepository) ListDue(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reminder), args.Error(1)
}

func (m *MockReminderRepository) Disable(ctx context.Context, reminderID int64) (bool, error) {
	args := m.Called(ctx, reminderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReminderRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reminder), args.Error(1)
}

// MockStockRepository is a mock implementation of StockRepository
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Create(ctx context.Context, stock *models.Stock) error {
	args := m.Called(ctx, stock)
	return args.Error(0)
}

func (m *MockStockRepository) Get(ctx context.Context, channelID int64) (*models.Stock, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stock), args.Error(1)
}

func (m *MockStockRepository) ListAll(ctx context.Context) ([]*models.Stock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Stock), args.Error(1)
}

func (m *MockStockRepository) UpdatePrice(ctx context.Context, channelID int64, price float64) error {
	args := m.Called(ctx, channelID, price)
	return args.Error(0)
}

func (m *MockStockRepository) CountHolders(ctx context.Context, channelID int64) (int, error) {
	args := m.Called(ctx, channelID)
	return args.Int(0), args.Error(1)
}

// MockRolestateRepository is a mock implementation of RolestateRepository
type MockRolestateRepository struct {
	mock.Mock
}

func (m *MockRolestateRepository) Save(ctx context.Context, state *models.Rolestate) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockRolestateRepository) Get(ctx context.Context, guildID, userID int64) (*models.Rolestate, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rolestate), args.Error(1)
}

func (m *MockRolestateRepository) Delete(ctx context.Context, guildID, userID int64) error {
	args := m.Called(ctx, guildID, userID)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockRolemeRepository is a mock implementation of RolemeRepository
type MockRolemeRepository struct {
	mock.Mock
}

func (m *MockRolemeRepository) Upsert(ctx context.Context, role *models.RolemeRole) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockRolemeRepository) Get(ctx context.Context, roleID int64) (*models.RolemeRole, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RolemeRole), args.Error(1)
}

func (m *MockRolemeRepository) ListByGuild(ctx context.Context, guildID int64) ([]*models.RolemeRole, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RolemeRole), args.Error(1)
}

func (m *MockRolemeRepository) Delete(ctx context.Context, roleID int64) error {
	args := m.Called(ctx, roleID)
	return args.Error(0)
}

// MockTagRepository is a mock implementation of TagRepository
type MockTagRepository struct {
	mock.Mock
}

func (m *MockTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockTagRepository) AddAlias(ctx context.Context, guildID int64, alias string, tagID int64) error {
	args := m.Called(ctx, guildID, alias, tagID)
	return args.Error(0)
}

func (m *MockTagRepository) GetByNameOrAlias(ctx context.Context, guildID int64, name string) (*models.Tag, error) {
	args := m.Called(ctx, guildID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tag), args.Error(1)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. The repository
// fields are returned as-is by the getters.
type MockUnitOfWork struct {
	mock.Mock

	Guilds     *MockGuildRepository
	Settings   *MockSettingRepository
	Users      *MockUserRepository
	UserXP     *MockUserXPRepository
	Rolestates *MockRolestateRepository
	Roleme     *MockRolemeRepository
	Tags       *MockTagRepository
	Reminders  *MockReminderRepository
	Stocks     *MockStockRepository
	Bus        *MockEventPublisher
}

// NewMockUnitOfWork returns a unit of work whose Begin, Commit and Rollback
// succeed unless a test overrides them.
func NewMockUnitOfWork() *MockUnitOfWork {
	uow := &MockUnitOfWork{
		Guilds:     new(MockGuildRepository),
		Settings:   new(MockSettingRepository),
		Users:      new(MockUserRepository),
		UserXP:     new(MockUserXPRepository),
		Rolestates: new(MockRolestateRepository),
		Roleme:     new(MockRolemeRepository),
		Tags:       new(MockTagRepository),
		Reminders:  new(MockReminderRepository),
		Stocks:     new(MockStockRepository),
		Bus:        new(MockEventPublisher),
	}
	uow.On("Begin", mock.Anything).Return(nil).Maybe()
	uow.On("Commit").Return(nil).Maybe()
	uow.On("Rollback").Return(nil).Maybe()
	return uow
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GuildRepository() GuildRepository         { return m.Guilds }
func (m *MockUnitOfWork) SettingRepository() SettingRepository     { return m.Settings }
func (m *MockUnitOfWork) UserRepository() UserRepository           { return m.Users }
func (m *MockUnitOfWork) UserXPRepository() UserXPRepository       { return m.UserXP }
func (m *MockUnitOfWork) RolestateRepository() RolestateRepository { return m.Rolestates }
func (m *MockUnitOfWork) RolemeRepository() RolemeRepository       { return m.Roleme }
func (m *MockUnitOfWork) TagRepository() TagRepository             { return m.Tags }
func (m *MockUnitOfWork) ReminderRepository() ReminderRepository   { return m.Reminders }
func (m *MockUnitOfWork) StockRepository() StockRepository         { return m.Stocks }
func (m *MockUnitOfWork) EventBus() EventPublisher                 { return m.Bus }

// MockUnitOfWorkFactory hands out the same unit of work on every Create
type MockUnitOfWorkFactory struct {
	UoW *MockUnitOfWork
}

func (f *MockUnitOfWorkFactory) Create() UnitOfWork {
	return f.UoW
}
