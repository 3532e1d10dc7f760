package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/repository/testutil"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awardXP(ctx context.Context, factory service.UnitOfWorkFactory, guildID, userID, delta int64) (*service.XPAward, error) {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	award, err := service.NewXPService(uow.GuildRepository(), uow.UserXPRepository(), uow.EventBus()).
		AwardXP(ctx, guildID, 0, userID, delta)
	if err != nil {
		return nil, err
	}
	return award, uow.Commit()
}

func TestUnitOfWork_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.PanicsWithValue(t, "unit of work not started - call Begin() first", func() {
			uow.UserRepository()
		})
	})

	t.Run("double begin", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.Error(t, uow.Begin(ctx))
	})

	t.Run("rollback after commit is a no-op", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.GuildRepository().EnsureGuild(ctx, 77)
		require.NoError(t, err)
		require.NoError(t, uow.Commit())
		assert.NoError(t, uow.Rollback())
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.UserRepository().Ensure(ctx, 4242)
		require.NoError(t, err)
		require.NoError(t, uow.Rollback())

		user, err := NewUserRepository(testDB.DB).GetByID(ctx, 4242)
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestUnitOfWork_EventsFollowCommit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	received := make(chan events.LevelUpEvent, 4)
	bus.Subscribe(events.EventTypeLevelUp, func(_ context.Context, e events.Event) {
		received <- e.(events.LevelUpEvent)
	})

	t.Run("rolled back award emits nothing", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		award, err := service.NewXPService(uow.GuildRepository(), uow.UserXPRepository(), uow.EventBus()).
			AwardXP(ctx, 1, 0, 10, 100)
		require.NoError(t, err)
		require.True(t, award.LeveledUp())
		require.NoError(t, uow.Rollback())

		select {
		case e := <-received:
			t.Fatalf("unexpected event %+v", e)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("committed award emits once", func(t *testing.T) {
		award, err := awardXP(ctx, factory, 1, 10, 75)
		require.NoError(t, err)
		assert.Equal(t, 2, award.NewLevel)

		select {
		case e := <-received:
			assert.Equal(t, int64(10), e.UserID)
			assert.Equal(t, 1, e.OldLevel)
			assert.Equal(t, 2, e.NewLevel)
		case <-time.After(2 * time.Second):
			t.Fatal("level up event not delivered")
		}
	})
}

func TestUnitOfWork_ConcurrentXPAwards(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	const workers = 20
	const delta = 7

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := awardXP(ctx, factory, 5, 50, delta); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	row, err := NewUserXPRepository(testDB.DB).Get(ctx, 5, 50)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(workers*delta), row.XP)
	assert.Equal(t, 2, row.Level)
}
