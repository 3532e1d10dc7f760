// Package featuretest wires plugins to in-memory fakes for tests.
package featuretest

import (
	"context"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/cooldown"
	"github.com/Fuyukai/Jokusoramame-sub000/dispatch"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway/gatewaytest"
	"github.com/Fuyukai/Jokusoramame-sub000/kv"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	GuildID   int64 = 7
	ChannelID int64 = 10
	OwnerID   int64 = 5
	UserID    int64 = 42
)

// Harness is a bot with every external dependency faked
type Harness struct {
	t *testing.T

	Config     *config.Config
	Client     *gatewaytest.FakeClient
	UoW        *service.MockUnitOfWork
	Redis      *miniredis.Miniredis
	KV         *kv.Client
	Bus        *events.Bus
	Env        *plugin.Env
	Dispatcher *dispatch.Dispatcher
	Registry   *plugin.Registry
	Pool       *worker.Pool

	nextMessage int64
}

func New(t *testing.T, catalog plugin.Catalog) *Harness {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.OwnerIDs = []int64{OwnerID}

	mr := miniredis.RunT(t)
	store := kv.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	client := gatewaytest.NewFakeClient()
	client.Users[UserID] = &gateway.User{ID: UserID, Username: "alice"}
	client.Users[OwnerID] = &gateway.User{ID: OwnerID, Username: "owner"}
	client.Channels[ChannelID] = &gateway.Channel{ID: ChannelID, GuildID: GuildID, Name: "general"}

	uow := service.NewMockUnitOfWork()
	bus := events.NewBus()

	router := commands.NewRouter(commands.RouterOptions{
		Prefixes: cfg.Prefixes(),
		Client:   client,
		Limiter:  cooldown.NewLimiter(store),
		IsOwner:  cfg.IsOwner,
		DevMode:  true,
	})
	dispatcher := dispatch.New(router, nil)
	pool := worker.NewPool(nil)
	t.Cleanup(pool.StopAll)

	env := &plugin.Env{
		Config:   cfg,
		Client:   client,
		UoW:      &service.MockUnitOfWorkFactory{UoW: uow},
		KV:       store,
		Buckets:  cooldown.NewBuckets(store),
		AntiSpam: cooldown.NewAntiSpam(store),
		Bus:      bus,
	}
	registry := plugin.NewRegistry(catalog, env, dispatcher, pool)
	t.Cleanup(registry.UnloadAll)

	return &Harness{
		t:           t,
		Config:      cfg,
		Client:      client,
		UoW:         uow,
		Redis:       mr,
		KV:          store,
		Bus:         bus,
		Env:         env,
		Dispatcher:  dispatcher,
		Registry:    registry,
		Pool:        pool,
		nextMessage: 5000,
	}
}

// Load loads a plugin and fails the test on error
func (h *Harness) Load(path string) {
	h.t.Helper()
	require.NoError(h.t, h.Registry.Load(context.Background(), path))
}

// Send dispatches a guild message from userID and waits for every handler
func (h *Harness) Send(userID int64, content string) {
	h.nextMessage++
	h.Dispatch(gateway.Event{
		Kind: gateway.KindMessage,
		Message: &gateway.Message{
			ID:        h.nextMessage,
			ChannelID: ChannelID,
			GuildID:   GuildID,
			Author:    gateway.User{ID: userID, Username: "user"},
			Content:   content,
		},
	})
}

// Dispatch sends an arbitrary event and waits for its handlers
func (h *Harness) Dispatch(ev gateway.Event) {
	h.Dispatcher.Dispatch(context.Background(), ev).Wait()
}

// LastContent returns the most recent plain message, or "" if none
func (h *Harness) LastContent() string {
	contents := h.Client.Contents()
	if len(contents) == 0 {
		return ""
	}
	return contents[len(contents)-1]
}
