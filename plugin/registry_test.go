package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/dispatch"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bus        *events.Bus
	levelUps   atomic.Int64
	registry   *Registry
	dispatcher *dispatch.Dispatcher
	pool       *worker.Pool
	releases   atomic.Int64
	builds     atomic.Int64
	fail       atomic.Bool
	readyRuns  atomic.Int64
	readyStops atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bus:        events.NewBus(),
		dispatcher: dispatch.New(nil, nil),
		pool:       worker.NewPool(nil),
	}

	catalog := Catalog{
		"echo": func(*Env) (*Manifest, error) {
			version := f.builds.Add(1)
			if f.fail.Load() {
				return nil, errors.New("broken build")
			}
			return &Manifest{
				Events: []EventHandler{{
					Name: "join",
					Kind: gateway.KindMemberJoin,
					Fn:   func(context.Context, gateway.Event) error { return nil },
				}},
				Commands: []*commands.Command{{
					Name:    "echo",
					Help:    "version " + string(rune('0'+version)),
					Handler: func(context.Context, *commands.Context) error { return nil },
				}},
				Workers: []worker.Spec{{
					Name:         "noop",
					Period:       time.Hour,
					InitialDelay: worker.Every(time.Hour),
					Body:         func(context.Context) error { return nil },
				}},
				Ready: func(ctx context.Context) error {
					f.readyRuns.Add(1)
					<-ctx.Done()
					f.readyStops.Add(1)
					return ctx.Err()
				},
				Release: func() error {
					f.releases.Add(1)
					return nil
				},
			}, nil
		},
		"clash": func(*Env) (*Manifest, error) {
			return &Manifest{Commands: []*commands.Command{{Name: "echo"}}}, nil
		},
		"panicky": func(*Env) (*Manifest, error) {
			panic("factory exploded")
		},
		"listener": func(*Env) (*Manifest, error) {
			return &Manifest{
				Subscriptions: []Subscription{{
					Event:   events.EventTypeLevelUp,
					Handler: func(context.Context, events.Event) { f.levelUps.Add(1) },
				}},
			}, nil
		},
	}

	env := &Env{Config: config.NewTestConfig(), Bus: f.bus}
	f.registry = NewRegistry(catalog, env, f.dispatcher, f.pool)
	require.Same(t, f.registry, env.Registry)
	return f
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "levelling", Normalize("jokusoramame.plugins.levelling"))
	assert.Equal(t, "levelling", Normalize("levelling"))
	assert.Equal(t, "tags", Normalize("  tags "))
}

func TestRegistry_LoadUnload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Load(ctx, "jokusoramame.plugins.echo"))
	assert.Equal(t, []string{"echo"}, f.registry.Loaded())
	assert.Equal(t, 1, f.dispatcher.HandlerCount(gateway.KindMemberJoin))
	assert.NotNil(t, f.dispatcher.Commands().Lookup("echo"))
	assert.Equal(t, []string{"echo.noop"}, f.pool.Running())
	assert.Eventually(t, func() bool { return f.readyRuns.Load() == 1 }, time.Second, time.Millisecond)

	err := f.registry.Load(ctx, "echo")
	assert.ErrorIs(t, err, ErrAlreadyLoaded)

	f.registry.Unload("echo")
	assert.Empty(t, f.registry.Loaded())
	assert.Zero(t, f.dispatcher.HandlerCount(gateway.KindMemberJoin))
	assert.Nil(t, f.dispatcher.Commands().Lookup("echo"))
	assert.Empty(t, f.pool.Running())
	assert.Equal(t, int64(1), f.readyStops.Load())
	assert.Equal(t, int64(1), f.releases.Load())

	// no-op
	f.registry.Unload("echo")
	f.registry.Unload("never-loaded")
}

func TestRegistry_LoadFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var lfe *LoadFailedError

	err := f.registry.Load(ctx, "missing")
	require.ErrorAs(t, err, &lfe)
	assert.ErrorIs(t, err, ErrUnknownPlugin)
	assert.Equal(t, "missing", lfe.Path)

	err = f.registry.Load(ctx, "panicky")
	require.ErrorAs(t, err, &lfe)
	assert.Contains(t, err.Error(), "factory exploded")

	require.NoError(t, f.registry.Load(ctx, "echo"))
	err = f.registry.Load(ctx, "clash")
	require.ErrorAs(t, err, &lfe)
	assert.Equal(t, []string{"echo"}, f.registry.Loaded())
	assert.Equal(t, "echo", f.dispatcher.Commands().Lookup("echo").Plugin)

	f.registry.UnloadAll()
}

func TestRegistry_Reload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Load(ctx, "echo"))
	first := f.dispatcher.Commands().Lookup("echo")

	require.NoError(t, f.registry.Reload(ctx, "echo"))
	second := f.dispatcher.Commands().Lookup("echo")
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, "version 2", second.Help)
	assert.Equal(t, 1, f.dispatcher.HandlerCount(gateway.KindMemberJoin))
	assert.Equal(t, []string{"echo.noop"}, f.pool.Running())
	assert.Equal(t, int64(1), f.releases.Load())

	f.fail.Store(true)
	err := f.registry.Reload(ctx, "echo")
	var lfe *LoadFailedError
	require.ErrorAs(t, err, &lfe)

	// the old version is gone and nothing replaced it
	assert.Empty(t, f.registry.Loaded())
	assert.Nil(t, f.dispatcher.Commands().Lookup("echo"))
	assert.Empty(t, f.pool.Running())
	assert.Equal(t, int64(2), f.releases.Load())

	// reloading something unloaded loads it
	f.fail.Store(false)
	require.NoError(t, f.registry.Reload(ctx, "echo"))
	assert.Equal(t, []string{"echo"}, f.registry.Loaded())
	f.registry.UnloadAll()
}

func TestRegistry_ReloadSwapsSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.registry.Load(ctx, "listener"))
	require.NoError(t, f.registry.Reload(ctx, "listener"))
	require.NoError(t, f.registry.Reload(ctx, "listener"))
	assert.Equal(t, 1, f.bus.Subscribers(events.EventTypeLevelUp))

	f.bus.Emit(ctx, events.LevelUpEvent{GuildID: 1, UserID: 2, NewLevel: 3})
	assert.Eventually(t, func() bool { return f.levelUps.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), f.levelUps.Load())

	f.registry.Unload("listener")
	assert.Equal(t, 0, f.bus.Subscribers(events.EventTypeLevelUp))
}

func TestRegistry_SubscriptionsNeedABus(t *testing.T) {
	f := newFixture(t)
	f.registry.env.Bus = nil

	err := f.registry.Load(context.Background(), "listener")
	var lfe *LoadFailedError
	require.ErrorAs(t, err, &lfe)
	assert.Empty(t, f.registry.Loaded())
}

func TestRegistry_LoadAll(t *testing.T) {
	f := newFixture(t)
	n := f.registry.LoadAll(context.Background(), []string{"echo", "missing", "jokusoramame.plugins.echo"})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"echo"}, f.registry.Loaded())
	f.registry.UnloadAll()
	assert.Empty(t, f.registry.Loaded())
}
