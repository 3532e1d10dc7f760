package bot

import (
	"context"
	"fmt"
	"slices"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/analytics"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/core"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/economy"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/levels"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/reminders"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/roleme"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/rolestate"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/settings"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/stocks"
	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/tags"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/cooldown"
	"github.com/Fuyukai/Jokusoramame-sub000/dispatch"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/infrastructure/observability"
	"github.com/Fuyukai/Jokusoramame-sub000/kv"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"

	log "github.com/sirupsen/logrus"
)

// Catalog lists every plugin the bot can load
func Catalog() plugin.Catalog {
	return plugin.Catalog{
		config.CorePlugin: core.Factory,
		"levelling":       levels.Factory,
		"economy":         economy.Factory,
		"reminders":       reminders.Factory,
		"stocks":          stocks.Factory,
		"rolestate":       rolestate.Factory,
		"roleme":          roleme.Factory,
		"settings":        settings.Factory,
		"tags":            tags.Factory,
		"analytics":       analytics.Factory,
	}
}

// Deps are the long-lived resources the bot runs on
type Deps struct {
	Config  *config.Config
	Client  gateway.Client
	UoW     service.UnitOfWorkFactory
	KV      *kv.Client
	Bus     *events.Bus
	Metrics *observability.MetricsProvider
}

// Source delivers inbound events to a sink until closed
type Source interface {
	Open(ctx context.Context, sink gateway.Sink) error
	Close() error
}

type Bot struct {
	cfg        *config.Config
	source     Source
	dispatcher *dispatch.Dispatcher
	registry   *plugin.Registry
	pool       *worker.Pool
}

// New wires the router, dispatcher and plugin registry. Nothing is loaded or
// connected until Start.
func New(deps Deps, source Source) *Bot {
	router := commands.NewRouter(commands.RouterOptions{
		Prefixes:     deps.Config.Prefixes(),
		Client:       deps.Client,
		Limiter:      cooldown.NewLimiter(deps.KV),
		IsOwner:      deps.Config.IsOwner,
		DevMode:      deps.Config.DevMode,
		ErrorChannel: deps.Config.LogChannels.ErrorChannel,
		Metrics:      deps.Metrics,
	})
	dispatcher := dispatch.New(router, deps.Metrics)
	pool := worker.NewPool(deps.Metrics)

	env := &plugin.Env{
		Config:   deps.Config,
		Client:   deps.Client,
		UoW:      deps.UoW,
		KV:       deps.KV,
		Buckets:  cooldown.NewBuckets(deps.KV),
		AntiSpam: cooldown.NewAntiSpam(deps.KV),
		Bus:      deps.Bus,
		Metrics:  deps.Metrics,
	}

	return &Bot{
		cfg:        deps.Config,
		source:     source,
		dispatcher: dispatcher,
		registry:   plugin.NewRegistry(Catalog(), env, dispatcher, pool),
		pool:       pool,
	}
}

// Start loads the autoload list and opens the event source. A plugin that
// fails to load is logged and skipped; the core plugin is required.
func (b *Bot) Start(ctx context.Context) error {
	autoload := b.cfg.Autoload()
	loaded := b.registry.LoadAll(ctx, autoload)
	log.WithFields(log.Fields{
		"loaded":    loaded,
		"requested": len(autoload),
		"plugins":   b.registry.Loaded(),
	}).Info("Plugins loaded")

	if !slices.Contains(b.registry.Loaded(), config.CorePlugin) {
		b.registry.UnloadAll()
		return fmt.Errorf("core plugin failed to load")
	}

	if err := b.source.Open(ctx, b.dispatch); err != nil {
		b.registry.UnloadAll()
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	return nil
}

// dispatch does not wait for handlers, so a slow handler never stalls its shard
func (b *Bot) dispatch(ctx context.Context, ev gateway.Event) {
	b.dispatcher.Dispatch(ctx, ev)
}

// Registry exposes plugin management to the entry point
func (b *Bot) Registry() *plugin.Registry {
	return b.registry
}

// Close stops intake first, then unloads plugins and their workers
func (b *Bot) Close() error {
	err := b.source.Close()
	b.registry.UnloadAll()
	b.pool.StopAll()
	if err != nil {
		return fmt.Errorf("failed to close gateway: %w", err)
	}
	return nil
}
