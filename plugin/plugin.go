// Package plugin loads feature modules into the dispatcher and worker pool.
package plugin

import (
	"context"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/cooldown"
	"github.com/Fuyukai/Jokusoramame-sub000/dispatch"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/infrastructure/observability"
	"github.com/Fuyukai/Jokusoramame-sub000/kv"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"
)

// EventHandler is one listener declared by a plugin
type EventHandler struct {
	Name string
	Kind gateway.Kind
	Fn   dispatch.HandlerFunc
}

// Manifest is everything a plugin contributes. Nothing is discovered by
// reflection; a plugin lists its handlers, commands and workers here.
type Manifest struct {
	Name     string
	Events   []EventHandler
	Commands []*commands.Command
	Workers  []worker.Spec

	// Subscriptions are attached to the domain event bus only while the
	// plugin is running, so a reload never has two versions subscribed
	Subscriptions []Subscription

	// Ready runs once after load on its own goroutine and is cancelled on unload
	Ready func(ctx context.Context) error

	// Release frees resources acquired by the factory
	Release func() error
}

// Subscription listens for one kind of domain event
type Subscription struct {
	Event   events.EventType
	Handler events.Handler
}

// Env is the shared state handed to plugin factories
type Env struct {
	Config   *config.Config
	Client   gateway.Client
	UoW      service.UnitOfWorkFactory
	KV       *kv.Client
	Buckets  *cooldown.Buckets
	AntiSpam *cooldown.AntiSpam
	Bus      *events.Bus
	Metrics  *observability.MetricsProvider

	// Registry is filled in by NewRegistry
	Registry *Registry
}

// Factory builds a fresh manifest. It is called on every load and reload.
type Factory func(env *Env) (*Manifest, error)

// Catalog maps short plugin names to factories
type Catalog map[string]Factory

// Normalize turns "jokusoramame.plugins.levelling" into "levelling"
func Normalize(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), config.PluginPathPrefix)
}
