package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/worker"
)

// PresenceInterval is how often the playing status rotates
const PresenceInterval = 15 * time.Second

// Feature provides plugin management, help and presence rotation
type Feature struct {
	env      *plugin.Env
	rotation []string
	next     atomic.Int64
}

func New(env *plugin.Env) *Feature {
	return &Feature{env: env, rotation: env.Config.GameRotation}
}

// Factory is the catalog entry for the core plugin
func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	owner := []commands.Check{commands.OwnerOnly()}
	pathParam := []commands.Param{{Name: "path", Converter: commands.String}}

	m := &plugin.Manifest{
		Name: "core",
		Events: []plugin.EventHandler{
			{Name: "ensure-guild", Kind: gateway.KindGuildReady, Fn: f.handleGuildReady},
		},
		Commands: []*commands.Command{
			{Name: "load", Help: "Load a plugin", Params: pathParam, Checks: owner, Handler: f.handleLoad},
			{Name: "unload", Help: "Unload a plugin", Params: pathParam, Checks: owner, Handler: f.handleUnload},
			{Name: "reload", Help: "Reload a plugin", Params: pathParam, Checks: owner, Handler: f.handleReload},
			{Name: "plugins", Help: "List loaded plugins", Checks: owner, Handler: f.handlePlugins},
			{Name: "ping", Help: "Check that the bot is alive", Handler: f.handlePing},
			{
				Name:    "help",
				Help:    "Show commands, or the usage of one command",
				Params:  []commands.Param{{Name: "command", Converter: commands.Rest, Rest: true, Optional: true}},
				Handler: f.handleHelp,
			},
		},
	}

	if len(f.rotation) > 0 {
		m.Workers = append(m.Workers, worker.Spec{
			Name:   "presence",
			Period: PresenceInterval,
			Body:   f.rotatePresence,
		})
	}
	return m
}

func (f *Feature) rotatePresence(ctx context.Context) error {
	i := f.next.Add(1) - 1
	status := f.rotation[int(i%int64(len(f.rotation)))]
	return f.env.Client.SetPresence(ctx, status)
}
