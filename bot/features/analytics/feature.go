package analytics

import (
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
)

// Feature tracks member activity and, where the guild allows it, logs messages
type Feature struct {
	env *plugin.Env
}

func New(env *plugin.Env) *Feature {
	return &Feature{env: env}
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		Name: "analytics",
		Events: []plugin.EventHandler{
			{Name: "track", Kind: gateway.KindMessage, Fn: f.handleMessage},
		},
		Commands: []*commands.Command{
			{
				Name: "analytics",
				Help: "Control whether your messages are collected",
				Subcommands: []*commands.Command{
					{Name: "optout", Help: "Stop collecting your messages and delete what was collected", Handler: f.handleOptOut},
					{Name: "optin", Help: "Allow your messages to be collected again", Handler: f.handleOptIn},
				},
			},
			{
				Name:    "seen",
				Help:    "Show when a user was last active",
				Params:  []commands.Param{{Name: "user", Converter: commands.User}},
				Handler: f.handleSeen,
			},
		},
	}
}
