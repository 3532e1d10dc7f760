package settings

import (
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
)

// Feature exposes per-guild settings to moderators
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
	checks := []commands.Check{
		commands.GuildOnly(),
		commands.RequireAnyPermission(gateway.PermissionManageGuild),
	}
	name := commands.Param{Name: "name", Converter: commands.String}

	return &plugin.Manifest{
		Name: "settings",
		Commands: []*commands.Command{{
			Name:    "setting",
			Aliases: []string{"settings", "config"},
			Help:    "View or change server settings",
			Mod:     true,
			Subcommands: []*commands.Command{
				{
					Name:    "get",
					Help:    "Show a setting",
					Params:  []commands.Param{name},
					Checks:  checks,
					Handler: f.handleGet,
				},
				{
					Name: "set",
					Help: "Set a setting to a JSON value",
					Params: []commands.Param{
						name,
						{Name: "value", Converter: commands.Rest, Rest: true},
					},
					Checks:  checks,
					Handler: f.handleSet,
				},
				{
					Name:    "unset",
					Aliases: []string{"reset"},
					Help:    "Remove a setting",
					Params:  []commands.Param{name},
					Checks:  checks,
					Handler: f.handleUnset,
				},
				{
					Name:    "list",
					Help:    "Show every setting",
					Checks:  checks,
					Handler: f.handleList,
				},
			},
		}},
	}
}
