package tags

import (
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
)

// Feature answers unknown commands with guild tags
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
	guildOnly := []commands.Check{commands.GuildOnly()}
	name := commands.Param{Name: "name", Converter: commands.String}
	body := commands.Param{Name: "content", Converter: commands.Rest, Rest: true}

	return &plugin.Manifest{
		Name: "tags",
		Events: []plugin.EventHandler{
			{Name: "resolve-tag", Kind: gateway.KindUnknownCommand, Fn: f.handleUnknown},
		},
		Commands: []*commands.Command{{
			Name:    "tag",
			Aliases: []string{"tags"},
			Help:    "Manage tags. Invoke a tag with the prefix and its name.",
			Subcommands: []*commands.Command{
				{
					Name:     "create",
					Aliases:  []string{"add"},
					Help:     "Create a text tag",
					Params:   []commands.Param{name, body},
					Checks:   guildOnly,
					Cooldown: &commands.Cooldown{Scope: commands.ScopeUser, Limit: 5, Window: time.Minute},
					Handler:  f.handleCreate(false),
				},
				{
					Name:     "lua",
					Help:     "Create a tag that runs a Lua script",
					Params:   []commands.Param{name, body},
					Checks:   guildOnly,
					Cooldown: &commands.Cooldown{Scope: commands.ScopeUser, Limit: 5, Window: time.Minute},
					Handler:  f.handleCreate(true),
				},
				{
					Name: "alias",
					Help: "Give an existing tag another name",
					Params: []commands.Param{
						{Name: "alias", Converter: commands.String},
						{Name: "tag", Converter: commands.String},
					},
					Checks:  guildOnly,
					Handler: f.handleAlias,
				},
				{
					Name:    "info",
					Help:    "Show who owns a tag",
					Params:  []commands.Param{name},
					Checks:  guildOnly,
					Handler: f.handleInfo,
				},
			},
		}},
	}
}
