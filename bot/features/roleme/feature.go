package roleme

import (
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"

	"github.com/spf13/pflag"
)

// Feature lets members assign themselves roles the mods have opened up
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
	guildOnly := commands.GuildOnly()
	manageRoles := commands.RequireAnyPermission(gateway.PermissionManageRoles)

	return &plugin.Manifest{
		Name: "roleme",
		Commands: []*commands.Command{{
			Name:    "roleme",
			Help:    "Toggle a self-assignable role, or list them",
			Params:  []commands.Param{{Name: "role", Converter: commands.Role, Optional: true}},
			Checks:  []commands.Check{guildOnly},
			Handler: f.handleToggle,
			Subcommands: []*commands.Command{
				{
					Name:    "add",
					Help:    "Make a role self-assignable",
					Mod:     true,
					Params:  []commands.Param{{Name: "role", Converter: commands.Role}},
					Checks:  []commands.Check{guildOnly, manageRoles},
					Handler: f.handleAdd,
				},
				{
					Name:    "remove",
					Help:    "Stop a role being self-assignable",
					Mod:     true,
					Params:  []commands.Param{{Name: "role", Converter: commands.Role}},
					Checks:  []commands.Check{guildOnly, manageRoles},
					Handler: f.handleRemove,
				},
				{
					Name:    "colour",
					Aliases: []string{"color"},
					Help:    "Switch to the colour role with this colour. With --role, register a colour role.",
					Params:  []commands.Param{{Name: "colour", Converter: commands.Colour}},
					Flags: func(fs *pflag.FlagSet) {
						fs.StringP("role", "r", "", "register this role as a colour role")
						fs.BoolP("self-assignable", "s", true, "whether members may pick the registered role")
					},
					Checks:  []commands.Check{guildOnly},
					Handler: f.handleColour,
				},
			},
		}},
	}
}
