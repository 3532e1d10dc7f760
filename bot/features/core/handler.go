package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleGuildReady(ctx context.Context, ev gateway.Event) error {
	if ev.Guild == nil {
		return nil
	}
	return common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		if _, err := uow.GuildRepository().EnsureGuild(ctx, ev.Guild.ID); err != nil {
			return fmt.Errorf("failed to ensure guild %d: %w", ev.Guild.ID, err)
		}
		return nil
	})
}

func (f *Feature) handleLoad(ctx context.Context, c *commands.Context) error {
	path := c.String("path")
	if err := f.env.Registry.Load(ctx, path); err != nil {
		return loadError(err)
	}
	return c.Reply(ctx, common.SuccessText("Loaded `%s`.", plugin.Normalize(path)))
}

func (f *Feature) handleUnload(ctx context.Context, c *commands.Context) error {
	path := plugin.Normalize(c.String("path"))
	if path == "core" {
		return commands.Errorf("the core plugin cannot be unloaded")
	}
	f.env.Registry.Unload(path)
	return c.Reply(ctx, common.SuccessText("Unloaded `%s`.", path))
}

func (f *Feature) handleReload(ctx context.Context, c *commands.Context) error {
	path := c.String("path")
	if err := f.env.Registry.Reload(ctx, path); err != nil {
		return loadError(err)
	}
	return c.Reply(ctx, common.SuccessText("Reloaded `%s`.", plugin.Normalize(path)))
}

// loadError shows load failures to the owner instead of treating them as internal
func loadError(err error) error {
	var lfe *plugin.LoadFailedError
	switch {
	case errors.Is(err, plugin.ErrAlreadyLoaded):
		return commands.Errorf("that plugin is already loaded")
	case errors.As(err, &lfe):
		log.WithError(err).WithField("plugin", lfe.Path).Warn("Plugin load failed")
		return commands.Errorf("%v", err)
	}
	return err
}

func (f *Feature) handlePlugins(ctx context.Context, c *commands.Context) error {
	loaded := f.env.Registry.Loaded()
	return c.Replyf(ctx, "**Loaded plugins:** %s", strings.Join(loaded, ", "))
}

func (f *Feature) handlePing(ctx context.Context, c *commands.Context) error {
	start := time.Now()
	msg, err := c.Client.SendMessage(ctx, c.ChannelID, "Pong!")
	if err != nil {
		return err
	}
	return c.Client.EditMessage(ctx, c.ChannelID, msg.ID, fmt.Sprintf("Pong! `%dms`", time.Since(start).Milliseconds()))
}

func (f *Feature) handleHelp(ctx context.Context, c *commands.Context) error {
	set := f.env.Registry.Commands()

	if c.Has("command") && c.String("command") != "" {
		cmd := resolve(set, c.String("command"))
		if cmd == nil || (cmd.Mod && !c.Privileged()) {
			return commands.Errorf("no command called `%s`", c.String("command"))
		}
		return c.ReplyEmbed(ctx, usageEmbed(c.Prefix, cmd))
	}

	byPlugin := map[string][]string{}
	for _, cmd := range set.Commands() {
		if cmd.Mod && !c.Privileged() {
			continue
		}
		byPlugin[cmd.Plugin] = append(byPlugin[cmd.Plugin], "`"+cmd.Name+"`")
	}

	names := make([]string, 0, len(byPlugin))
	for name := range byPlugin {
		names = append(names, name)
	}
	sort.Strings(names)

	embed := &gateway.Embed{Title: "Commands", Colour: common.ColorPrimary}
	for _, name := range names {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: name, Value: strings.Join(byPlugin[name], " ")})
	}
	return common.SendEmbedOrText(ctx, c.Client, c.GuildID, c.ChannelID, embed)
}

// resolve walks "stock create" style names through sub-commands
func resolve(set *commands.Set, query string) *commands.Command {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return nil
	}
	cmd := set.Lookup(parts[0])
	for _, p := range parts[1:] {
		if cmd == nil {
			return nil
		}
		cmd = cmd.Sub(p)
	}
	return cmd
}

func usageEmbed(prefix string, cmd *commands.Command) *gateway.Embed {
	embed := &gateway.Embed{
		Title:       prefix + cmd.Usage(),
		Description: cmd.Help,
		Colour:      common.ColorPrimary,
	}
	if len(cmd.Aliases) > 0 {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Aliases", Value: strings.Join(cmd.Aliases, ", ")})
	}
	if len(cmd.Subcommands) > 0 {
		subs := make([]string, 0, len(cmd.Subcommands))
		for _, s := range cmd.Subcommands {
			subs = append(subs, "`"+s.Usage()+"`")
		}
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Sub-commands", Value: strings.Join(subs, "\n")})
	}
	return embed
}
