package tags

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/sandbox"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

var (
	validName = regexp.MustCompile(`^[\pL\pN_\-]{1,64}$`)
	codeFence = regexp.MustCompile("(?s)^```(?:lua)?\\s*\n?(.*?)\\s*```$")
)

// MaxContent bounds a tag body
const MaxContent = 2000

func (f *Feature) lookup(ctx context.Context, guildID int64, name string) (*models.Tag, error) {
	var tag *models.Tag
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		tags := service.NewTagService(uow.GuildRepository(), uow.TagRepository())
		var err error
		tag, err = tags.Lookup(ctx, guildID, name)
		return err
	})
	return tag, err
}

func (f *Feature) handleUnknown(ctx context.Context, ev gateway.Event) error {
	msg := ev.Message
	if msg == nil || msg.IsDM() || ev.Invoked == "" {
		return nil
	}

	tag, err := f.lookup(ctx, msg.GuildID, ev.Invoked)
	if err != nil || tag == nil {
		return err
	}

	if !tag.IsLua {
		_, err := f.env.Client.SendMessage(ctx, msg.ChannelID, tag.Content)
		return err
	}

	text := argumentText(msg.Content, ev.Prefix, ev.Invoked)
	out, err := sandbox.Run(ctx, tag.Content, map[string]any{
		"author":     msg.Author.Username,
		"author_id":  msg.Author.ID,
		"channel_id": msg.ChannelID,
		"guild_id":   msg.GuildID,
		"text":       text,
		"args":       strings.Fields(text),
	})
	if err != nil {
		var scriptErr *sandbox.ScriptError
		if !errors.As(err, &scriptErr) && !errors.Is(err, sandbox.ErrTimeout) {
			return fmt.Errorf("failed to run tag %s: %w", tag.Name, err)
		}
		log.WithFields(log.Fields{"guild": msg.GuildID, "tag": tag.Name}).WithError(err).Debug("Lua tag failed")
		reply, _ := commands.UserMessage(commands.Errorf("tag `%s` failed: %v", tag.Name, err), false)
		_, err = f.env.Client.SendMessage(ctx, msg.ChannelID, reply)
		return err
	}

	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	_, err = f.env.Client.SendMessage(ctx, msg.ChannelID, out)
	return err
}

// argumentText is the message text after the prefix and the tag name
func argumentText(content, prefix, invoked string) string {
	n := len(prefix) + len(invoked)
	if n > len(content) {
		return ""
	}
	return strings.TrimSpace(content[n:])
}

func (f *Feature) validateName(name string) (string, error) {
	name = strings.ToLower(name)
	if !validName.MatchString(name) {
		return "", commands.Errorf("tag names are up to 64 letters, digits, dashes or underscores")
	}
	if f.env.Registry != nil && f.env.Registry.Commands().Lookup(name) != nil {
		return "", commands.Errorf("`%s` is already a command", name)
	}
	return name, nil
}

func (f *Feature) handleCreate(isLua bool) commands.HandlerFunc {
	return func(ctx context.Context, c *commands.Context) error {
		name, err := f.validateName(c.String("name"))
		if err != nil {
			return err
		}

		content := c.String("content")
		if isLua {
			if m := codeFence.FindStringSubmatch(content); m != nil {
				content = m[1]
			}
		}
		if len(content) > MaxContent {
			return commands.Errorf("tags are limited to %d characters", MaxContent)
		}

		err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
			tags := service.NewTagService(uow.GuildRepository(), uow.TagRepository())
			existing, err := tags.Lookup(ctx, c.GuildID, name)
			if err != nil {
				return err
			}
			if existing != nil {
				return commands.Errorf("tag `%s` already exists", name)
			}
			_, err = tags.Create(ctx, c.GuildID, c.AuthorID, name, content, isLua)
			return err
		})
		if err != nil {
			return err
		}
		return c.Reply(ctx, common.SuccessText("Created tag `%s`.", name))
	}
}

func (f *Feature) handleAlias(ctx context.Context, c *commands.Context) error {
	alias, err := f.validateName(c.String("alias"))
	if err != nil {
		return err
	}

	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		tags := service.NewTagService(uow.GuildRepository(), uow.TagRepository())
		target, err := tags.Lookup(ctx, c.GuildID, c.String("tag"))
		if err != nil {
			return err
		}
		if target == nil {
			return commands.Errorf("there is no tag called `%s`", c.String("tag"))
		}
		clash, err := tags.Lookup(ctx, c.GuildID, alias)
		if err != nil {
			return err
		}
		if clash != nil {
			return commands.Errorf("`%s` already names a tag", alias)
		}
		if err := uow.TagRepository().AddAlias(ctx, c.GuildID, alias, target.ID); err != nil {
			return fmt.Errorf("failed to add alias: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("`%s` now points at `%s`.", alias, strings.ToLower(c.String("tag"))))
}

func (f *Feature) handleInfo(ctx context.Context, c *commands.Context) error {
	tag, err := f.lookup(ctx, c.GuildID, c.String("name"))
	if err != nil {
		return err
	}
	if tag == nil {
		return commands.Errorf("there is no tag called `%s`", c.String("name"))
	}

	kind := "text"
	if tag.IsLua {
		kind = "lua"
	}
	return c.Replyf(ctx, "`%s` (%s) by %s, last changed %s",
		tag.Name, kind, common.UserMention(tag.OwnerID), common.FormatDiscordTimestamp(tag.LastModified, "R"))
}
