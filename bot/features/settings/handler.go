package settings

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	"github.com/goccy/go-json"
)

var validName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// shapes constrains the well-known settings so a typo cannot disable a feature
var shapes = map[string]func(raw []byte) error{
	models.SettingLevelUpMessages:   expect[bool]("true or false"),
	models.SettingAnalytics:         expect[bool]("true or false"),
	models.SettingRolestate:         expect[bool]("true or false"),
	models.SettingXPIgnoredChannels: expect[[]int64]("a list of channel IDs"),
}

func expect[T any](what string) func(raw []byte) error {
	return func(raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("expected %s", what)
		}
		return nil
	}
}

func settingName(c *commands.Context) (string, error) {
	name := strings.ToLower(c.String("name"))
	if !validName.MatchString(name) {
		return "", commands.Errorf("setting names are up to 32 lowercase letters, digits or underscores")
	}
	return name, nil
}

func (f *Feature) handleGet(ctx context.Context, c *commands.Context) error {
	name, err := settingName(c)
	if err != nil {
		return err
	}

	var (
		value json.RawMessage
		found bool
	)
	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		var err error
		found, err = settings.GetSetting(ctx, c.GuildID, name, &value)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		return c.Replyf(ctx, "`%s` is not set.", name)
	}
	return c.Replyf(ctx, "`%s` = `%s`", name, string(value))
}

func (f *Feature) handleSet(ctx context.Context, c *commands.Context) error {
	name, err := settingName(c)
	if err != nil {
		return err
	}

	input := []byte(c.String("value"))
	var buf bytes.Buffer
	if !json.Valid(input) || json.Compact(&buf, input) != nil {
		return commands.Errorf("the value must be JSON, e.g. `true`, `5` or `\"text\"`")
	}
	raw := buf.Bytes()
	if check, ok := shapes[name]; ok {
		if err := check(raw); err != nil {
			return commands.Errorf("`%s`: %v", name, err)
		}
	}

	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		return settings.SetSetting(ctx, c.GuildID, name, json.RawMessage(raw))
	})
	if err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("Set `%s`.", name))
}

func (f *Feature) handleUnset(ctx context.Context, c *commands.Context) error {
	name, err := settingName(c)
	if err != nil {
		return err
	}

	err = common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		return settings.DeleteSetting(ctx, c.GuildID, name)
	})
	if err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("Unset `%s`.", name))
}

func (f *Feature) handleList(ctx context.Context, c *commands.Context) error {
	var all []*models.Setting
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		var err error
		all, err = uow.SettingRepository().List(ctx, c.GuildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list settings: %w", err)
	}
	if len(all) == 0 {
		return c.Reply(ctx, "No settings are set.")
	}

	var b strings.Builder
	for _, s := range all {
		fmt.Fprintf(&b, "`%s` = `%s`\n", s.Name, string(s.Value))
	}
	return c.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}
