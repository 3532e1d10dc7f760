package levels

import (
	"context"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/levelling"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"
	"github.com/Fuyukai/Jokusoramame-sub000/service"
)

// Feature awards experience for chat and announces level ups
type Feature struct {
	env    *plugin.Env
	engine *levelling.Engine
}

func New(env *plugin.Env) *Feature {
	f := &Feature{env: env}
	f.engine = levelling.NewEngine(awarder{env.UoW}, channelFilter{env.UoW}, env.AntiSpam, env.Metrics)
	return f
}

func Factory(env *plugin.Env) (*plugin.Manifest, error) {
	return New(env).Manifest(), nil
}

func (f *Feature) Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		Name: "levelling",
		Events: []plugin.EventHandler{
			{Name: "award-xp", Kind: gateway.KindPlainMessage, Fn: f.engine.HandleMessage},
		},
		Commands: []*commands.Command{
			{
				Name:    "level",
				Aliases: []string{"rank", "xp"},
				Help:    "Show your level, or another member's",
				Params:  []commands.Param{{Name: "member", Converter: commands.Member, Optional: true}},
				Checks:  []commands.Check{commands.GuildOnly()},
				Handler: f.handleLevel,
			},
			{
				Name:    "leaderboard",
				Aliases: []string{"top"},
				Help:    "Show the most experienced members",
				Checks:  []commands.Check{commands.GuildOnly()},
				Handler: f.handleLeaderboard,
			},
		},
		Subscriptions: []plugin.Subscription{
			{Event: events.EventTypeLevelUp, Handler: f.handleLevelUp},
		},
	}
}

// awarder runs each award in its own unit of work so the row lock is
// released at commit
type awarder struct {
	factory service.UnitOfWorkFactory
}

func (a awarder) AwardXP(ctx context.Context, guildID, channelID, userID, delta int64) error {
	return common.WithUnitOfWork(ctx, a.factory, func(uow service.UnitOfWork) error {
		xpService := service.NewXPService(uow.GuildRepository(), uow.UserXPRepository(), uow.EventBus())
		_, err := xpService.AwardXP(ctx, guildID, channelID, userID, delta)
		return err
	})
}

type channelFilter struct {
	factory service.UnitOfWorkFactory
}

func (f channelFilter) Ignored(ctx context.Context, guildID, channelID int64) (bool, error) {
	var ignored bool
	err := common.WithUnitOfWork(ctx, f.factory, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		ids, err := settings.GetIDList(ctx, guildID, models.SettingXPIgnoredChannels)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == channelID {
				ignored = true
				break
			}
		}
		return nil
	})
	return ignored, err
}
