package levels

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/levelling"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

// LeaderboardSize is how many members the leaderboard shows
const LeaderboardSize = 10

func (f *Feature) handleLevelUp(ctx context.Context, event events.Event) {
	e, ok := event.(events.LevelUpEvent)
	if !ok {
		return
	}

	logger := log.WithFields(log.Fields{
		"guild": e.GuildID,
		"user":  e.UserID,
		"level": e.NewLevel,
	})

	var enabled bool
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		var err error
		enabled, err = settings.GetBool(ctx, e.GuildID, models.SettingLevelUpMessages, true)
		return err
	})
	if err != nil {
		logger.WithError(err).Error("Failed to read level up setting")
		return
	}
	if !enabled {
		return
	}

	name := common.UserMention(e.UserID)
	if member, err := f.env.Client.FetchMember(ctx, e.GuildID, e.UserID); err == nil {
		name = member.DisplayName()
	}

	embed := &gateway.Embed{
		Title:       "Level up!",
		Description: fmt.Sprintf("%s is now level **%d**.", name, e.NewLevel),
		Colour:      common.ColorSuccess,
		Fields: []gateway.EmbedField{
			{Name: "Experience", Value: common.FormatBalance(e.XP), Inline: true},
			{Name: "Next level", Value: common.FormatBalance(levelling.XPToNext(e.XP)) + " xp", Inline: true},
		},
	}
	if err := common.SendEmbedOrText(ctx, f.env.Client, e.GuildID, e.ChannelID, embed); err != nil {
		logger.WithError(err).Warn("Failed to send level up message")
	}
}

func (f *Feature) handleLevel(ctx context.Context, c *commands.Context) error {
	userID, name := c.AuthorID, c.Message.Author.Username
	if c.Member != nil {
		name = c.Member.DisplayName()
	}
	if m := c.MemberArg("member"); m != nil {
		userID, name = m.User.ID, m.DisplayName()
	}

	var (
		row  *models.UserXP
		rank int
	)
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		xpService := service.NewXPService(uow.GuildRepository(), uow.UserXPRepository(), uow.EventBus())
		var err error
		if row, err = xpService.GetXP(ctx, c.GuildID, userID); err != nil {
			return err
		}
		rank, err = xpService.Rank(ctx, c.GuildID, userID)
		return err
	})
	if err != nil {
		return err
	}

	rankText := "unranked"
	if rank > 0 {
		rankText = fmt.Sprintf("#%d", rank)
	}

	embed := &gateway.Embed{
		Title:  name,
		Colour: common.ColorPrimary,
		Fields: []gateway.EmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d", row.Level), Inline: true},
			{Name: "Experience", Value: common.FormatBalance(row.XP), Inline: true},
			{Name: "To next level", Value: common.FormatBalance(levelling.XPToNext(row.XP)), Inline: true},
			{Name: "Rank", Value: rankText, Inline: true},
		},
	}
	return common.SendEmbedOrText(ctx, c.Client, c.GuildID, c.ChannelID, embed)
}

func (f *Feature) handleLeaderboard(ctx context.Context, c *commands.Context) error {
	var rows []*models.UserXP
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		xpService := service.NewXPService(uow.GuildRepository(), uow.UserXPRepository(), uow.EventBus())
		var err error
		rows, err = xpService.Leaderboard(ctx, c.GuildID, LeaderboardSize)
		return err
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return commands.Errorf("nobody has any experience here yet")
	}

	var b strings.Builder
	for i, row := range rows {
		name := common.UserMention(row.UserID)
		if member, err := c.Client.FetchMember(ctx, c.GuildID, row.UserID); err == nil {
			name = member.DisplayName()
		}
		fmt.Fprintf(&b, "%d. **%s** level %d (%s xp)\n", i+1, name, row.Level, common.FormatBalance(row.XP))
	}

	return common.SendEmbedOrText(ctx, c.Client, c.GuildID, c.ChannelID, &gateway.Embed{
		Title:       "Leaderboard",
		Description: strings.TrimRight(b.String(), "\n"),
		Colour:      common.ColorPrimary,
	})
}
