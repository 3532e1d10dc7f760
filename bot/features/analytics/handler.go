package analytics

import (
	"context"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/kv"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleMessage(ctx context.Context, ev gateway.Event) error {
	msg := ev.Message
	if msg == nil || msg.Author.Bot {
		return nil
	}
	userID := msg.Author.ID

	if err := f.env.KV.TouchLastSeen(ctx, userID); err != nil {
		return err
	}
	if err := f.env.KV.TouchLastMessage(ctx, userID); err != nil {
		return err
	}
	if _, err := f.env.KV.IncrMessageCount(ctx, userID); err != nil {
		return err
	}

	if msg.IsDM() {
		return nil
	}

	var enabled bool
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		settings := service.NewSettingsService(uow.GuildRepository(), uow.SettingRepository())
		var err error
		enabled, err = settings.GetBool(ctx, msg.GuildID, models.SettingAnalytics, false)
		return err
	})
	if err != nil || !enabled {
		return err
	}

	logged, err := f.env.KV.LogMessage(ctx, userID, kv.MessageRecord{
		MessageID: msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if logged {
		log.WithFields(log.Fields{"guild": msg.GuildID, "user": userID}).Trace("Logged message")
	}
	return nil
}

func (f *Feature) handleOptOut(ctx context.Context, c *commands.Context) error {
	if err := f.env.KV.OptOut(ctx, c.AuthorID); err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("Your messages will no longer be collected, and what was collected has been deleted."))
}

func (f *Feature) handleOptIn(ctx context.Context, c *commands.Context) error {
	if err := f.env.KV.OptIn(ctx, c.AuthorID); err != nil {
		return err
	}
	return c.Reply(ctx, common.SuccessText("Your messages may be collected in servers that enable analytics."))
}

func (f *Feature) handleSeen(ctx context.Context, c *commands.Context) error {
	u := c.User("user")
	if u.Bot {
		return commands.Errorf("I don't track bots")
	}

	seen, err := f.env.KV.LastMessage(ctx, u.ID)
	if err != nil {
		return err
	}
	if seen == 0 {
		return c.Replyf(ctx, "I have never seen %s talk.", u.Username)
	}
	count, err := f.env.KV.MessageCount(ctx, u.ID)
	if err != nil {
		return err
	}
	return c.Replyf(ctx, "%s last spoke %s and has sent %s messages.",
		u.Username, common.FormatDiscordTimestamp(time.Unix(seen, 0), "R"), common.FormatBalance(count))
}
