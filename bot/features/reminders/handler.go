package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/common"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/service"

	log "github.com/sirupsen/logrus"
)

// MaxDelay is the furthest ahead a reminder may be set
const MaxDelay = 365 * 24 * time.Hour

func (f *Feature) handleRemind(ctx context.Context, c *commands.Context) error {
	seconds := c.Int("seconds")
	if seconds <= 0 {
		return commands.Errorf("the delay must be a positive number of seconds")
	}
	if seconds > int64(MaxDelay/time.Second) {
		return commands.Errorf("reminders can be at most a year away")
	}
	delay := time.Duration(seconds) * time.Second

	text := c.String("text")
	if text == "" {
		return &commands.MissingArgumentError{Param: "text"}
	}
	if len(text) > service.MaxReminderLength {
		return commands.Errorf("reminders are limited to %d characters", service.MaxReminderLength)
	}

	at := f.now().Add(delay)
	var reminder *models.Reminder
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		reminders := service.NewReminderService(uow.ReminderRepository(), uow.EventBus())
		var err error
		reminder, err = reminders.Schedule(ctx, c.AuthorID, c.ChannelID, at, text)
		return err
	})
	if err != nil {
		return err
	}

	// reminders due before the next scan are picked up now
	if delay < ScanInterval {
		f.arm(reminder)
	}

	return c.Reply(ctx, common.SuccessText("I'll remind you %s.", common.FormatDiscordTimestamp(at, "R")))
}

func (f *Feature) handleList(ctx context.Context, c *commands.Context) error {
	var list []*models.Reminder
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		reminders := service.NewReminderService(uow.ReminderRepository(), uow.EventBus())
		var err error
		list, err = reminders.ListForUser(ctx, c.AuthorID)
		return err
	})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return c.Reply(ctx, "You have no pending reminders.")
	}

	var b strings.Builder
	for _, r := range list {
		fmt.Fprintf(&b, "%s in %s: %s\n", common.FormatDiscordTimestamp(r.RemindingAt, "R"), common.ChannelMention(r.ChannelID), common.Truncate(r.Text, 60))
	}
	return c.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

// scan arms a sleeper for every reminder due before the next scan
func (f *Feature) scan(ctx context.Context) error {
	var due []*models.Reminder
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		reminders := service.NewReminderService(uow.ReminderRepository(), uow.EventBus())
		var err error
		due, err = reminders.Due(ctx, f.now().Add(ScanInterval))
		return err
	})
	if err != nil {
		return err
	}

	for _, r := range due {
		f.arm(r)
	}
	return nil
}

// arm starts one sleeper per reminder id
func (f *Feature) arm(r *models.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx.Err() != nil {
		return
	}
	if _, ok := f.pending[r.ID]; ok {
		return
	}
	f.pending[r.ID] = struct{}{}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			delete(f.pending, r.ID)
			f.mu.Unlock()
		}()

		timer := time.NewTimer(r.RemindingAt.Sub(f.now()))
		defer timer.Stop()

		select {
		case <-f.ctx.Done():
			return
		case <-timer.C:
		}

		if err := f.fire(f.ctx, r); err != nil {
			log.WithField("reminder", r.ID).WithError(err).Error("Failed to fire reminder")
		}
	}()
}

// fire claims the reminder and, if this caller won the claim, delivers it
func (f *Feature) fire(ctx context.Context, r *models.Reminder) error {
	logger := log.WithFields(log.Fields{"reminder": r.ID, "channel": r.ChannelID})

	// only a missing channel cancels; any other lookup failure still gets one delivery attempt
	deliverable := true
	if _, err := f.env.Client.FetchChannel(ctx, r.ChannelID); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			deliverable = false
		} else {
			logger.WithError(err).Warn("Failed to fetch reminder channel")
		}
	}

	var claimed bool
	err := common.WithUnitOfWork(ctx, f.env.UoW, func(uow service.UnitOfWork) error {
		reminders := service.NewReminderService(uow.ReminderRepository(), uow.EventBus())
		var err error
		claimed, err = reminders.Claim(ctx, r, deliverable)
		return err
	})
	if err != nil {
		return err
	}
	if !claimed {
		logger.Debug("Reminder already claimed elsewhere")
		return nil
	}
	if !deliverable {
		logger.Info("Reminder cancelled, channel no longer exists")
		return nil
	}

	content := fmt.Sprintf("⏰ %s, you asked me to remind you: %s", common.UserMention(r.UserID), r.Text)
	if _, err := f.env.Client.SendMessage(ctx, r.ChannelID, content); err != nil {
		// claimed already, so this is not retried
		logger.WithError(err).Warn("Failed to deliver reminder")
	}
	return nil
}
