package levelling

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"

	log "github.com/sirupsen/logrus"
)

// MaxDelta is the largest award for a single message
const MaxDelta = 4

// XPAwarder applies an award in its own transaction
type XPAwarder interface {
	AwardXP(ctx context.Context, guildID, channelID, userID, delta int64) error
}

// ChannelFilter reports whether a channel is excluded from levelling
type ChannelFilter interface {
	Ignored(ctx context.Context, guildID, channelID int64) (bool, error)
}

// SpamGate decides whether a user may earn experience right now
type SpamGate interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

type Metrics interface {
	RecordXPAwarded(amount int64)
}

// Engine turns plain chat messages into experience
type Engine struct {
	awarder XPAwarder
	filter  ChannelFilter
	spam    SpamGate
	metrics Metrics
	roll    func() int64
}

func NewEngine(awarder XPAwarder, filter ChannelFilter, spam SpamGate, metrics Metrics) *Engine {
	return &Engine{
		awarder: awarder,
		filter:  filter,
		spam:    spam,
		metrics: metrics,
		roll:    func() int64 { return rand.Int64N(MaxDelta + 1) },
	}
}

// WithRoll replaces the random source; roll must return a value in [0, MaxDelta]
func (e *Engine) WithRoll(roll func() int64) *Engine {
	e.roll = roll
	return e
}

// HandleMessage is registered on plain_message events
func (e *Engine) HandleMessage(ctx context.Context, ev gateway.Event) error {
	msg := ev.Message
	if msg == nil || msg.IsDM() || msg.Author.Bot || strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	ignored, err := e.filter.Ignored(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to check ignored channels: %w", err)
	}
	if ignored {
		return nil
	}

	delta := e.roll()
	if delta <= 0 {
		return nil
	}

	allowed, err := e.spam.Allow(ctx, msg.Author.ID)
	if err != nil {
		return fmt.Errorf("failed to check anti-spam: %w", err)
	}
	if !allowed {
		log.WithFields(log.Fields{
			"guild": msg.GuildID,
			"user":  msg.Author.ID,
		}).Debug("XP withheld by anti-spam")
		return nil
	}

	if err := e.awarder.AwardXP(ctx, msg.GuildID, msg.ChannelID, msg.Author.ID, delta); err != nil {
		return fmt.Errorf("failed to award xp: %w", err)
	}
	if e.metrics != nil {
		e.metrics.RecordXPAwarded(delta)
	}
	return nil
}
