package service

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/levelling"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// xpService implements the XPService interface
type xpService struct {
	guildRepo      GuildRepository
	xpRepo         UserXPRepository
	eventPublisher EventPublisher
}

// NewXPService creates a new XP service
func NewXPService(guildRepo GuildRepository, xpRepo UserXPRepository, eventPublisher EventPublisher) XPService {
	return &xpService{
		guildRepo:      guildRepo,
		xpRepo:         xpRepo,
		eventPublisher: eventPublisher,
	}
}

// AwardXP must run inside a unit of work so the row lock is held until commit
func (s *xpService) AwardXP(ctx context.Context, guildID, channelID, userID, delta int64) (*XPAward, error) {
	if delta < 0 {
		return nil, fmt.Errorf("xp delta must be non-negative, got %d", delta)
	}

	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return nil, fmt.Errorf("failed to ensure guild: %w", err)
	}

	row, err := s.xpRepo.LockOrCreate(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock xp row: %w", err)
	}

	award := &XPAward{OldLevel: row.Level}

	row.XP += delta
	newLevel := levelling.Level(row.XP)
	// stored levels only ever move up
	if newLevel < row.Level {
		newLevel = row.Level
	}
	row.Level = newLevel

	if err := s.xpRepo.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to update xp: %w", err)
	}

	award.XP = row.XP
	award.NewLevel = row.Level

	if award.LeveledUp() {
		if err := s.eventPublisher.Publish(events.LevelUpEvent{
			GuildID:   guildID,
			UserID:    userID,
			ChannelID: channelID,
			OldLevel:  award.OldLevel,
			NewLevel:  award.NewLevel,
			XP:        award.XP,
		}); err != nil {
			return nil, fmt.Errorf("failed to publish level up: %w", err)
		}
	}

	return award, nil
}

// GetXP returns a zero-value row when the member has no experience yet
func (s *xpService) GetXP(ctx context.Context, guildID, userID int64) (*models.UserXP, error) {
	row, err := s.xpRepo.Get(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get xp: %w", err)
	}
	if row == nil {
		return &models.UserXP{GuildID: guildID, UserID: userID, Level: 1}, nil
	}
	return row, nil
}

func (s *xpService) Leaderboard(ctx context.Context, guildID int64, limit int) ([]*models.UserXP, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	rows, err := s.xpRepo.TopByGuild(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return rows, nil
}

func (s *xpService) Rank(ctx context.Context, guildID, userID int64) (int, error) {
	rank, err := s.xpRepo.Rank(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get rank: %w", err)
	}
	return rank, nil
}
