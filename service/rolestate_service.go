package service

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// rolestateService implements the RolestateService interface
type rolestateService struct {
	guildRepo     GuildRepository
	rolestateRepo RolestateRepository
}

// NewRolestateService creates a new rolestate service
func NewRolestateService(guildRepo GuildRepository, rolestateRepo RolestateRepository) RolestateService {
	return &rolestateService{
		guildRepo:     guildRepo,
		rolestateRepo: rolestateRepo,
	}
}

func (s *rolestateService) Snapshot(ctx context.Context, guildID, userID int64, roleIDs []int64, nick string) error {
	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return fmt.Errorf("failed to ensure guild: %w", err)
	}

	state := &models.Rolestate{GuildID: guildID, UserID: userID, RoleIDs: roleIDs}
	if nick != "" {
		state.Nick = &nick
	}
	if state.RoleIDs == nil {
		state.RoleIDs = []int64{}
	}

	if err := s.rolestateRepo.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save rolestate: %w", err)
	}
	return nil
}

func (s *rolestateService) Restore(ctx context.Context, guildID, userID int64) (*models.Rolestate, error) {
	state, err := s.rolestateRepo.Get(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rolestate: %w", err)
	}
	if state == nil {
		return nil, nil
	}

	if err := s.rolestateRepo.Delete(ctx, guildID, userID); err != nil {
		return nil, fmt.Errorf("failed to delete rolestate: %w", err)
	}
	return state, nil
}
