package service

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// rolemeService implements the RolemeService interface
type rolemeService struct {
	guildRepo  GuildRepository
	rolemeRepo RolemeRepository
}

func NewRolemeService(guildRepo GuildRepository, rolemeRepo RolemeRepository) RolemeService {
	return &rolemeService{guildRepo: guildRepo, rolemeRepo: rolemeRepo}
}

func (s *rolemeService) Register(ctx context.Context, guildID, roleID int64, selfAssignable, isColour bool) error {
	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return fmt.Errorf("failed to ensure guild: %w", err)
	}
	role := &models.RolemeRole{RoleID: roleID, GuildID: guildID, SelfAssignable: selfAssignable, IsColour: isColour}
	if err := s.rolemeRepo.Upsert(ctx, role); err != nil {
		return fmt.Errorf("failed to register roleme role: %w", err)
	}
	return nil
}

// Assignable returns the role if members may grant it to themselves, nil otherwise
func (s *rolemeService) Assignable(ctx context.Context, guildID, roleID int64) (*models.RolemeRole, error) {
	role, err := s.rolemeRepo.Get(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roleme role: %w", err)
	}
	if role == nil || role.GuildID != guildID || !role.SelfAssignable {
		return nil, nil
	}
	return role, nil
}

func (s *rolemeService) ColourRoles(ctx context.Context, guildID int64) ([]*models.RolemeRole, error) {
	roles, err := s.rolemeRepo.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roleme roles: %w", err)
	}
	colours := make([]*models.RolemeRole, 0, len(roles))
	for _, r := range roles {
		if r.IsColour {
			colours = append(colours, r)
		}
	}
	return colours, nil
}
