package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// tagService implements the TagService interface
type tagService struct {
	guildRepo GuildRepository
	tagRepo   TagRepository
}

func NewTagService(guildRepo GuildRepository, tagRepo TagRepository) TagService {
	return &tagService{guildRepo: guildRepo, tagRepo: tagRepo}
}

func (s *tagService) Lookup(ctx context.Context, guildID int64, name string) (*models.Tag, error) {
	tag, err := s.tagRepo.GetByNameOrAlias(ctx, guildID, strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("failed to look up tag %s: %w", name, err)
	}
	return tag, nil
}

func (s *tagService) Create(ctx context.Context, guildID, ownerID int64, name, content string, isLua bool) (*models.Tag, error) {
	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return nil, fmt.Errorf("failed to ensure guild: %w", err)
	}
	tag := &models.Tag{GuildID: guildID, OwnerID: ownerID, Name: strings.ToLower(name), Content: content, IsLua: isLua}
	if err := s.tagRepo.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}
