package service

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// settingsService implements the SettingsService interface
type settingsService struct {
	guildRepo   GuildRepository
	settingRepo SettingRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(guildRepo GuildRepository, settingRepo SettingRepository) SettingsService {
	return &settingsService{
		guildRepo:   guildRepo,
		settingRepo: settingRepo,
	}
}

// GetSetting decodes the named setting into dest
func (s *settingsService) GetSetting(ctx context.Context, guildID int64, name string, dest any) (bool, error) {
	raw, err := s.settingRepo.Get(ctx, guildID, name)
	if err != nil {
		return false, fmt.Errorf("failed to get setting %s: %w", name, err)
	}
	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", name, err)
	}
	return true, nil
}

// SetSetting encodes and stores a setting
func (s *settingsService) SetSetting(ctx context.Context, guildID int64, name string, value any) error {
	if name == "" {
		return fmt.Errorf("setting name cannot be empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", name, err)
	}

	if _, err := s.guildRepo.EnsureGuild(ctx, guildID); err != nil {
		return fmt.Errorf("failed to ensure guild: %w", err)
	}

	if err := s.settingRepo.Set(ctx, guildID, name, raw); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", name, err)
	}
	return nil
}

// DeleteSetting removes a setting
func (s *settingsService) DeleteSetting(ctx context.Context, guildID int64, name string) error {
	if err := s.settingRepo.Delete(ctx, guildID, name); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", name, err)
	}
	return nil
}

// GetBool returns a boolean setting or def when unset
func (s *settingsService) GetBool(ctx context.Context, guildID int64, name string, def bool) (bool, error) {
	var value bool
	found, err := s.GetSetting(ctx, guildID, name, &value)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// GetIDList returns a list-of-IDs setting
func (s *settingsService) GetIDList(ctx context.Context, guildID int64, name string) ([]int64, error) {
	var ids []int64
	if _, err := s.GetSetting(ctx, guildID, name, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
