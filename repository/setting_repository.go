package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// SettingRepository implements the SettingRepository interface
type SettingRepository struct {
	q queryable
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{q: db.Pool}
}

func newSettingRepositoryWithTx(tx queryable) *SettingRepository {
	return &SettingRepository{q: tx}
}

// Get returns the raw JSON value, or nil if unset
func (r *SettingRepository) Get(ctx context.Context, guildID int64, name string) ([]byte, error) {
	var value []byte
	err := r.q.QueryRow(ctx,
		`SELECT value FROM settings WHERE guild_id = $1 AND name = $2`,
		guildID, name,
	).Scan(&value)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s for guild %d: %w", name, guildID, err)
	}
	return value, nil
}

// Set inserts or replaces a setting
func (r *SettingRepository) Set(ctx context.Context, guildID int64, name string, value []byte) error {
	query := `
		INSERT INTO settings (guild_id, name, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, name) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.q.Exec(ctx, query, guildID, name, value); err != nil {
		return fmt.Errorf("failed to set setting %s for guild %d: %w", name, guildID, err)
	}
	return nil
}

// Delete removes a setting
func (r *SettingRepository) Delete(ctx context.Context, guildID int64, name string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM settings WHERE guild_id = $1 AND name = $2`, guildID, name); err != nil {
		return fmt.Errorf("failed to delete setting %s for guild %d: %w", name, guildID, err)
	}
	return nil
}

// List returns every setting for a guild ordered by name
func (r *SettingRepository) List(ctx context.Context, guildID int64) ([]*models.Setting, error) {
	rows, err := r.q.Query(ctx,
		`SELECT guild_id, name, value FROM settings WHERE guild_id = $1 ORDER BY name`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.GuildID, &s.Name, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}
