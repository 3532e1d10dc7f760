package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// GuildRepository implements the GuildRepository interface
type GuildRepository struct {
	q queryable
}

// NewGuildRepository creates a new guild repository
func NewGuildRepository(db *database.DB) *GuildRepository {
	return &GuildRepository{q: db.Pool}
}

func newGuildRepositoryWithTx(tx queryable) *GuildRepository {
	return &GuildRepository{q: tx}
}

// EnsureGuild returns the guild row, inserting it on first reference
func (r *GuildRepository) EnsureGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	// The no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO guilds (id)
		VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, stocks_enabled, bulletin_channel, bulletin_message
	`

	var guild models.Guild
	err := r.q.QueryRow(ctx, query, guildID).Scan(
		&guild.ID,
		&guild.StocksEnabled,
		&guild.BulletinChannel,
		&guild.BulletinMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure guild %d: %w", guildID, err)
	}
	return &guild, nil
}

// SetStocksEnabled toggles the stock market for a guild
func (r *GuildRepository) SetStocksEnabled(ctx context.Context, guildID int64, enabled bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE guilds SET stocks_enabled = $2 WHERE id = $1`, guildID, enabled)
	if err != nil {
		return fmt.Errorf("failed to update guild %d: %w", guildID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("guild %d not found", guildID)
	}
	return nil
}

// SetBulletin records where the stock bulletin message lives
func (r *GuildRepository) SetBulletin(ctx context.Context, guildID, channelID, messageID int64) error {
	_, err := r.q.Exec(ctx,
		`UPDATE guilds SET bulletin_channel = $2, bulletin_message = $3 WHERE id = $1`,
		guildID, channelID, messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to set bulletin for guild %d: %w", guildID, err)
	}
	return nil
}
