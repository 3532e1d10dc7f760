package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// RolestateRepository implements the RolestateRepository interface
type RolestateRepository struct {
	q queryable
}

// NewRolestateRepository creates a new rolestate repository
func NewRolestateRepository(db *database.DB) *RolestateRepository {
	return &RolestateRepository{q: db.Pool}
}

func newRolestateRepositoryWithTx(tx queryable) *RolestateRepository {
	return &RolestateRepository{q: tx}
}

// Save replaces any previous snapshot for the member
func (r *RolestateRepository) Save(ctx context.Context, state *models.Rolestate) error {
	query := `
		INSERT INTO rolestates (guild_id, user_id, role_ids, nick)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id) DO UPDATE
		SET role_ids = EXCLUDED.role_ids, nick = EXCLUDED.nick
	`
	if _, err := r.q.Exec(ctx, query, state.GuildID, state.UserID, state.RoleIDs, state.Nick); err != nil {
		return fmt.Errorf("failed to save rolestate for %d/%d: %w", state.GuildID, state.UserID, err)
	}
	return nil
}

func (r *RolestateRepository) Get(ctx context.Context, guildID, userID int64) (*models.Rolestate, error) {
	var state models.Rolestate
	err := r.q.QueryRow(ctx,
		`SELECT guild_id, user_id, role_ids, nick FROM rolestates WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID,
	).Scan(&state.GuildID, &state.UserID, &state.RoleIDs, &state.Nick)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rolestate for %d/%d: %w", guildID, userID, err)
	}
	return &state, nil
}

func (r *RolestateRepository) Delete(ctx context.Context, guildID, userID int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM rolestates WHERE guild_id = $1 AND user_id = $2`, guildID, userID); err != nil {
		return fmt.Errorf("failed to delete rolestate for %d/%d: %w", guildID, userID, err)
	}
	return nil
}
