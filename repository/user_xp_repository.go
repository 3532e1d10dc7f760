package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// UserXPRepository implements the UserXPRepository interface
type UserXPRepository struct {
	q queryable
}

// NewUserXPRepository creates a new experience repository
func NewUserXPRepository(db *database.DB) *UserXPRepository {
	return &UserXPRepository{q: db.Pool}
}

func newUserXPRepositoryWithTx(tx queryable) *UserXPRepository {
	return &UserXPRepository{q: tx}
}

const userXPColumns = `guild_id, user_id, xp, level, last_modified`

func scanUserXP(row pgx.Row) (*models.UserXP, error) {
	var xp models.UserXP
	if err := row.Scan(&xp.GuildID, &xp.UserID, &xp.XP, &xp.Level, &xp.LastModified); err != nil {
		return nil, err
	}
	return &xp, nil
}

// LockOrCreate inserts a fresh row if needed and returns it locked FOR UPDATE.
// Must run inside a transaction for the lock to be held.
func (r *UserXPRepository) LockOrCreate(ctx context.Context, guildID, userID int64) (*models.UserXP, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_xp (guild_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (guild_id, user_id) DO NOTHING
	`, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create xp row for %d/%d: %w", guildID, userID, err)
	}

	row, err := scanUserXP(r.q.QueryRow(ctx,
		`SELECT `+userXPColumns+` FROM user_xp WHERE guild_id = $1 AND user_id = $2 FOR UPDATE`,
		guildID, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to lock xp row for %d/%d: %w", guildID, userID, err)
	}
	return row, nil
}

// Update writes xp and level back
func (r *UserXPRepository) Update(ctx context.Context, row *models.UserXP) error {
	query := `
		UPDATE user_xp
		SET xp = $3, level = $4, last_modified = NOW()
		WHERE guild_id = $1 AND user_id = $2
		RETURNING last_modified
	`
	err := r.q.QueryRow(ctx, query, row.GuildID, row.UserID, row.XP, row.Level).Scan(&row.LastModified)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("xp row %d/%d not found", row.GuildID, row.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to update xp for %d/%d: %w", row.GuildID, row.UserID, err)
	}
	return nil
}

// Get returns nil when the member has no experience yet
func (r *UserXPRepository) Get(ctx context.Context, guildID, userID int64) (*models.UserXP, error) {
	row, err := scanUserXP(r.q.QueryRow(ctx,
		`SELECT `+userXPColumns+` FROM user_xp WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get xp for %d/%d: %w", guildID, userID, err)
	}
	return row, nil
}

// TopByGuild returns the highest-xp members of a guild
func (r *UserXPRepository) TopByGuild(ctx context.Context, guildID int64, limit int) ([]*models.UserXP, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+userXPColumns+`
		FROM user_xp
		WHERE guild_id = $1
		ORDER BY xp DESC, user_id
		LIMIT $2
	`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var out []*models.UserXP
	for rows.Next() {
		row, err := scanUserXP(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan xp row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return out, nil
}

// Rank returns the 1-based leaderboard position, or 0 if the member is absent
func (r *UserXPRepository) Rank(ctx context.Context, guildID, userID int64) (int, error) {
	query := `
		SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY xp DESC) AS rank
			FROM user_xp
			WHERE guild_id = $1
		) ranked
		WHERE user_id = $2
	`

	var rank int
	err := r.q.QueryRow(ctx, query, guildID, userID).Scan(&rank)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to rank %d in guild %d: %w", userID, guildID, err)
	}
	return rank, nil
}
