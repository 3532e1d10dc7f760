package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// RolemeRepository implements the RolemeRepository interface
type RolemeRepository struct {
	q queryable
}

// NewRolemeRepository creates a new roleme repository
func NewRolemeRepository(db *database.DB) *RolemeRepository {
	return &RolemeRepository{q: db.Pool}
}

func newRolemeRepositoryWithTx(tx queryable) *RolemeRepository {
	return &RolemeRepository{q: tx}
}

func (r *RolemeRepository) Upsert(ctx context.Context, role *models.RolemeRole) error {
	query := `
		INSERT INTO roleme_roles (role_id, guild_id, self_assignable, is_colour)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role_id) DO UPDATE
		SET self_assignable = EXCLUDED.self_assignable, is_colour = EXCLUDED.is_colour
	`
	if _, err := r.q.Exec(ctx, query, role.RoleID, role.GuildID, role.SelfAssignable, role.IsColour); err != nil {
		return fmt.Errorf("failed to upsert roleme role %d: %w", role.RoleID, err)
	}
	return nil
}

func (r *RolemeRepository) Get(ctx context.Context, roleID int64) (*models.RolemeRole, error) {
	var role models.RolemeRole
	err := r.q.QueryRow(ctx,
		`SELECT role_id, guild_id, self_assignable, is_colour FROM roleme_roles WHERE role_id = $1`,
		roleID,
	).Scan(&role.RoleID, &role.GuildID, &role.SelfAssignable, &role.IsColour)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get roleme role %d: %w", roleID, err)
	}
	return &role, nil
}

func (r *RolemeRepository) ListByGuild(ctx context.Context, guildID int64) ([]*models.RolemeRole, error) {
	rows, err := r.q.Query(ctx,
		`SELECT role_id, guild_id, self_assignable, is_colour FROM roleme_roles WHERE guild_id = $1 ORDER BY role_id`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roleme roles for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var roles []*models.RolemeRole
	for rows.Next() {
		var role models.RolemeRole
		if err := rows.Scan(&role.RoleID, &role.GuildID, &role.SelfAssignable, &role.IsColour); err != nil {
			return nil, fmt.Errorf("failed to scan roleme role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roleme roles: %w", err)
	}
	return roles, nil
}

func (r *RolemeRepository) Delete(ctx context.Context, roleID int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM roleme_roles WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete roleme role %d: %w", roleID, err)
	}
	return nil
}
