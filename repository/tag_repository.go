package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// TagRepository implements the TagRepository interface
type TagRepository struct {
	q queryable
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *database.DB) *TagRepository {
	return &TagRepository{q: db.Pool}
}

func newTagRepositoryWithTx(tx queryable) *TagRepository {
	return &TagRepository{q: tx}
}

// Create inserts a tag and fills in its ID and timestamp
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tags (guild_id, owner_id, name, content, is_lua)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, last_modified
	`
	err := r.q.QueryRow(ctx, query, tag.GuildID, tag.OwnerID, tag.Name, tag.Content, tag.IsLua).
		Scan(&tag.ID, &tag.LastModified)
	if err != nil {
		return fmt.Errorf("failed to create tag %q: %w", tag.Name, err)
	}
	return nil
}

func (r *TagRepository) AddAlias(ctx context.Context, guildID int64, alias string, tagID int64) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO tag_aliases (guild_id, alias, tag_id) VALUES ($1, $2, $3)`,
		guildID, alias, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to add alias %q: %w", alias, err)
	}
	return nil
}

// GetByNameOrAlias prefers a direct name match over an alias
func (r *TagRepository) GetByNameOrAlias(ctx context.Context, guildID int64, name string) (*models.Tag, error) {
	query := `
		SELECT t.id, t.guild_id, t.owner_id, t.name, t.content, t.is_lua, t.last_modified
		FROM tags t
		WHERE t.guild_id = $1 AND t.name = $2
		UNION ALL
		SELECT t.id, t.guild_id, t.owner_id, t.name, t.content, t.is_lua, t.last_modified
		FROM tag_aliases a
		JOIN tags t ON t.id = a.tag_id
		WHERE a.guild_id = $1 AND a.alias = $2
		LIMIT 1
	`

	var tag models.Tag
	err := r.q.QueryRow(ctx, query, guildID, name).Scan(
		&tag.ID, &tag.GuildID, &tag.OwnerID, &tag.Name, &tag.Content, &tag.IsLua, &tag.LastModified,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}
	return &tag, nil
}
