package repository

import (
	"context"
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `id, xp, level, money, last_modified`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.XP, &user.Level, &user.Money, &user.LastModified)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Ensure returns the user row, creating it with the starting balance if needed
func (r *UserRepository) Ensure(ctx context.Context, userID int64) (*models.User, error) {
	query := `
		INSERT INTO users (id, money)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, userID, models.StartingMoney))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	return user, nil
}

// GetByID retrieves a user, returning nil if absent
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

// AddMoney adjusts a balance atomically and returns the new value
func (r *UserRepository) AddMoney(ctx context.Context, userID int64, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET money = money + $2, last_modified = NOW()
		WHERE id = $1
		RETURNING money
	`

	var money int64
	err := r.q.QueryRow(ctx, query, userID, delta).Scan(&money)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("user %d not found", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add money for user %d: %w", userID, err)
	}
	return money, nil
}

// ListDecayable locks and returns every user outside the exempt bracket
func (r *UserRepository) ListDecayable(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE money < 0 OR money > 1343 ORDER BY id FOR UPDATE`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list decayable users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// SetMoney overwrites a balance
func (r *UserRepository) SetMoney(ctx context.Context, userID int64, money int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET money = $2, last_modified = NOW() WHERE id = $1`, userID, money)
	if err != nil {
		return fmt.Errorf("failed to set money for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}
