package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/models"

	"github.com/jackc/pgx/v5"
)

// ReminderRepository implements the ReminderRepository interface
type ReminderRepository struct {
	q queryable
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{q: db.Pool}
}

func newReminderRepositoryWithTx(tx queryable) *ReminderRepository {
	return &ReminderRepository{q: tx}
}

const reminderColumns = `id, user_id, channel_id, reminding_at, text, enabled`

func (r *ReminderRepository) scanAll(rows pgx.Rows) ([]*models.Reminder, error) {
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if err := rows.Scan(&rem.ID, &rem.UserID, &rem.ChannelID, &rem.RemindingAt, &rem.Text, &rem.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, &rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}
	return reminders, nil
}

// Create inserts a reminder and fills in its ID
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	query := `
		INSERT INTO reminders (user_id, channel_id, reminding_at, text, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		reminder.UserID, reminder.ChannelID, reminder.RemindingAt, reminder.Text, reminder.Enabled,
	).Scan(&reminder.ID)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// ListDue returns enabled reminders due strictly before the horizon, oldest first
func (r *ReminderRepository) ListDue(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE enabled AND reminding_at < $1
		ORDER BY reminding_at, id
	`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return r.scanAll(rows)
}

// Disable flips the enabled flag. Concurrent callers race on the WHERE
// clause; exactly one of them sees a row affected.
func (r *ReminderRepository) Disable(ctx context.Context, reminderID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `UPDATE reminders SET enabled = FALSE WHERE id = $1 AND enabled`, reminderID)
	if err != nil {
		return false, fmt.Errorf("failed to disable reminder %d: %w", reminderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE user_id = $1 AND enabled
		ORDER BY reminding_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders for user %d: %w", userID, err)
	}
	return r.scanAll(rows)
}
