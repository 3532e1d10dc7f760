package models

import "time"

// Reminder is a one-shot message posted to a channel at RemindingAt
type Reminder struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	ChannelID   int64     `db:"channel_id"`
	RemindingAt time.Time `db:"reminding_at"`
	Text        string    `db:"text"`
	Enabled     bool      `db:"enabled"`
}
