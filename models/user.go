package models

import (
	"time"
)

// User is the global (cross-guild) record for a chat user.
// Only Money is used here; per-guild experience lives in UserXP.
type User struct {
	ID           int64     `db:"id"`
	XP           int64     `db:"xp"`
	Level        int       `db:"level"`
	Money        int64     `db:"money"`
	LastModified time.Time `db:"last_modified"`
}

// UserXP is a user's experience inside a single guild
type UserXP struct {
	GuildID      int64     `db:"guild_id"`
	UserID       int64     `db:"user_id"`
	XP           int64     `db:"xp"`
	Level        int       `db:"level"`
	LastModified time.Time `db:"last_modified"`
}

// StartingMoney is credited to users on first reference
const StartingMoney int64 = 200
