package models

import "time"

// Tag is a user-authored, per-guild template evaluated when its name is typed
type Tag struct {
	ID           int64     `db:"id"`
	GuildID      int64     `db:"guild_id"`
	OwnerID      int64     `db:"owner_id"`
	Name         string    `db:"name"`
	Content      string    `db:"content"`
	IsLua        bool      `db:"is_lua"`
	LastModified time.Time `db:"last_modified"`
}
