package models

// Rolestate snapshots a departing member so their roles and nickname can be
// restored when they rejoin.
type Rolestate struct {
	GuildID int64   `db:"guild_id"`
	UserID  int64   `db:"user_id"`
	RoleIDs []int64 `db:"role_ids"`
	Nick    *string `db:"nick"`
}

// RolemeRole is a role members may grant themselves
type RolemeRole struct {
	RoleID         int64 `db:"role_id"`
	GuildID        int64 `db:"guild_id"`
	SelfAssignable bool  `db:"self_assignable"`
	IsColour       bool  `db:"is_colour"`
}
