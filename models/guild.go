package models

// Guild is a chat server. Rows are created lazily the first time a guild is
// referenced and never deleted.
type Guild struct {
	ID              int64  `db:"id"`
	StocksEnabled   bool   `db:"stocks_enabled"`
	BulletinChannel *int64 `db:"bulletin_channel"`
	BulletinMessage *int64 `db:"bulletin_message"`
}

// Setting is one named, JSON-encoded per-guild value
type Setting struct {
	GuildID int64  `db:"guild_id"`
	Name    string `db:"name"`
	Value   []byte `db:"value"`
}

// Well-known setting names
const (
	SettingXPIgnoredChannels = "xp_ignored_channels"
	SettingLevelUpMessages   = "levelup_messages"
	SettingAnalytics         = "analytics"
	SettingRolestate         = "rolestate_enabled"
)
