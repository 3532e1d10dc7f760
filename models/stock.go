package models

// Stock maps a channel to a price and the number of shares in circulation
type Stock struct {
	ChannelID int64   `db:"channel_id"`
	GuildID   int64   `db:"guild_id"`
	Price     float64 `db:"price"`
	Amount    int64   `db:"amount"`
}

// UserStock is a user's holding in a single stock
type UserStock struct {
	UserID         int64    `db:"user_id"`
	StockID        int64    `db:"stock_id"`
	Amount         int64    `db:"amount"`
	Crashed        bool     `db:"crashed"`
	CrashedAtPrice *float64 `db:"crashed_at_price"`
}
