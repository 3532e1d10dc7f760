package kv

import "context"

const (
	fieldLastSeen    = "last_seen"
	fieldLastMessage = "last_message"
)

func (c *Client) TouchLastSeen(ctx context.Context, userID int64) error {
	return c.HSetNow(ctx, PresenceKey(userID), fieldLastSeen)
}

func (c *Client) TouchLastMessage(ctx context.Context, userID int64) error {
	return c.HSetNow(ctx, PresenceKey(userID), fieldLastMessage)
}

func (c *Client) IncrMessageCount(ctx context.Context, userID int64) (int64, error) {
	return c.Incr(ctx, PresenceMsgsKey(userID))
}

// LastSeen returns epoch seconds, or 0 if never seen
func (c *Client) LastSeen(ctx context.Context, userID int64) (int64, error) {
	return c.HGetInt(ctx, PresenceKey(userID), fieldLastSeen)
}

func (c *Client) LastMessage(ctx context.Context, userID int64) (int64, error) {
	return c.HGetInt(ctx, PresenceKey(userID), fieldLastMessage)
}

func (c *Client) MessageCount(ctx context.Context, userID int64) (int64, error) {
	return c.GetInt(ctx, PresenceMsgsKey(userID))
}
