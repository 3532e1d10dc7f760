package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zlib"
)

// MessageLogLimit caps each user's analytics log
const MessageLogLimit = 5000

// MessageRecord is one analytics entry
type MessageRecord struct {
	MessageID int64     `json:"message_id"`
	GuildID   int64     `json:"guild_id"`
	ChannelID int64     `json:"channel_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LogMessage appends a compressed record unless the user opted out.
// It reports whether anything was written.
func (c *Client) LogMessage(ctx context.Context, userID int64, record MessageRecord) (bool, error) {
	optedOut, err := c.rdb.SIsMember(ctx, OptOutKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check opt-out for %d: %w", userID, err)
	}
	if optedOut {
		return false, nil
	}

	payload, err := encodeRecord(record)
	if err != nil {
		return false, err
	}
	if err := c.PushCapped(ctx, MessagesKey(userID), payload, MessageLogLimit); err != nil {
		return false, err
	}
	return true, nil
}

// OptOut excludes the user from analytics and drops what was collected
func (c *Client) OptOut(ctx context.Context, userID int64) error {
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, OptOutKey, userID)
	pipe.Del(ctx, MessagesKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to opt out %d: %w", userID, err)
	}
	return nil
}

func (c *Client) OptIn(ctx context.Context, userID int64) error {
	if err := c.rdb.SRem(ctx, OptOutKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to opt in %d: %w", userID, err)
	}
	return nil
}

// DecodeMessages reads back the user's analytics log, oldest first
func (c *Client) DecodeMessages(ctx context.Context, userID int64) ([]MessageRecord, error) {
	raw, err := c.rdb.LRange(ctx, MessagesKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages for %d: %w", userID, err)
	}

	out := make([]MessageRecord, 0, len(raw))
	for _, entry := range raw {
		rec, err := decodeRecord([]byte(entry))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeRecord(record MessageRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message record: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress message record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress message record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(payload []byte) (MessageRecord, error) {
	var rec MessageRecord

	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return rec, fmt.Errorf("failed to open message record: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return rec, fmt.Errorf("failed to decompress message record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode message record: %w", err)
	}
	return rec, nil
}
