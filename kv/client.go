package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL sentinels as returned by Redis for missing and unbounded keys
const (
	NoKey    = time.Duration(-2)
	NoExpiry = time.Duration(-1)
)

// Options configures the connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps a go-redis client with the typed helpers the bot needs
type Client struct {
	rdb *redis.Client
	now func() time.Time
}

// NewClient connects and pings the server
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return Wrap(rdb), nil
}

// Wrap adapts an existing go-redis client
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, now: time.Now}
}

// Redis exposes the underlying client for scripts
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetSentinel writes a placeholder value that expires after ttl
func (c *Client) SetSentinel(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// TTL returns the remaining lifetime, NoKey when absent and NoExpiry when unbounded
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ttl of %s: %w", key, err)
	}
	return ttl, nil
}

// PushCapped appends value and drops the oldest entries beyond limit
func (c *Client) PushCapped(ctx context.Context, key string, value any, limit int64) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, value)
		pipe.LTrim(ctx, key, -limit, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push to %s: %w", key, err)
	}
	return nil
}

// ListFloats reads a whole list as floats, oldest first
func (c *Client) ListFloats(ctx context.Context, key string) ([]float64, error) {
	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt entry %q in %s: %w", s, key, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// HSetNow stores the current unix time in a hash field
func (c *Client) HSetNow(ctx context.Context, key, field string) error {
	if err := c.rdb.HSet(ctx, key, field, c.now().Unix()).Err(); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", key, field, err)
	}
	return nil
}

// HGetInt returns 0 when the field is absent
func (c *Client) HGetInt(ctx context.Context, key, field string) (int64, error) {
	v, err := c.rdb.HGet(ctx, key, field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s.%s: %w", key, field, err)
	}
	return v, nil
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return v, nil
}

// GetInt returns 0 when the key is absent
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

// ScanKeys walks the keyspace with SCAN rather than KEYS
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	return keys, nil
}
