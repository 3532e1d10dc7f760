package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/kv"

	"github.com/redis/go-redis/v9"
)

// Returns 0 when the call is admitted, otherwise the milliseconds until the window resets
var limiterScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local window = tonumber(ARGV[2])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], window)
end
if n <= tonumber(ARGV[1]) then
	return 0
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], window)
	ttl = window
end
return ttl
`)

// Limiter is a fixed-window counter used for command cooldowns
type Limiter struct {
	kv *kv.Client
}

func NewLimiter(client *kv.Client) *Limiter {
	return &Limiter{kv: client}
}

// LimiterKey names the counter for one command and scope
func LimiterKey(command, scope string, id int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", command, scope, id)
}

// Take consumes one slot. A zero retryAfter means the call is admitted.
func (l *Limiter) Take(ctx context.Context, key string, limit int, window time.Duration) (time.Duration, error) {
	ms, err := limiterScript.Run(ctx, l.kv.Redis(), []string{key}, limit, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to take %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
