package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/kv"

	"github.com/redis/go-redis/v9"
)

// Anti-spam ring parameters
const (
	SpamLimit  = 15
	SpamWindow = 60 * time.Second
)

// The ring is created with a fixed expiry; pushes never extend it. A ring
// that somehow lost its TTL gets one back before the length check.
var antispamScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

if redis.call('EXISTS', key) == 0 then
	redis.call('RPUSH', key, '1')
	redis.call('EXPIRE', key, window)
	return 1
end

if redis.call('TTL', key) == -1 then
	redis.call('EXPIRE', key, window)
end

if redis.call('LLEN', key) >= limit then
	return 0
end

redis.call('RPUSH', key, '1')
return 1
`)

// AntiSpam gates experience awards per user
type AntiSpam struct {
	kv *kv.Client
}

func NewAntiSpam(client *kv.Client) *AntiSpam {
	return &AntiSpam{kv: client}
}

// Allow records one message and reports whether it may earn experience
func (a *AntiSpam) Allow(ctx context.Context, userID int64) (bool, error) {
	res, err := antispamScript.Run(ctx, a.kv.Redis(),
		[]string{kv.AntispamKey(userID)},
		SpamLimit, int(SpamWindow/time.Second),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to run anti-spam check for %d: %w", userID, err)
	}
	return res == 1, nil
}

// Reconcile repairs rings left without an expiry
func (a *AntiSpam) Reconcile(ctx context.Context) (int, error) {
	return a.kv.ReconcileUnboundedAntispam(ctx)
}
