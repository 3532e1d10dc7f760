package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/kv"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func setupTestRedis(t *testing.T) (*kv.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kv.Wrap(rdb), mr
}

func TestBuckets(t *testing.T) {
	client, mr := setupTestRedis(t)
	buckets := NewBuckets(client)
	ctx := context.Background()

	_, ok, err := buckets.CheckDaily(ctx, 1, "money")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, buckets.ArmDaily(ctx, 1, "money"))
	remaining, ok, err := buckets.CheckDaily(ctx, 1, "money")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, Daily)

	// hourly is a separate bucket
	_, ok, err = buckets.CheckHourly(ctx, 1, "money")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(Daily)
	_, ok, err = buckets.CheckDaily(ctx, 1, "money")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuckets_ArmExtends(t *testing.T) {
	client, mr := setupTestRedis(t)
	buckets := NewBuckets(client)
	ctx := context.Background()

	require.NoError(t, buckets.Arm(ctx, 1, "x", 10*time.Second))
	mr.FastForward(8 * time.Second)
	require.NoError(t, buckets.Arm(ctx, 1, "x", 10*time.Second))
	mr.FastForward(8 * time.Second)

	remaining, ok, err := buckets.Check(ctx, 1, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, remaining)
}

func TestBuckets_CheckWithinArmedTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	buckets := NewBuckets(client)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		mr.FlushAll()
		ttl := time.Duration(rapid.IntRange(1, 100000).Draw(t, "ttl_s")) * time.Second
		elapsed := time.Duration(rapid.Int64Range(0, int64(ttl/time.Second)-1).Draw(t, "elapsed_s")) * time.Second

		require.NoError(t, buckets.Arm(ctx, 9, "prop", ttl))
		mr.FastForward(elapsed)

		remaining, ok, err := buckets.Check(ctx, 9, "prop")
		require.NoError(t, err)
		require.True(t, ok)
		require.Greater(t, remaining, time.Duration(0))
		require.LessOrEqual(t, remaining, ttl)
	})
}

func TestAntiSpam_Allow(t *testing.T) {
	client, mr := setupTestRedis(t)
	spam := NewAntiSpam(client)
	ctx := context.Background()

	for i := 0; i < SpamLimit; i++ {
		allowed, err := spam.Allow(ctx, 1)
		require.NoError(t, err)
		assert.True(t, allowed, "message %d should be allowed", i+1)
	}

	allowed, err := spam.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	// other users are unaffected
	allowed, err = spam.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, allowed)

	mr.FastForward(SpamWindow)
	allowed, err = spam.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAntiSpam_RepairsMissingTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	spam := NewAntiSpam(client)
	ctx := context.Background()

	for i := 0; i < SpamLimit; i++ {
		_, err := mr.RPush(kv.AntispamKey(1), "1")
		require.NoError(t, err)
	}

	allowed, err := spam.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, SpamWindow, mr.TTL(kv.AntispamKey(1)))

	mr.FastForward(SpamWindow)
	allowed, err = spam.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// A ring admits at most SpamLimit messages between its creation and expiry.
func TestAntiSpam_BoundedPerWindow(t *testing.T) {
	client, mr := setupTestRedis(t)
	spam := NewAntiSpam(client)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		mr.FlushAll()
		steps := rapid.SliceOfN(rapid.IntRange(0, 20), 1, 200).Draw(t, "gaps_s")

		var elapsed time.Duration
		var windowStart time.Duration
		windowOpen := false
		admitted := 0

		for _, gap := range steps {
			mr.FastForward(time.Duration(gap) * time.Second)
			elapsed += time.Duration(gap) * time.Second

			if windowOpen && elapsed-windowStart >= SpamWindow {
				windowOpen = false
			}
			allowed, err := spam.Allow(ctx, 3)
			require.NoError(t, err)
			if !windowOpen {
				require.True(t, allowed, "first message of a window must pass")
				windowOpen = true
				windowStart = elapsed
				admitted = 0
			}
			if allowed {
				admitted++
			}
			require.LessOrEqual(t, admitted, SpamLimit)
		}
	})
}

func TestLimiter_Take(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewLimiter(client)
	ctx := context.Background()
	key := LimiterKey("daily", "user", 42)
	assert.Equal(t, "ratelimit:daily:user:42", key)

	for i := 0; i < 3; i++ {
		retry, err := limiter.Take(ctx, key, 3, 10*time.Second)
		require.NoError(t, err)
		assert.Zero(t, retry)
	}

	retry, err := limiter.Take(ctx, key, 3, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, retry)

	mr.FastForward(4 * time.Second)
	retry, err = limiter.Take(ctx, key, 3, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, retry)

	mr.FastForward(6 * time.Second)
	retry, err = limiter.Take(ctx, key, 3, 10*time.Second)
	require.NoError(t, err)
	assert.Zero(t, retry)
}
