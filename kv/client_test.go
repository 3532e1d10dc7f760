package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))

	// Addr is unusable once the server is closed
	mr.Close()
	_, err = NewClient(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "exp:5:daily", ExpKey(5, "daily"))
	assert.Equal(t, "antispam:5", AntispamKey(5))
	assert.Equal(t, "presence:5", PresenceKey(5))
	assert.Equal(t, "presence:5:msgs", PresenceMsgsKey(5))
	assert.Equal(t, "stocks:9", StockKey(9))
	assert.Equal(t, "messages_5", MessagesKey(5))
}

func TestClient_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	ttl, err := client.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, NoKey, ttl)

	require.NoError(t, mr.Set("unbounded", "1"))
	ttl, err = client.TTL(ctx, "unbounded")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)

	require.NoError(t, client.SetSentinel(ctx, "bounded", 30*time.Second))
	ttl, err = client.TTL(ctx, "bounded")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	ttl, err = client.TTL(ctx, "bounded")
	require.NoError(t, err)
	assert.Equal(t, NoKey, ttl)
}

func TestClient_PushCapped(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	for i := 1; i <= 65; i++ {
		require.NoError(t, client.PushStockPrice(ctx, 1, float64(i)))
	}

	history, err := client.StockHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, StockHistoryLimit)
	assert.Equal(t, 6.0, history[0])
	assert.Equal(t, 65.0, history[len(history)-1])
}

func TestClient_Presence(t *testing.T) {
	client, _ := setupTestRedis(t)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	seen, err := client.LastSeen(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, seen)

	require.NoError(t, client.TouchLastSeen(ctx, 3))
	require.NoError(t, client.TouchLastMessage(ctx, 3))
	_, err = client.IncrMessageCount(ctx, 3)
	require.NoError(t, err)
	_, err = client.IncrMessageCount(ctx, 3)
	require.NoError(t, err)

	seen, err = client.LastSeen(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), seen)

	last, err := client.LastMessage(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), last)

	count, err := client.MessageCount(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestClient_Analytics(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	rec := MessageRecord{MessageID: 1, GuildID: 2, ChannelID: 3, Content: "hello", Timestamp: time.Unix(1700000000, 0).UTC()}

	written, err := client.LogMessage(ctx, 7, rec)
	require.NoError(t, err)
	assert.True(t, written)

	records, err := client.DecodeMessages(ctx, 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Content)
	assert.True(t, rec.Timestamp.Equal(records[0].Timestamp))

	require.NoError(t, client.OptOut(ctx, 7))
	written, err = client.LogMessage(ctx, 7, rec)
	require.NoError(t, err)
	assert.False(t, written)

	records, err = client.DecodeMessages(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, client.OptIn(ctx, 7))
	written, err = client.LogMessage(ctx, 7, rec)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestClient_ReconcileUnboundedAntispam(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := mr.RPush(AntispamKey(1), "x")
	require.NoError(t, err)
	_, err = mr.RPush(AntispamKey(2), "x")
	require.NoError(t, err)
	mr.SetTTL(AntispamKey(2), time.Minute)
	require.NoError(t, mr.Set("unrelated", "1"))

	deleted, err := client.ReconcileUnboundedAntispam(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.False(t, mr.Exists(AntispamKey(1)))
	assert.True(t, mr.Exists(AntispamKey(2)))
	assert.True(t, mr.Exists("unrelated"))
}
