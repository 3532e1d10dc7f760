package cooldown

import (
	"context"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/kv"
)

// Bucket lifetimes used by the economy commands
const (
	Daily  = 24 * time.Hour
	Hourly = time.Hour
)

// Buckets are named per-user cooldowns stored as expiring sentinels
type Buckets struct {
	kv *kv.Client
}

func NewBuckets(client *kv.Client) *Buckets {
	return &Buckets{kv: client}
}

// Check reports the remaining cooldown. ok is false when none is armed.
func (b *Buckets) Check(ctx context.Context, userID int64, name string) (time.Duration, bool, error) {
	ttl, err := b.kv.TTL(ctx, kv.ExpKey(userID, name))
	if err != nil {
		return 0, false, err
	}
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// Arm starts (or restarts) the cooldown
func (b *Buckets) Arm(ctx context.Context, userID int64, name string, ttl time.Duration) error {
	return b.kv.SetSentinel(ctx, kv.ExpKey(userID, name), ttl)
}

func (b *Buckets) CheckDaily(ctx context.Context, userID int64, name string) (time.Duration, bool, error) {
	return b.Check(ctx, userID, name+"_daily")
}

func (b *Buckets) ArmDaily(ctx context.Context, userID int64, name string) error {
	return b.Arm(ctx, userID, name+"_daily", Daily)
}

func (b *Buckets) CheckHourly(ctx context.Context, userID int64, name string) (time.Duration, bool, error) {
	return b.Check(ctx, userID, name+"_hourly")
}

func (b *Buckets) ArmHourly(ctx context.Context, userID int64, name string) error {
	return b.Arm(ctx, userID, name+"_hourly", Hourly)
}
