// Package cache contains the Redis-backed notification deduplication used by
// the sweep passes.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// warningKeyPrefix is the prefix for all warning deduplication keys
	warningKeyPrefix = "user_warning:"
	// DefaultWarningCooldown caps repeat warnings of the same kind per user
	DefaultWarningCooldown = 20 * time.Hour
)

// WarningType distinguishes warning kinds so each gets its own cooldown.
type WarningType string

const (
	WarningExpiringSoon WarningType = "expiring_soon"
	WarningLowBalance   WarningType = "low_balance"
)

// WarningDeduplicator suppresses repeat user warnings using Redis keys with
// a TTL. SetNX makes the check-and-mark atomic so concurrent sweep runs never
// double-send.
type WarningDeduplicator struct {
	client *redis.Client
}

// NewWarningDeduplicator creates a new WarningDeduplicator instance
func NewWarningDeduplicator(client *redis.Client) *WarningDeduplicator {
	return &WarningDeduplicator{client: client}
}

// buildKey builds the Redis key for warning deduplication
// Format: user_warning:{type}:{user_external_id}:{scope}
func (d *WarningDeduplicator) buildKey(warningType WarningType, userExternalID int64, scope string) string {
	return fmt.Sprintf("%s%s:%d:%s", warningKeyPrefix, warningType, userExternalID, scope)
}

// TryAcquire atomically claims the right to send one warning. It returns
// true when the caller should send; subsequent calls within the TTL return
// false. Scope narrows the cooldown to one subject, such as a device ID.
func (d *WarningDeduplicator) TryAcquire(ctx context.Context, warningType WarningType, userExternalID int64, scope string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultWarningCooldown
	}
	key := d.buildKey(warningType, userExternalID, scope)

	acquired, err := d.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire warning lock: %w", err)
	}
	return acquired, nil
}

// Clear drops the cooldown, used when the underlying condition resolved and
// a recurrence warrants a fresh warning.
func (d *WarningDeduplicator) Clear(ctx context.Context, warningType WarningType, userExternalID int64, scope string) error {
	key := d.buildKey(warningType, userExternalID, scope)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear warning lock: %w", err)
	}
	return nil
}
