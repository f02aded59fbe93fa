package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultLedgerTTL = 7 * 24 * time.Hour

// RedisLedger records claims as SETNX keys that expire after ttl.
type RedisLedger struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisLedger(rdb redis.Cmdable, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{rdb: rdb, ttl: ttl, prefix: "beacon:sent"}
}

func (l *RedisLedger) key(key, recipient string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, key, recipient)
}

func (l *RedisLedger) Claim(ctx context.Context, key, recipient string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key(key, recipient), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key, recipient string) error {
	if err := l.rdb.Del(ctx, l.key(key, recipient)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// NewOpportunityKey scopes claims to one opportunity's publish blast.
func NewOpportunityKey(opportunityID int64) string {
	return fmt.Sprintf("new-opportunity:%d", opportunityID)
}
