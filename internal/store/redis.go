// redis.go -- consumed-state ledger.
//
// Optional. When enabled, a decoded login state can complete at most once within
// its expiry window. Keys hold a hash of the state, never the state itself, and
// expire together with the session cookie.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "obol:state:"

// NewRedisClient parses redisURL, connects, and pings.
// One client (one connection pool) is shared by everything that needs Redis.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisStateLedger records consumed states in Redis.
type RedisStateLedger struct {
	rdb *redis.Client
}

// NewRedisStateLedger wraps an existing client; the caller owns Close.
func NewRedisStateLedger(rdb *redis.Client) *RedisStateLedger {
	return &RedisStateLedger{rdb: rdb}
}

// Consume marks state as used for ttl, which must cover the state's remaining lifetime.
// Returns ErrStateConsumed if it was already marked.
func (l *RedisStateLedger) Consume(ctx context.Context, state string, ttl time.Duration) error {
	ok, err := l.rdb.SetNX(ctx, stateKey(state), 1, max(ttl, time.Second)).Result()
	if err != nil {
		return fmt.Errorf("recording consumed state: %w", err)
	}
	if !ok {
		return ErrStateConsumed
	}
	return nil
}

// CheckHealth pings Redis.
func (l *RedisStateLedger) CheckHealth(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func stateKey(state string) string {
	sum := sha256.Sum256([]byte(state))
	return stateKeyPrefix + hex.EncodeToString(sum[:])
}

// NoopStateLedger is used when Redis is not configured. Every state is accepted.
type NoopStateLedger struct{}

// Consume always succeeds.
func (NoopStateLedger) Consume(context.Context, string, time.Duration) error { return nil }

// CheckHealth reports ErrLedgerDisabled.
func (NoopStateLedger) CheckHealth(context.Context) error { return ErrLedgerDisabled }
