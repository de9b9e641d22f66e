// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix = "usage:"
	// redisRecordTTL keeps yesterday's records around briefly for inspection,
	// then lets them expire on their own
	redisRecordTTL = 48 * time.Hour
)

// RedisLedger implements Ledger on a remote Redis store. Each identity's
// current-day counters live in a hash keyed by identity and date, so stale
// records are never read: a new day simply addresses a new key.
type RedisLedger struct {
	client *redis.Client

	// Now is the clock source, overridable in tests
	Now func() time.Time
}

// RedisConfig contains connection settings for the usage store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisLedger connects to Redis and verifies the connection
func NewRedisLedger(ctx context.Context, cfg RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisLedger{client: client, Now: time.Now}, nil
}

// NewRedisLedgerWithClient wraps an existing client (used in tests)
func NewRedisLedgerWithClient(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, Now: time.Now}
}

func (l *RedisLedger) key(identity string, now time.Time) string {
	return redisKeyPrefix + identity + ":" + Today(now)
}

// Get performs a read-through of the identity's current-day hash. A missing
// hash is returned as a zeroed record; it is materialized on first Apply.
func (l *RedisLedger) Get(ctx context.Context, identity string) (*UsageRecord, error) {
	if identity == "" {
		return nil, ErrInvalidIdentity
	}

	now := l.Now()
	fields, err := l.client.HGetAll(ctx, l.key(identity, now)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage hash: %w", err)
	}

	rec := NewUsageRecord(identity, now)
	if len(fields) == 0 {
		return rec, nil
	}

	if v, ok := fields["message_count"]; ok {
		rec.MessageCount, _ = strconv.Atoi(v)
	}
	if v, ok := fields["token_count"]; ok {
		rec.TokenCount, _ = strconv.Atoi(v)
	}
	if v, ok := fields["cost_usd"]; ok {
		rec.CumulativeCostUSD, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := fields["last_message_at"]; ok && v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.LastMessageAt = &t
		}
	}
	return rec, nil
}

// Apply increments the counters with a transactional pipeline. Redis hash
// increments are atomic, so concurrent applies for the same identity never
// lose updates.
func (l *RedisLedger) Apply(ctx context.Context, identity string, delta UsageDelta) error {
	if err := validateApply(identity, delta); err != nil {
		return err
	}

	now := l.Now()
	key := l.key(identity, now)

	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "message_count", int64(delta.Messages))
	pipe.HIncrBy(ctx, key, "token_count", int64(delta.Tokens))
	pipe.HIncrByFloat(ctx, key, "cost_usd", delta.CostUSD)
	if !delta.At.IsZero() {
		pipe.HSet(ctx, key, "last_message_at", delta.At.UTC().Format(time.RFC3339Nano))
	}
	pipe.Expire(ctx, key, redisRecordTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply usage delta: %w", err)
	}
	return nil
}

// Reset deletes every usage hash
func (l *RedisLedger) Reset(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete usage key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan usage keys: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
