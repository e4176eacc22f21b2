// Package store implements the key-value store primitives the moderation
// core depends on (§6 of the spec): get/set/del/incrBy/zAdd/zRange/expire,
// the primitive set the cost tracker, trust manager, and coalescer require.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// ZMember is one member of a sorted-set add operation.
type ZMember struct {
	Member string
	Score  float64
}

// Store is the narrow key-value interface every moderation component is
// built against. Implementations: RedisStore (production) and MemoryStore
// (tests, dry-run/single-process deployments).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	ZAdd(ctx context.Context, key string, members ...ZMember) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	Close() error
}
