// Package coalesce implements the Request Coalescer (§4.10): it ensures
// that multiple concurrent cascades for the same user and AI question set
// are served by a single in-flight provider call, with every other caller
// polling the result cache instead of issuing its own call.
package coalesce

import (
	"context"
	"time"

	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/store"
)

const (
	lockTTL      = 60 * time.Second
	pollInterval = 1 * time.Second
	maxPolls     = 30
)

// Coalescer serializes concurrent work on the same logical key.
type Coalescer struct {
	store store.Store
	sleep func(time.Duration)
}

// New returns a Coalescer.
func New(s store.Store) *Coalescer {
	return &Coalescer{store: s, sleep: time.Sleep}
}

// AcquireLock attempts to become the sole owner of key for the duration
// of one provider call. ownerID is a correlation id distinguishing this
// caller from any other racing to acquire the same key.
func (c *Coalescer) AcquireLock(ctx context.Context, key, ownerID string) (bool, error) {
	return c.store.SetNX(ctx, keyspace.Coalesce(key), ownerID, lockTTL)
}

// ReleaseLock releases key, but only if ownerID still holds it — a lock
// that has already expired and been re-acquired by another caller must
// not be released out from under its new owner.
func (c *Coalescer) ReleaseLock(ctx context.Context, key, ownerID string) error {
	current, err := c.store.Get(ctx, keyspace.Coalesce(key))
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if current != ownerID {
		return nil
	}
	return c.store.Del(ctx, keyspace.Coalesce(key))
}

// WaitForResult polls resultKey on a bounded schedule (≤30 attempts at
// 1s) for a value written by the lock's acquirer. Returns ("", false) on
// timeout with no error — callers should fail closed on that outcome.
func (c *Coalescer) WaitForResult(ctx context.Context, resultKey string) (string, bool, error) {
	for attempt := 0; attempt < maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		default:
		}

		value, err := c.store.Get(ctx, resultKey)
		if err == nil {
			return value, true, nil
		}
		if err != store.ErrNotFound {
			return "", false, err
		}

		if attempt < maxPolls-1 {
			c.sleep(pollInterval)
		}
	}
	return "", false, nil
}
