package credential

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-checkin-agent/internal/domain"
)

const keyPrefix = "checkin_token:"

// kvStore is the slice of a KV backend the cache needs.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// TokenCache keeps the last issued credential per event. Every operation is
// best effort: storage failures are logged and never reach the caller.
type TokenCache struct {
	store kvStore
	now   func() time.Time
}

func NewTokenCache(store kvStore, now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{store: store, now: now}
}

func cacheKey(eventID string) string { return keyPrefix + eventID }

// Write replaces the cached credential for eventID.
func (c *TokenCache) Write(ctx context.Context, eventID string, tok domain.CachedToken) {
	b, err := json.Marshal(tok)
	if err != nil {
		slog.Warn("failed to encode cached token", "event_id", eventID, "err", err)
		return
	}
	if err := c.store.Put(ctx, cacheKey(eventID), b, tok.Event.CheckInCloses); err != nil {
		slog.Warn("failed to write cached token", "event_id", eventID, "err", err)
	}
}

// Read returns the cached credential for eventID, or nil when there is none or
// it cannot be read.
func (c *TokenCache) Read(ctx context.Context, eventID string) *domain.CachedToken {
	b, err := c.store.Get(ctx, cacheKey(eventID))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to read cached token", "event_id", eventID, "err", err)
		}
		return nil
	}
	var tok domain.CachedToken
	if err := json.Unmarshal(b, &tok); err != nil {
		slog.Warn("discarding undecodable cached token", "event_id", eventID, "err", err)
		return nil
	}
	return &tok
}

// Invalidate drops the cached credential for eventID. Deleting a missing entry is a no-op.
func (c *TokenCache) Invalidate(ctx context.Context, eventID string) {
	if err := c.store.Delete(ctx, cacheKey(eventID)); err != nil {
		slog.Warn("failed to invalidate cached token", "event_id", eventID, "err", err)
	}
}

// SweepExpired removes every cached credential whose check-in window has closed,
// plus records that can no longer be decoded. It returns how many were removed.
func (c *TokenCache) SweepExpired(ctx context.Context) int {
	records, err := c.store.List(ctx, keyPrefix)
	if err != nil {
		slog.Warn("failed to list cached tokens", "err", err)
		return 0
	}
	now := c.now()
	removed := 0
	for key, b := range records {
		var tok domain.CachedToken
		if err := json.Unmarshal(b, &tok); err == nil && tok.UsableAt(now) {
			continue
		}
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to sweep cached token", "event_id", strings.TrimPrefix(key, keyPrefix), "err", err)
			continue
		}
		removed++
	}
	return removed
}
