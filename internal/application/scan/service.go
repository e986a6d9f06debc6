package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-checkin-agent/internal/domain"
)

const pendingKey = "pending_scan"

// DefaultTTL is how long a scanned credential is held before it must be rescanned.
const DefaultTTL = 10 * time.Minute

// Service holds at most one scanned credential awaiting submission.
type Service interface {
	Save(ctx context.Context, token string) (*domain.PendingScan, error)
	// Get returns the pending scan, or nil when there is none or it has expired.
	Get(ctx context.Context) (*domain.PendingScan, error)
	Clear(ctx context.Context)
	IsValid(rec *domain.PendingScan, now time.Time) bool
}

type scanStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

type hintDecoder interface {
	DisplayHint(token string) (domain.DisplayHint, error)
}

// ServiceDeps groups the collaborators of the scan service.
type ServiceDeps struct {
	Store   scanStore
	Decoder hintDecoder
	TTL     time.Duration
	Now     func() time.Time
}

type service struct {
	store   scanStore
	decoder hintDecoder
	ttl     time.Duration
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{store: deps.Store, decoder: deps.Decoder, ttl: ttl, now: now}
}

// Save decodes the display hint from token and stores the scan. A token whose
// payload cannot be decoded is refused and nothing is stored.
func (s *service) Save(ctx context.Context, token string) (*domain.PendingScan, error) {
	hint, err := s.decoder.DisplayHint(token)
	if err != nil {
		return nil, err
	}
	scannedAt := s.now().UTC()
	rec := &domain.PendingScan{
		Token:     token,
		EventName: hint.EventName,
		ScannedAt: scannedAt,
		ExpiresAt: scannedAt.Add(s.ttl),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal pending scan: %w", err)
	}
	if err := s.store.Put(ctx, pendingKey, b, rec.ExpiresAt); err != nil {
		slog.Warn("failed to persist pending scan", "err", err)
	}
	return rec, nil
}

func (s *service) Get(ctx context.Context) (*domain.PendingScan, error) {
	b, err := s.store.Get(ctx, pendingKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending scan: %w", err)
	}
	var rec domain.PendingScan
	if err := json.Unmarshal(b, &rec); err != nil {
		slog.Warn("discarding undecodable pending scan", "err", err)
		s.Clear(ctx)
		return nil, nil
	}
	if !s.IsValid(&rec, s.now()) {
		s.Clear(ctx)
		return nil, nil
	}
	return &rec, nil
}

func (s *service) Clear(ctx context.Context) {
	if err := s.store.Delete(ctx, pendingKey); err != nil {
		slog.Warn("failed to clear pending scan", "err", err)
	}
}

func (s *service) IsValid(rec *domain.PendingScan, now time.Time) bool {
	return rec.ValidAt(now)
}
