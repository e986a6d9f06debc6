package http

import (
	"context"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
)

// KVStore is the minimal interface the router requires from a record store.
// Get returns an error wrapping domain.ErrNotFound for missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// AuthorityClient is the minimal interface the router requires from the check-in authority client.
type AuthorityClient interface {
	IssueToken(ctx context.Context, bearer, eventID string) (*authority.TokenResponse, error)
	ValidateCheckIn(ctx context.Context, bearer string, req domain.CheckInRequest) (*authority.ValidationResponse, error)
	RefreshSession(ctx context.Context, refreshToken string) (*authority.RefreshResponse, error)
}

// TokenInspector is the minimal interface the router requires to read untrusted token payloads.
type TokenInspector interface {
	DisplayHint(token string) (domain.DisplayHint, error)
	ExpiresAt(token string) (time.Time, error)
}

// ReceiptArchive is the minimal interface the router requires from the receipt archive.
type ReceiptArchive interface {
	Archive(ctx context.Context, attendance *domain.Attendance, event *domain.Event) (string, error)
}
