package credential

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
	"github.com/go-checkin-agent/internal/pkg/classify"
	"github.com/go-checkin-agent/internal/pkg/validate"
)

// Service obtains check-in credentials: fresh from the authority when it can be
// reached, from the local cache only when the network is down.
type Service interface {
	GetToken(ctx context.Context, eventID string) (*domain.IssuedToken, error)
	// SweepExpired removes cached credentials whose check-in window has closed.
	SweepExpired(ctx context.Context) int
}

type bearerSource interface {
	Bearer(ctx context.Context) (string, error)
}

type tokenIssuer interface {
	IssueToken(ctx context.Context, bearer, eventID string) (*authority.TokenResponse, error)
}

// ServiceDeps groups the collaborators of the credential service.
type ServiceDeps struct {
	Sessions  bearerSource
	Authority tokenIssuer
	Cache     *TokenCache
	Now       func() time.Time
}

type service struct {
	sessions  bearerSource
	authority tokenIssuer
	cache     *TokenCache
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		sessions:  deps.Sessions,
		authority: deps.Authority,
		cache:     deps.Cache,
		now:       now,
	}
}

func (s *service) GetToken(ctx context.Context, eventID string) (*domain.IssuedToken, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event id is required: %w", domain.ErrBadRequest)
	}

	bearer, err := s.sessions.Bearer(ctx)
	if err != nil {
		return nil, err
	}

	resp, callErr := s.authority.IssueToken(ctx, bearer, eventID)
	outcome := classify.Classify(callErr, resp != nil)

	switch outcome.Kind {
	case classify.ServerReached:
		if callErr == nil && resp != nil && resp.Success {
			return s.accept(ctx, eventID, resp)
		}
		if resp == nil && outcome.Status >= 200 && outcome.Status <= 299 {
			return nil, fmt.Errorf("issue token for %s: %v: %w", eventID, callErr, domain.ErrMalformedResponse)
		}
		// The authority answered and declined: whatever we cached is no longer good.
		s.cache.Invalidate(ctx, eventID)
		return nil, rejection(resp, outcome.Status, callErr)

	case classify.Network:
		cached := s.cache.Read(ctx, eventID)
		if !cached.UsableAt(s.now()) {
			return nil, callErr
		}
		slog.Info("authority unreachable, serving cached check-in token",
			"event_id", eventID, "cached_at", cached.CachedAt, "err", callErr)
		return &domain.IssuedToken{Token: cached.Token, Event: cached.Event, FromCache: true}, nil

	default:
		return nil, callErr
	}
}

func (s *service) SweepExpired(ctx context.Context) int {
	return s.cache.SweepExpired(ctx)
}

// accept checks a success payload and caches it. A payload we could not show
// again later is refused rather than cached.
func (s *service) accept(ctx context.Context, eventID string, resp *authority.TokenResponse) (*domain.IssuedToken, error) {
	if resp.Token == "" || resp.Event == nil {
		return nil, fmt.Errorf("issue token for %s: missing token or event: %w", eventID, domain.ErrMalformedResponse)
	}
	if err := validate.Struct(resp.Event); err != nil {
		return nil, fmt.Errorf("issue token for %s: %v: %w", eventID, err, domain.ErrMalformedResponse)
	}
	if resp.Event.ID != eventID {
		return nil, fmt.Errorf("issue token for %s: response is for event %s: %w", eventID, resp.Event.ID, domain.ErrMalformedResponse)
	}

	s.cache.Write(ctx, eventID, domain.CachedToken{
		Token:    resp.Token,
		Event:    *resp.Event,
		CachedAt: s.now().UTC(),
	})
	return &domain.IssuedToken{Token: resp.Token, Event: *resp.Event}, nil
}

func rejection(resp *authority.TokenResponse, status int, callErr error) *domain.RejectionError {
	rej := &domain.RejectionError{Status: status}
	if resp != nil {
		rej.Code = resp.ErrorCode
		rej.Message = resp.Error
	}
	if rej.Message == "" {
		if callErr != nil {
			rej.Message = callErr.Error()
		} else {
			rej.Message = "check-in token request was declined"
		}
	}
	return rej
}
