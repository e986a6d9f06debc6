package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
	"github.com/go-checkin-agent/internal/pkg/validate"
)

const currentKey = "session:current"

// Service owns the caller's session with the check-in authority.
type Service interface {
	// Bearer returns an access token fit for the next request, refreshing the
	// session first when it expires within the refresh window.
	Bearer(ctx context.Context) (string, error)
	Current(ctx context.Context) (*domain.Session, error)
	Handover(ctx context.Context, in domain.SessionInput) (*domain.Session, error)
	Clear(ctx context.Context) error
}

type sessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

type refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*authority.RefreshResponse, error)
}

type expiryReader interface {
	ExpiresAt(token string) (time.Time, error)
}

// ServiceDeps groups the collaborators of the session service.
type ServiceDeps struct {
	Store         sessionStore
	Authority     refresher
	Tokens        expiryReader
	RefreshWindow time.Duration
	Now           func() time.Time
}

type service struct {
	store         sessionStore
	authority     refresher
	tokens        expiryReader
	refreshWindow time.Duration
	now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:         deps.Store,
		authority:     deps.Authority,
		tokens:        deps.Tokens,
		refreshWindow: deps.RefreshWindow,
		now:           now,
	}
}

func (s *service) Bearer(ctx context.Context) (string, error) {
	sess, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if !sess.ExpiresWithin(s.now(), s.refreshWindow) {
		return sess.AccessToken, nil
	}
	refreshed, err := s.refresh(ctx, sess)
	if err != nil {
		// A failed refresh is an authentication problem, never a connectivity one.
		return "", fmt.Errorf("refresh session: %v: %w", err, domain.ErrUnauthorized)
	}
	return refreshed.AccessToken, nil
}

func (s *service) Current(ctx context.Context) (*domain.Session, error) {
	raw, err := s.store.Get(ctx, currentKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to read session", "err", err)
		}
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.AccessToken == "" {
		slog.Warn("discarding unreadable session record", "err", err)
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}
	return &sess, nil
}

func (s *service) Handover(ctx context.Context, in domain.SessionInput) (*domain.Session, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	sess := s.newSession(in.AccessToken, in.RefreshToken)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, currentKey)
}

func (s *service) refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if sess.RefreshToken == "" {
		return nil, errors.New("session has no refresh token")
	}
	out, err := s.authority.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	refreshToken := out.RefreshToken
	if refreshToken == "" {
		refreshToken = sess.RefreshToken
	}
	next := s.newSession(out.AccessToken, refreshToken)
	if err := s.save(ctx, next); err != nil {
		// The new bearer is still good for this request.
		slog.Warn("failed to persist refreshed session", "err", err)
	}
	return next, nil
}

func (s *service) newSession(accessToken, refreshToken string) *domain.Session {
	exp, err := s.tokens.ExpiresAt(accessToken)
	if err != nil {
		slog.Debug("access token carries no readable expiry", "err", err)
	}
	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exp,
		UpdatedAt:    s.now().UTC(),
	}
}

func (s *service) save(ctx context.Context, sess *domain.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.store.Put(ctx, currentKey, b, time.Time{})
}
