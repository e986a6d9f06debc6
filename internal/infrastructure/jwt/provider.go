package jwtinfra

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the payload fields the agent reads from tokens it cannot verify.
// Nothing here is trusted: values are used for display and scheduling only.
type Claims struct {
	EventName string `json:"eventName,omitempty"`
	EventID   string `json:"eventId,omitempty"`
	jwt.RegisteredClaims
}

// Inspector decodes token payloads without verifying signatures. Verification
// happens only at the check-in authority.
type Inspector struct {
	parser *jwt.Parser
}

func NewInspector() *Inspector {
	// Some issuers pad base64url segments; accept both forms.
	return &Inspector{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

// Inspect decodes the middle segment of token into Claims. The header and
// signature segments are never read.
func (i *Inspector) Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", domain.ErrDecode)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token has %d segments, want 3: %w", len(parts), domain.ErrDecode)
	}
	payload, err := i.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %v: %w", err, domain.ErrDecode)
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("unmarshal token payload: %v: %w", err, domain.ErrDecode)
	}
	return claims, nil
}

// DisplayHint extracts the event name shown next to a scanned credential.
func (i *Inspector) DisplayHint(token string) (domain.DisplayHint, error) {
	claims, err := i.Inspect(token)
	if err != nil {
		return domain.DisplayHint{}, err
	}
	if strings.TrimSpace(claims.EventName) == "" {
		return domain.DisplayHint{}, fmt.Errorf("token payload has no event name: %w", domain.ErrDecode)
	}
	return domain.DisplayHint{EventName: claims.EventName}, nil
}

// ExpiresAt returns the exp claim of an access token, or the zero time when the
// token carries none.
func (i *Inspector) ExpiresAt(token string) (time.Time, error) {
	claims, err := i.Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// IsDecodeError reports whether err came from payload decoding.
func IsDecodeError(err error) bool {
	return errors.Is(err, domain.ErrDecode)
}
