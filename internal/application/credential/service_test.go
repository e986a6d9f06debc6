package credential

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
	"github.com/go-checkin-agent/internal/pkg/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) IssueToken(ctx context.Context, bearer, eventID string) (*authority.TokenResponse, error) {
	args := m.Called(ctx, bearer, eventID)
	if r, _ := args.Get(0).(*authority.TokenResponse); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type stubSessions struct {
	bearer string
	err    error
}

func (s stubSessions) Bearer(context.Context) (string, error) { return s.bearer, s.err }

// --- helpers ---

type fixture struct {
	svc    Service
	issuer *mockIssuer
	store  *kvtest.Store
	clock  *kvtest.Clock
}

func newFixture(sessions bearerSource) *fixture {
	store := kvtest.New()
	clock := kvtest.NewClock(t0)
	issuer := &mockIssuer{}
	svc := NewService(ServiceDeps{
		Sessions:  sessions,
		Authority: issuer,
		Cache:     NewTokenCache(store, clock.Now),
		Now:       clock.Now,
	})
	return &fixture{svc: svc, issuer: issuer, store: store, clock: clock}
}

func success(token string, ev domain.Event) *authority.TokenResponse {
	return &authority.TokenResponse{Success: true, Token: token, Event: &ev}
}

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: &net.AddrError{Err: "connection refused"}}
}

// --- tests ---

func TestGetToken_FreshSuccessIsCached(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	ev := testEvent("evt-1", t0, t0.Add(2*time.Hour))
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(success("tok-1", ev), nil)

	got, err := f.svc.GetToken(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
	assert.False(t, got.FromCache)
	assert.True(t, f.store.Has("checkin_token:evt-1"))
	f.issuer.AssertExpectations(t)
}

func TestGetToken_AuthenticationErrorNeverFallsBack(t *testing.T) {
	f := newFixture(stubSessions{err: fmt.Errorf("refresh session: dial tcp: connection refused: %w", domain.ErrUnauthorized)})

	_, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.issuer.AssertNotCalled(t, "IssueToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetToken_EmptyEventID(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})

	_, err := f.svc.GetToken(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestGetToken_BusinessErrorInvalidatesCache(t *testing.T) {
	codes := []string{"CHECK_IN_CLOSED", "FORBIDDEN", ""}
	for _, code := range codes {
		t.Run("code="+code, func(t *testing.T) {
			f := newFixture(stubSessions{bearer: "access-1"})
			ev := testEvent("evt-1", t0, t0.Add(2*time.Hour))
			NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", domain.CachedToken{Token: "old", Event: ev})
			body := &authority.TokenResponse{Success: false, Error: "Check-in is closed", ErrorCode: code}
			f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").
				Return(body, &authority.HTTPError{Status: 403})

			_, err := f.svc.GetToken(context.Background(), "evt-1")

			var rej *domain.RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, code, rej.Code)
			assert.Equal(t, "Check-in is closed", rej.Message)
			assert.Equal(t, 403, rej.Status)
			assert.ErrorIs(t, err, domain.ErrRejected)
			assert.False(t, f.store.Has("checkin_token:evt-1"))
		})
	}
}

func TestGetToken_SuccessFalseWith200IsRejection(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", domain.CachedToken{Token: "old"})
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").
		Return(&authority.TokenResponse{Success: false, Error: "Event is full", ErrorCode: "EVENT_FULL"}, nil)

	_, err := f.svc.GetToken(context.Background(), "evt-1")

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "EVENT_FULL", rej.Code)
	assert.Zero(t, rej.Status)
	assert.False(t, f.store.Has("checkin_token:evt-1"))
}

func TestGetToken_StatusWithoutBodyIsRejection(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", domain.CachedToken{Token: "old"})
	httpErr := &authority.HTTPError{Status: 502}
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, httpErr)

	_, err := f.svc.GetToken(context.Background(), "evt-1")

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 502, rej.Status)
	assert.Equal(t, httpErr.Error(), rej.Message)
	assert.False(t, f.store.Has("checkin_token:evt-1"))
}

func TestGetToken_NetworkErrorServesValidCache(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	ev := testEvent("evt-1", t0.Add(-time.Hour), t0.Add(time.Hour))
	cached := domain.CachedToken{Token: "tok-cached", Event: ev, CachedAt: t0.Add(-time.Minute)}
	NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", cached)
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, refused())

	for i := 0; i < 2; i++ {
		got, err := f.svc.GetToken(context.Background(), "evt-1")
		require.NoError(t, err)
		assert.True(t, got.FromCache)
		assert.Equal(t, "tok-cached", got.Token)
		assert.Equal(t, "evt-1", got.Event.ID)
		assert.True(t, ev.CheckInCloses.Equal(got.Event.CheckInCloses))
	}
	assert.True(t, f.store.Has("checkin_token:evt-1"))
}

func TestGetToken_NetworkErrorNoCacheReturnsOriginal(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	netErr := refused()
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, netErr)

	_, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.Same(t, netErr, err)
}

func TestGetToken_NetworkErrorExpiredCacheNeverServed(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	ev := testEvent("evt-1", t0.Add(-3*time.Hour), t0.Add(-time.Second))
	NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", domain.CachedToken{Token: "stale", Event: ev})
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, context.DeadlineExceeded)

	got, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetToken_UnclassifiedErrorReturnedUnchanged(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	ev := testEvent("evt-1", t0.Add(-time.Hour), t0.Add(time.Hour))
	NewTokenCache(f.store, nil).Write(context.Background(), "evt-1", domain.CachedToken{Token: "tok-cached", Event: ev})
	weird := errors.New("tls: handshake failure")
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, weird)

	_, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.Same(t, weird, err)
	assert.True(t, f.store.Has("checkin_token:evt-1"), "unclassified failures leave the cache alone")
}

func TestGetToken_MalformedSuccessNotCached(t *testing.T) {
	cases := map[string]*authority.TokenResponse{
		"missing token": {Success: true, Event: &domain.Event{ID: "evt-1", CheckInOpens: t0, CheckInCloses: t0}},
		"missing event": {Success: true, Token: "tok-1"},
		"other event":   success("tok-1", testEvent("evt-2", t0, t0.Add(time.Hour))),
		"bad window":    success("tok-1", testEvent("evt-1", t0, t0.Add(-time.Hour))),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(stubSessions{bearer: "access-1"})
			f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(resp, nil)

			_, err := f.svc.GetToken(context.Background(), "evt-1")
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
			assert.False(t, f.store.Has("checkin_token:evt-1"))
		})
	}
}

func TestGetToken_UndecodableSuccessBodyIsMalformed(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").
		Return(nil, fmt.Errorf("undecodable success body: %w", &authority.HTTPError{Status: 200}))

	_, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestGetToken_CacheWriteFailureDoesNotFailFetch(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	f.store.PutErr = errors.New("disk full")
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").
		Return(success("tok-1", testEvent("evt-1", t0, t0.Add(time.Hour))), nil)

	got, err := f.svc.GetToken(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
}

// Fetch at T0, lose the network half an hour later, then outlive the window.
func TestGetToken_OutageAcrossWindowClose(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	ev := testEvent("evt-1", t0, t0.Add(2*time.Hour))
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(success("tok-T0", ev), nil).Once()
	outage := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	f.issuer.On("IssueToken", mock.Anything, "access-1", "evt-1").Return(nil, outage)

	first, err := f.svc.GetToken(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	f.clock.Advance(30 * time.Minute)
	second, err := f.svc.GetToken(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "tok-T0", second.Token)

	f.clock.Set(t0.Add(2*time.Hour + time.Minute))
	third, err := f.svc.GetToken(context.Background(), "evt-1")
	assert.Nil(t, third)
	assert.Same(t, outage, err)
}

func TestSweepExpired_DelegatesToCache(t *testing.T) {
	f := newFixture(stubSessions{bearer: "access-1"})
	NewTokenCache(f.store, nil).Write(context.Background(), "old",
		domain.CachedToken{Token: "a", Event: testEvent("old", t0.Add(-2*time.Hour), t0.Add(-time.Hour))})

	assert.Equal(t, 1, f.svc.SweepExpired(context.Background()))
}
