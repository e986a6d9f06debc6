package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCredentialSvc struct{ mock.Mock }

func (m *mockCredentialSvc) GetToken(ctx context.Context, eventID string) (*domain.IssuedToken, error) {
	args := m.Called(ctx, eventID)
	if t, _ := args.Get(0).(*domain.IssuedToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCredentialSvc) SweepExpired(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

type mockScanSvc struct{ mock.Mock }

func (m *mockScanSvc) Save(ctx context.Context, token string) (*domain.PendingScan, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*domain.PendingScan); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockScanSvc) Get(ctx context.Context) (*domain.PendingScan, error) {
	args := m.Called(ctx)
	if p, _ := args.Get(0).(*domain.PendingScan); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockScanSvc) Clear(ctx context.Context) { m.Called(ctx) }

func (m *mockScanSvc) IsValid(rec *domain.PendingScan, now time.Time) bool {
	return m.Called(rec, now).Bool(0)
}

type mockCheckInSvc struct{ mock.Mock }

func (m *mockCheckInSvc) Submit(ctx context.Context, req domain.CheckInRequest) *domain.CheckInResult {
	return m.Called(ctx, req).Get(0).(*domain.CheckInResult)
}

func (m *mockCheckInSvc) SubmitPending(ctx context.Context, lat, lon *float64) *domain.CheckInResult {
	return m.Called(ctx, lat, lon).Get(0).(*domain.CheckInResult)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Bearer(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSessionSvc) Current(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Handover(ctx context.Context, in domain.SessionInput) (*domain.Session, error) {
	args := m.Called(ctx, in)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- helpers ---

var t0 = time.Date(2026, 5, 14, 19, 0, 0, 0, time.UTC)

func serve(method, pattern, target string, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

// --- health ---

type pingStore struct{ err error }

func (p pingStore) Get(context.Context, string) ([]byte, error) { return nil, p.err }

func TestHealth_Ping(t *testing.T) {
	h := NewHealthHandler(nil)

	rec := serve(http.MethodGet, "/health-check/{action}", "/health-check/ping", h.Ping, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = serve(http.MethodGet, "/health-check/{action}", "/health-check/other", h.Ping, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_Ready(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("record %q: %w", healthKey, domain.ErrNotFound), http.StatusOK},
		{nil, http.StatusOK},
		{errors.New("database is locked"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		h := NewHealthHandler(pingStore{err: tc.err})
		rec := serve(http.MethodGet, "/health-check/{action}", "/health-check/ready", h.Ping, nil)
		assert.Equal(t, tc.status, rec.Code)
	}
}

// --- credentials ---

func TestGetToken_Success(t *testing.T) {
	svc := &mockCredentialSvc{}
	ev := domain.Event{ID: "evt-1", Name: "Spring Mixer", CheckInOpens: t0.Add(-time.Hour), CheckInCloses: t0.Add(time.Hour)}
	svc.On("GetToken", mock.Anything, "evt-1").Return(&domain.IssuedToken{Token: "tok-1", Event: ev, FromCache: true}, nil)
	h := NewCredentialHandler(svc, func() time.Time { return t0 })

	rec := serve(http.MethodGet, "/events/{id}/check-in-token", "/events/evt-1/check-in-token", h.GetToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var env TokenEnvelope
	decode(t, rec, &env)
	assert.Equal(t, "tok-1", env.Token)
	assert.Equal(t, domain.WindowActive, env.WindowState)
	assert.True(t, env.FromCache)
}

func TestGetToken_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		wantCode string
	}{
		{"unauthorized", fmt.Errorf("no active session: %w", domain.ErrUnauthorized), http.StatusUnauthorized, domain.CodeUnauthorized},
		{"rejection with status", &domain.RejectionError{Code: "CHECK_IN_CLOSED", Message: "closed", Status: 403}, http.StatusForbidden, "CHECK_IN_CLOSED"},
		{"rejection on 200", &domain.RejectionError{Code: "EVENT_FULL", Message: "full"}, http.StatusUnprocessableEntity, "EVENT_FULL"},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, http.StatusServiceUnavailable, domain.CodeNetworkError},
		{"malformed", fmt.Errorf("x: %w", domain.ErrMalformedResponse), http.StatusBadGateway, ""},
		{"unclassified", errors.New("tls: bad certificate"), http.StatusBadGateway, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockCredentialSvc{}
			svc.On("GetToken", mock.Anything, "evt-1").Return(nil, tc.err)
			h := NewCredentialHandler(svc, nil)

			rec := serve(http.MethodGet, "/events/{id}/check-in-token", "/events/evt-1/check-in-token", h.GetToken, nil)

			assert.Equal(t, tc.status, rec.Code)
			var env MessageEnvelope
			decode(t, rec, &env)
			assert.NotEmpty(t, env.Error)
			assert.Equal(t, tc.wantCode, env.ErrorCode)
		})
	}
}

func TestSweep(t *testing.T) {
	svc := &mockCredentialSvc{}
	svc.On("SweepExpired", mock.Anything).Return(3)
	h := NewCredentialHandler(svc, nil)

	rec := serve(http.MethodPost, "/maintenance/sweep", "/maintenance/sweep", h.Sweep, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var env SweepEnvelope
	decode(t, rec, &env)
	assert.Equal(t, 3, env.Removed)
}

// --- scans ---

func TestSaveScan(t *testing.T) {
	svc := &mockScanSvc{}
	svc.On("Save", mock.Anything, "tok-1").Return(&domain.PendingScan{Token: "tok-1", EventName: "Gala"}, nil)
	svc.On("Save", mock.Anything, "garbage").Return(nil, fmt.Errorf("parse: %w", domain.ErrDecode))
	h := NewScanHandler(svc)

	rec := serve(http.MethodPost, "/scans", "/scans", h.Save, map[string]string{"token": "tok-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var env ScanEnvelope
	decode(t, rec, &env)
	assert.Equal(t, "Gala", env.Scan.EventName)

	rec = serve(http.MethodPost, "/scans", "/scans", h.Save, map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodPost, "/scans", "/scans", h.Save, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPendingScan(t *testing.T) {
	svc := &mockScanSvc{}
	svc.On("Get", mock.Anything).Return(nil, nil).Once()
	svc.On("Get", mock.Anything).Return(&domain.PendingScan{Token: "tok-1"}, nil).Once()
	h := NewScanHandler(svc)

	rec := serve(http.MethodGet, "/scans/pending", "/scans/pending", h.GetPending, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodGet, "/scans/pending", "/scans/pending", h.GetPending, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClearPendingScan(t *testing.T) {
	svc := &mockScanSvc{}
	svc.On("Clear", mock.Anything).Return()
	h := NewScanHandler(svc)

	rec := serve(http.MethodDelete, "/scans/pending", "/scans/pending", h.ClearPending, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

// --- check-ins ---

func TestSubmitCheckIn_StatusMapping(t *testing.T) {
	cases := map[string]struct {
		res    *domain.CheckInResult
		status int
	}{
		"success":      {&domain.CheckInResult{Success: true}, http.StatusOK},
		"business":     {domain.FailedCheckIn(domain.CodeAlreadyCheckedIn, "already"), http.StatusUnprocessableEntity},
		"network":      {domain.FailedCheckIn(domain.CodeNetworkError, "offline"), http.StatusServiceUnavailable},
		"invalid":      {domain.FailedCheckIn(domain.CodeInvalidRequest, "bad"), http.StatusBadRequest},
		"unauthorized": {domain.FailedCheckIn(domain.CodeUnauthorized, "login"), http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &mockCheckInSvc{}
			svc.On("Submit", mock.Anything, domain.CheckInRequest{Token: "tok-1"}).Return(tc.res)
			h := NewCheckInHandler(svc)

			rec := serve(http.MethodPost, "/check-ins", "/check-ins", h.Submit, map[string]string{"token": "tok-1"})

			assert.Equal(t, tc.status, rec.Code)
			var got domain.CheckInResult
			decode(t, rec, &got)
			assert.Equal(t, tc.res.ErrorCode, got.ErrorCode)
		})
	}
}

func TestSubmitCheckIn_BadBody(t *testing.T) {
	h := NewCheckInHandler(&mockCheckInSvc{})
	r := chi.NewRouter()
	r.Post("/check-ins", h.Submit)
	req := httptest.NewRequest(http.MethodPost, "/check-ins", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitPending(t *testing.T) {
	svc := &mockCheckInSvc{}
	svc.On("SubmitPending", mock.Anything, mock.MatchedBy(func(p *float64) bool { return p != nil && *p == 1.5 }), mock.Anything).
		Return(&domain.CheckInResult{Success: true})
	svc.On("SubmitPending", mock.Anything, (*float64)(nil), (*float64)(nil)).
		Return(domain.FailedCheckIn(domain.CodeNoPendingScan, "scan again"))
	h := NewCheckInHandler(svc)

	rec := serve(http.MethodPost, "/check-ins/pending", "/check-ins/pending", h.SubmitPending,
		map[string]float64{"latitude": 1.5, "longitude": 2.5})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(http.MethodPost, "/check-ins/pending", "/check-ins/pending", h.SubmitPending, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- session ---

func TestSessionHandover(t *testing.T) {
	svc := &mockSessionSvc{}
	in := domain.SessionInput{AccessToken: "a", RefreshToken: "r"}
	svc.On("Handover", mock.Anything, in).Return(&domain.Session{AccessToken: "a", ExpiresAt: t0}, nil)
	svc.On("Handover", mock.Anything, domain.SessionInput{AccessToken: "a"}).
		Return(nil, fmt.Errorf("missing refresh token: %w", domain.ErrBadRequest))
	h := NewSessionHandler(svc)

	rec := serve(http.MethodPut, "/session", "/session", h.Handover, in)
	require.Equal(t, http.StatusOK, rec.Code)
	var env SessionEnvelope
	decode(t, rec, &env)
	assert.Equal(t, t0.Format(time.RFC3339), env.ExpiresAt)
	assert.NotContains(t, rec.Body.String(), `"a"`)

	rec = serve(http.MethodPut, "/session", "/session", h.Handover, domain.SessionInput{AccessToken: "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionClear(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Clear", mock.Anything).Return(nil)
	h := NewSessionHandler(svc)

	rec := serve(http.MethodDelete, "/session", "/session", h.Clear, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
