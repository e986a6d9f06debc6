package checkin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
	"github.com/go-checkin-agent/internal/pkg/classify"
	"github.com/go-checkin-agent/internal/pkg/validate"
)

// Service submits scanned credentials to the authority. It never returns an
// error: every outcome is a CheckInResult the UI can render.
type Service interface {
	Submit(ctx context.Context, req domain.CheckInRequest) *domain.CheckInResult
	// SubmitPending submits the held scan and clears it once the check-in counted.
	SubmitPending(ctx context.Context, latitude, longitude *float64) *domain.CheckInResult
}

type bearerSource interface {
	Bearer(ctx context.Context) (string, error)
}

type checkInValidator interface {
	ValidateCheckIn(ctx context.Context, bearer string, req domain.CheckInRequest) (*authority.ValidationResponse, error)
}

type pendingScans interface {
	Get(ctx context.Context) (*domain.PendingScan, error)
	Clear(ctx context.Context)
}

type receiptArchive interface {
	Archive(ctx context.Context, attendance *domain.Attendance, event *domain.Event) (string, error)
}

// ServiceDeps groups the collaborators of the check-in service. Receipts may be nil.
type ServiceDeps struct {
	Sessions  bearerSource
	Authority checkInValidator
	Scans     pendingScans
	Receipts  receiptArchive
}

type service struct {
	sessions  bearerSource
	authority checkInValidator
	scans     pendingScans
	receipts  receiptArchive
}

func NewService(deps ServiceDeps) Service {
	return &service{
		sessions:  deps.Sessions,
		authority: deps.Authority,
		scans:     deps.Scans,
		receipts:  deps.Receipts,
	}
}

func (s *service) Submit(ctx context.Context, req domain.CheckInRequest) *domain.CheckInResult {
	if err := validate.Struct(req); err != nil {
		return domain.FailedCheckIn(domain.CodeInvalidRequest, err.Error())
	}

	bearer, err := s.sessions.Bearer(ctx)
	if err != nil {
		slog.Info("check-in without usable session", "err", err)
		return domain.FailedCheckIn(domain.CodeUnauthorized, "Your session has expired. Please sign in again.")
	}

	resp, callErr := s.authority.ValidateCheckIn(ctx, bearer, req)
	outcome := classify.Classify(callErr, resp != nil)

	if outcome.Kind != classify.ServerReached {
		if outcome.Kind == classify.Unclassified {
			slog.Warn("check-in failed without a recognised cause", "err", callErr)
		}
		return domain.FailedCheckIn(domain.CodeNetworkError, "Could not reach the check-in service. Check your connection and try again.")
	}

	if resp == nil {
		code := domain.CodeUnknown
		if outcome.Status == http.StatusUnauthorized {
			code = domain.CodeUnauthorized
		}
		return domain.FailedCheckIn(code, callErr.Error())
	}

	if callErr == nil && resp.Success {
		result := &domain.CheckInResult{Success: true, Attendance: resp.Attendance, Event: resp.Event}
		s.archive(ctx, result)
		return result
	}

	return businessFailure(resp, outcome.Status)
}

func (s *service) SubmitPending(ctx context.Context, latitude, longitude *float64) *domain.CheckInResult {
	rec, err := s.scans.Get(ctx)
	if err != nil {
		slog.Warn("failed to read pending scan", "err", err)
		return domain.FailedCheckIn(domain.CodeUnknown, "The scanned code could not be read. Please scan again.")
	}
	if rec == nil {
		return domain.FailedCheckIn(domain.CodeNoPendingScan, "No scanned code is waiting. Please scan again.")
	}

	result := s.Submit(ctx, domain.CheckInRequest{Token: rec.Token, Latitude: latitude, Longitude: longitude})
	if result.Success {
		s.scans.Clear(ctx)
	}
	return result
}

// businessFailure passes the authority's own code through unchanged.
func businessFailure(resp *authority.ValidationResponse, status int) *domain.CheckInResult {
	code := resp.ErrorCode
	if code == "" {
		code = domain.CodeUnknown
		if status == http.StatusUnauthorized {
			code = domain.CodeUnauthorized
		}
	}
	msg := resp.Error
	if msg == "" {
		msg = "The check-in was not accepted."
	}
	res := domain.FailedCheckIn(code, msg)
	res.Event = resp.Event
	return res
}

func (s *service) archive(ctx context.Context, result *domain.CheckInResult) {
	if s.receipts == nil || result.Attendance == nil {
		return
	}
	key, err := s.receipts.Archive(ctx, result.Attendance, result.Event)
	if err != nil {
		slog.Warn("failed to archive attendance receipt", "attendance_id", result.Attendance.ID, "err", err)
		return
	}
	slog.Debug("archived attendance receipt", "key", key)
}
