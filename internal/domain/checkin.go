package domain

import "time"

// Error codes returned by the validation endpoint, plus the agent's own failure codes.
const (
	CodeEventNotFound    = "EVENT_NOT_FOUND"
	CodeAlreadyCheckedIn = "ALREADY_CHECKED_IN"
	CodeCheckInClosed    = "CHECK_IN_CLOSED"
	CodeEventFull        = "EVENT_FULL"
	CodeUnauthorized     = "UNAUTHORIZED"

	CodeNetworkError   = "NETWORK_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNoPendingScan  = "NO_PENDING_SCAN"
	CodeUnknown        = "UNKNOWN_ERROR"
)

// CheckInRequest is the body forwarded to the validation endpoint.
// Coordinates are optional but must be supplied together.
type CheckInRequest struct {
	Token     string   `json:"token" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// Attendance is the authority's record of a counted check-in.
type Attendance struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	UserID      string    `json:"userId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

// CheckInResult is the structured outcome of a submission. It is the only source of truth
// for whether a check-in counted.
type CheckInResult struct {
	Success    bool        `json:"success"`
	Attendance *Attendance `json:"attendance,omitempty"`
	Event      *Event      `json:"event,omitempty"`
	Error      string      `json:"error,omitempty"`
	ErrorCode  string      `json:"errorCode,omitempty"`
}

// FailedCheckIn builds an unsuccessful result.
func FailedCheckIn(code, msg string) *CheckInResult {
	return &CheckInResult{Success: false, Error: msg, ErrorCode: code}
}
