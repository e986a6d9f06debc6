package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBadRequest        = errors.New("bad request")
	ErrRejected          = errors.New("rejected by check-in authority")
	ErrDecode            = errors.New("token payload could not be decoded")
	ErrMalformedResponse = errors.New("malformed authority response")
)

// RejectionError is returned when the check-in authority was reached and declined the request.
// Code is the authority's machine error code, passed through unchanged.
type RejectionError struct {
	Code    string
	Message string
	Status  int // HTTP status of the exchange; 0 when the body arrived with a success status
}

func (e *RejectionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("check-in authority rejected request: %s", e.Message)
	}
	return fmt.Sprintf("check-in authority rejected request: %s (%s)", e.Message, e.Code)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }
