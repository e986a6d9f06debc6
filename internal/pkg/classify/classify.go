// Package classify decides, for a failed call to the check-in authority, whether
// the authority was actually reached or the request never produced an exchange.
//
// The decision lives here and nowhere else so that fetch-first / cache-fallback
// callers cannot drift apart in how they read transport errors.
package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Kind is the closed set of classifications.
type Kind int

const (
	// Unclassified failures match neither signature. Callers fail closed.
	Unclassified Kind = iota
	// ServerReached means an HTTP exchange happened: the authority answered.
	ServerReached
	// Network means the failure matches a connectivity signature and no exchange happened.
	Network
)

func (k Kind) String() string {
	switch k {
	case ServerReached:
		return "server_reached"
	case Network:
		return "network"
	default:
		return "unclassified"
	}
}

// Result is the outcome of Classify. Status is the HTTP status found on the
// error chain, when there is one.
type Result struct {
	Kind   Kind
	Status int
}

// statusCoder is implemented by transport errors that carry the response status.
type statusCoder interface {
	StatusCode() int
}

// httpStatusCoder is the shape of response errors nested in SDK operation errors
// (smithy-go's ResponseError and everything that embeds it).
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Classify inspects err and whether a response body accompanied it.
// Server-reached is decided first: a received body or any positive HTTP signal
// on the error chain wins over every network signature.
func Classify(err error, bodyReceived bool) Result {
	if reached, status := serverReached(err, bodyReceived); reached {
		return Result{Kind: ServerReached, Status: status}
	}
	if err != nil && IsNetworkFailure(err) {
		return Result{Kind: Network}
	}
	return Result{Kind: Unclassified}
}

func serverReached(err error, bodyReceived bool) (bool, int) {
	status := 0
	if err != nil {
		var sc statusCoder
		if errors.As(err, &sc) && sc.StatusCode() > 0 {
			status = sc.StatusCode()
		} else {
			var hsc httpStatusCoder
			if errors.As(err, &hsc) && hsc.HTTPStatusCode() > 0 {
				status = hsc.HTTPStatusCode()
			}
		}
	}
	return bodyReceived || status > 0, status
}

var networkErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EPIPE,
}

var networkFragments = []string{
	"no such host",
	"timed out",
	"timeout",
	"connection refused",
	"connection reset",
	"network is unreachable",
	"host is unreachable",
	"broken pipe",
	"aborted",
}

// IsNetworkFailure reports whether err carries a connectivity-failure signature:
// cancellation or deadline, a dial/DNS failure, a timeout, a known errno, or a
// known message fragment.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range networkErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	// The peer hung up before sending anything back.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF)) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range networkFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
