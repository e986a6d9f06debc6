package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-checkin-agent/internal/config"
	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-checkin-agent/internal/pkg/id"
)

// maxBodyBytes bounds how much of an authority response is read.
const maxBodyBytes = 1 << 20

// HTTPError is returned for every response with a non-2xx status, and for 2xx
// responses whose body could not be decoded. Its presence proves the authority
// was reached.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("authority responded %d %s", e.Status, http.StatusText(e.Status))
}

func (e *HTTPError) StatusCode() int { return e.Status }

// TokenResponse is the body of the token-issuance call.
type TokenResponse struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token,omitempty"`
	Event     *domain.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`
}

// ValidationResponse is the body of the check-in validation call.
type ValidationResponse struct {
	Success    bool               `json:"success"`
	Attendance *domain.Attendance `json:"attendance,omitempty"`
	Event      *domain.Event      `json:"event,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  string             `json:"errorCode,omitempty"`
}

// RefreshResponse is the body of the session refresh call.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Error        string `json:"error,omitempty"`
}

// Client talks to the remote check-in authority over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client with the configured base URL and timeout.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.AuthorityBaseURL, "/"),
		http:    &http.Client{Timeout: cfg.AuthorityTimeout},
	}
}

// IssueToken requests a fresh check-in token for eventID.
// A non-nil response means a body was received, whether or not err is set.
func (c *Client) IssueToken(ctx context.Context, bearer, eventID string) (*TokenResponse, error) {
	var out TokenResponse
	path := "/events/" + url.PathEscape(eventID) + "/check-in-token"
	decoded, err := c.do(ctx, http.MethodGet, path, bearer, nil, &out)
	if !decoded {
		return nil, err
	}
	return &out, err
}

// ValidateCheckIn submits a token for final validation.
func (c *Client) ValidateCheckIn(ctx context.Context, bearer string, req domain.CheckInRequest) (*ValidationResponse, error) {
	var out ValidationResponse
	decoded, err := c.do(ctx, http.MethodPost, "/check-ins/validate", bearer, req, &out)
	if !decoded {
		return nil, err
	}
	return &out, err
}

// RefreshSession exchanges a refresh token for a new access/refresh pair.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	body := map[string]string{"refresh_token": refreshToken}
	decoded, err := c.do(ctx, http.MethodPost, "/sessions/refresh", "", body, &out)
	if err != nil {
		return nil, err
	}
	if !decoded || out.AccessToken == "" {
		return nil, fmt.Errorf("refresh response without access token: %w", domain.ErrMalformedResponse)
	}
	return &out, nil
}

// do performs one exchange. decoded reports whether a JSON body was decoded into out.
// Transport failures are returned unwrapped so callers can classify them.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) (decoded bool, err error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id.New())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	httpErr := &HTTPError{Status: resp.StatusCode, Body: raw}
	if readErr != nil {
		return false, fmt.Errorf("read body: %v: %w", readErr, httpErr)
	}

	decoded = len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, out) == nil
	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return decoded, httpErr
	case !decoded:
		return false, fmt.Errorf("undecodable success body: %w", httpErr)
	}
	return true, nil
}
