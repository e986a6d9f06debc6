// Package kvtest provides an in-memory key-value store for tests of code that
// persists through the agent's KV backends.
package kvtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-checkin-agent/internal/domain"
)

// Store is a map-backed store. Setting one of the Err fields makes the matching
// operation fail with it.
type Store struct {
	mu      sync.Mutex
	records map[string][]byte
	expires map[string]time.Time

	GetErr    error
	PutErr    error
	DeleteErr error
	ListErr   error

	Puts    int
	Deletes int
}

func New() *Store {
	return &Store{records: map[string][]byte{}, expires: map[string]time.Time{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", key, domain.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.Puts++
	s.records[key] = append([]byte(nil), value...)
	s.expires[key] = expiresAt
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Deletes++
	delete(s.records, key)
	delete(s.expires, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := map[string][]byte{}
	for k, v := range s.records {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Has reports whether key is present, bypassing the Err knobs.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	return ok
}

// Raw stores value under key directly, bypassing the Err knobs and counters.
func (s *Store) Raw(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
}

// ExpiryOf returns the expiry hint recorded for key.
func (s *Store) ExpiryOf(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expires[key]
}

// Clock is a settable clock for injecting into services.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
