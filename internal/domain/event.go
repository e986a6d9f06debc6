package domain

import "time"

// Event is the slice of an event the check-in flow needs: identity plus its check-in window.
type Event struct {
	ID            string    `json:"id" validate:"required"`
	Name          string    `json:"name"`
	CheckInOpens  time.Time `json:"checkInOpens" validate:"required"`
	CheckInCloses time.Time `json:"checkInCloses" validate:"required,gtefield=CheckInOpens"`
}

// StateAt reports where now falls relative to the event's check-in window.
func (e Event) StateAt(now time.Time) WindowState {
	return WindowStateAt(now, e.CheckInOpens, e.CheckInCloses)
}

// CachedToken is the last credential the authority issued for an event.
type CachedToken struct {
	Token    string    `json:"token"`
	Event    Event     `json:"event"`
	CachedAt time.Time `json:"cachedAt"`
}

// UsableAt reports whether the cached credential may still be shown at now.
// A token is never usable once its event's check-in window has closed.
func (c *CachedToken) UsableAt(now time.Time) bool {
	return c != nil && WindowStateAt(now, c.Event.CheckInOpens, c.Event.CheckInCloses) != WindowClosed
}

// IssuedToken is what the fetcher hands back to the UI.
type IssuedToken struct {
	Token     string `json:"token"`
	Event     Event  `json:"event"`
	FromCache bool   `json:"from_cache"`
}
