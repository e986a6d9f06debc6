package domain

import "time"

// DisplayHint holds claims decoded locally from a scanned token without verifying its signature.
// It is only ever rendered; nothing may base an authorization decision on it.
type DisplayHint struct {
	EventName string `json:"eventName"`
}

// PendingScan is a scanned credential held briefly until it is submitted.
type PendingScan struct {
	Token     string    `json:"token"`
	EventName string    `json:"eventName"`
	ScannedAt time.Time `json:"scannedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidAt reports whether the record is still inside its hold period.
func (p *PendingScan) ValidAt(now time.Time) bool {
	return p != nil && !now.After(p.ExpiresAt)
}
