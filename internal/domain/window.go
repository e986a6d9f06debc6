package domain

import "time"

// WindowState is the position of an instant relative to a check-in window.
type WindowState string

const (
	WindowNotOpen WindowState = "not_open"
	WindowActive  WindowState = "active"
	WindowClosed  WindowState = "closed"
)

// WindowStateAt maps now onto [opens, closes]. Both boundaries count as active.
func WindowStateAt(now, opens, closes time.Time) WindowState {
	switch {
	case now.Before(opens):
		return WindowNotOpen
	case now.After(closes):
		return WindowClosed
	default:
		return WindowActive
	}
}
