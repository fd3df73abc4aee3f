// Package usage models invocation events and the fixed windows they are rolled into.
package usage

import (
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
)

const (
	DefaultWindowSize  = time.Hour
	DefaultGracePeriod = 5 * time.Minute
)

// Window is a half-open interval [Start, End) on the UTC grid
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Overlaps reports whether the two windows share any instant
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// WindowPolicy fixes how events map to windows and when windows close.
// A window [s, e) accepts events until e+Grace; from then on it is closed
// and events for it are late. Late events are rejected and counted, never
// merged into a neighbouring window.
type WindowPolicy struct {
	Size  time.Duration
	Grace time.Duration
}

// DefaultWindowPolicy returns hourly windows with a five minute grace period
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{Size: DefaultWindowSize, Grace: DefaultGracePeriod}
}

// Validate checks that windows tile a UTC day exactly
func (p WindowPolicy) Validate() error {
	if p.Size < time.Minute {
		return shared.NewValidationError("window size must be at least 1m, got %s", p.Size)
	}
	if (24*time.Hour)%p.Size != 0 {
		return shared.NewValidationError("window size %s must divide 24h evenly", p.Size)
	}
	if p.Grace < 0 {
		return shared.NewValidationError("grace period must not be negative")
	}
	return nil
}

// WindowFor returns the window containing ts
func (p WindowPolicy) WindowFor(ts time.Time) Window {
	start := ts.UTC().Truncate(p.Size)
	return Window{Start: start, End: start.Add(p.Size)}
}

// ClosesAt is the instant from which w no longer accepts events
func (p WindowPolicy) ClosesAt(w Window) time.Time {
	return w.End.Add(p.Grace)
}

// IsLate reports whether an event stamped ts arriving at now is past its window's grace period
func (p WindowPolicy) IsLate(ts, now time.Time) bool {
	return !now.Before(p.ClosesAt(p.WindowFor(ts)))
}

// CloseCutoff returns the latest window end that is closable at now
func (p WindowPolicy) CloseCutoff(now time.Time) time.Time {
	return now.UTC().Add(-p.Grace)
}
