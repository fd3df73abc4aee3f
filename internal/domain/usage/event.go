package usage

import (
	"strings"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// MaxEventIDLength bounds producer supplied event ids
	MaxEventIDLength = 128
	// MaxDurationMs is the longest invocation a function may report (15 min)
	MaxDurationMs = 15 * 60 * 1000
	// MaxMemMB matches the largest memory limit a service may register with.
	// Together with MaxDurationMs it keeps mem_mb*duration_ms far inside int64.
	MaxMemMB = 10240
)

// Event is one function invocation as reported by a producer
type Event struct {
	EventID     string
	TenantID    uuid.UUID
	ServiceID   uuid.UUID
	Timestamp   time.Time
	DurationMs  int64
	MemMB       int64
	ColdStart   bool
	Error       bool
	EgressBytes int64
}

// Normalized returns the event with a trimmed id and a UTC timestamp. The
// dedupe lookup and the ledger insert both key on the normalized id.
func (e Event) Normalized() Event {
	e.EventID = strings.TrimSpace(e.EventID)
	e.Timestamp = e.Timestamp.UTC()
	return e
}

// Validate checks the event shape; ts may be at most maxSkew ahead of now
func (e Event) Validate(now time.Time, maxSkew time.Duration) error {
	id := strings.TrimSpace(e.EventID)
	switch {
	case id == "":
		return shared.NewValidationError("event_id is required")
	case len(id) > MaxEventIDLength:
		return shared.NewValidationError("event_id must be at most %d characters", MaxEventIDLength)
	case e.TenantID == uuid.Nil:
		return shared.NewValidationError("event %s: tenant_id is required", id)
	case e.ServiceID == uuid.Nil:
		return shared.NewValidationError("event %s: service_id is required", id)
	case e.Timestamp.IsZero():
		return shared.NewValidationError("event %s: timestamp is required", id)
	case e.DurationMs < 0 || e.MemMB < 0 || e.EgressBytes < 0:
		return shared.NewValidationError("event %s: duration_ms, mem_mb and egress_bytes must not be negative", id)
	case e.DurationMs > MaxDurationMs:
		return shared.NewValidationError("event %s: duration_ms must be at most %d", id, MaxDurationMs)
	case e.MemMB > MaxMemMB:
		return shared.NewValidationError("event %s: mem_mb must be at most %d", id, MaxMemMB)
	case e.Timestamp.After(now.Add(maxSkew)):
		return shared.NewValidationError("event %s: timestamp %s is in the future", id, e.Timestamp.UTC().Format(time.RFC3339))
	}
	return nil
}

// Increment is the delta one event adds to its window
type Increment struct {
	Invocations int64
	DurationMs  int64
	MemMBMs     int64
	ColdStarts  int64
	Errors      int64
	EgressBytes int64
}

// IncrementFor converts an event into counter deltas. A zero mem_mb falls
// back to the memory limit the service was registered with. Inputs are
// clamped to the validated bounds so the product cannot overflow.
func IncrementFor(e Event, fallbackMemMB int64) Increment {
	mem := e.MemMB
	if mem == 0 {
		mem = fallbackMemMB
	}
	mem = min(max(mem, 0), MaxMemMB)
	e.DurationMs = min(max(e.DurationMs, 0), MaxDurationMs)
	inc := Increment{
		Invocations: 1,
		DurationMs:  e.DurationMs,
		MemMBMs:     mem * e.DurationMs,
		EgressBytes: e.EgressBytes,
	}
	if e.ColdStart {
		inc.ColdStarts = 1
	}
	if e.Error {
		inc.Errors = 1
	}
	return inc
}

// EventStatus records what ingestion did with an event
type EventStatus string

const (
	EventStatusAccepted EventStatus = "accepted"
	EventStatusLate     EventStatus = "late"
)

// EventRecord is the ledger row kept for dedupe and audit.
// MemMB holds the effective memory after the service fallback.
type EventRecord struct {
	Event
	WindowStart time.Time
	Status      EventStatus
	ReceivedAt  time.Time
}

// Outcome is the result of recording a single event
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
	OutcomeLate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeLate:
		return "late"
	default:
		return "unknown"
	}
}

// IngestResult summarizes a batch
type IngestResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Late       int `json:"late"`
}

// Add counts one outcome
func (r *IngestResult) Add(o Outcome) {
	switch o {
	case OutcomeAccepted:
		r.Accepted++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeLate:
		r.Late++
	}
}
