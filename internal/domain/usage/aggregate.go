package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bytesPerGB is the GiB used for egress pricing
const bytesPerGB = 1 << 30

// Aggregate holds the counters of one service over one window.
// Once ClosedAt is set the row never changes again.
type Aggregate struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ServiceID   uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	Invocations int64
	DurationMs  int64
	MemMBMs     int64
	ColdStarts  int64
	Errors      int64
	EgressBytes int64
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsClosed reports whether the window has been sealed
func (a *Aggregate) IsClosed() bool {
	return a.ClosedAt != nil
}

// Window returns the aggregate's interval
func (a *Aggregate) Window() Window {
	return Window{Start: a.WindowStart, End: a.WindowEnd}
}

// GBSeconds converts MB·ms into GB·s (1 GB = 1024 MB)
func GBSeconds(memMBMs int64) decimal.Decimal {
	return decimal.NewFromInt(memMBMs).Div(decimal.NewFromInt(1024 * 1000))
}

// EgressGB converts bytes into GiB
func EgressGB(bytes int64) decimal.Decimal {
	return decimal.NewFromInt(bytes).Div(decimal.NewFromInt(bytesPerGB))
}

// AggregateFilter narrows aggregate listings. Start/End select window_start in [Start, End).
type AggregateFilter struct {
	TenantID    *uuid.UUID
	ServiceID   *uuid.UUID
	Start       *time.Time
	End         *time.Time
	IncludeOpen bool
}

// Repository stores the raw event ledger and the per-window aggregates
type Repository interface {
	// Record inserts the ledger row and folds inc into the window in one
	// transaction. It reports OutcomeDuplicate when the event id is known and
	// OutcomeLate when the window was closed concurrently.
	Record(ctx context.Context, rec EventRecord, w Window, inc Increment) (Outcome, error)
	// RecordLate inserts a ledger row with status late; aggregates are untouched
	RecordLate(ctx context.Context, rec EventRecord) (Outcome, error)
	// CloseDue seals every open window ending at or before cutoff
	CloseDue(ctx context.Context, cutoff, now time.Time) (int64, error)
	// PurgeEvents removes ledger rows for windows that started before the given time
	PurgeEvents(ctx context.Context, before time.Time) (int64, error)
	// CountOpenWindows returns the number of windows not yet closed
	CountOpenWindows(ctx context.Context) (int64, error)
	// List returns aggregates ordered by window_start, service_id
	List(ctx context.Context, filter AggregateFilter) ([]Aggregate, error)
}
