package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and audit timestamps every aggregate has.
// Timestamps are UTC so they serialize as RFC3339 with a Z suffix.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a fresh ID stamped at now
func NewBaseEntity(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a modification at now
func (e *BaseEntity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}

// Clock is the time source for windowing and billing
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock in UTC
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
