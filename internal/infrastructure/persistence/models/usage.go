package models

import (
	"time"

	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/google/uuid"
)

// UsageEventModel is the raw event ledger. The unique event_id is what makes
// replays harmless.
type UsageEventModel struct {
	EventID     string    `gorm:"type:varchar(128);primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceID   uuid.UUID `gorm:"type:uuid;not null"`
	Timestamp   time.Time `gorm:"column:ts;not null"`
	DurationMs  int64     `gorm:"not null"`
	MemMB       int64     `gorm:"column:mem_mb;not null"`
	ColdStart   bool      `gorm:"not null"`
	Error       bool      `gorm:"column:is_error;not null"`
	EgressBytes int64     `gorm:"not null"`
	WindowStart time.Time `gorm:"not null;index"`
	Status      string    `gorm:"type:varchar(16);not null"`
	ReceivedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// UsageEventModelFromRecord creates a ledger row from a domain record
func UsageEventModelFromRecord(r usage.EventRecord) *UsageEventModel {
	return &UsageEventModel{
		EventID:     r.EventID,
		TenantID:    r.TenantID,
		ServiceID:   r.ServiceID,
		Timestamp:   r.Timestamp.UTC(),
		DurationMs:  r.DurationMs,
		MemMB:       r.MemMB,
		ColdStart:   r.ColdStart,
		Error:       r.Error,
		EgressBytes: r.EgressBytes,
		WindowStart: r.WindowStart.UTC(),
		Status:      string(r.Status),
		ReceivedAt:  r.ReceivedAt.UTC(),
	}
}

// UsageAggregateModel holds the counters of one service window
type UsageAggregateModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_usage_aggregates_tenant_window,priority:1"`
	ServiceID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_usage_aggregates_service_window,priority:1"`
	WindowStart time.Time  `gorm:"not null;uniqueIndex:uq_usage_aggregates_service_window,priority:2;index:idx_usage_aggregates_tenant_window,priority:2"`
	WindowEnd   time.Time  `gorm:"not null"`
	Invocations int64      `gorm:"not null"`
	DurationMs  int64      `gorm:"not null"`
	MemMBMs     int64      `gorm:"column:mem_mb_ms;not null"`
	ColdStarts  int64      `gorm:"not null"`
	Errors      int64      `gorm:"not null"`
	EgressBytes int64      `gorm:"not null"`
	ClosedAt    *time.Time `gorm:"index"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageAggregateModel) TableName() string {
	return "usage_aggregates"
}

// ToDomain converts the model to a domain aggregate
func (m *UsageAggregateModel) ToDomain() usage.Aggregate {
	return usage.Aggregate{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ServiceID:   m.ServiceID,
		WindowStart: m.WindowStart.UTC(),
		WindowEnd:   m.WindowEnd.UTC(),
		Invocations: m.Invocations,
		DurationMs:  m.DurationMs,
		MemMBMs:     m.MemMBMs,
		ColdStarts:  m.ColdStarts,
		Errors:      m.Errors,
		EgressBytes: m.EgressBytes,
		ClosedAt:    utcPtr(m.ClosedAt),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// NewUsageAggregateModel seeds a window row with the first increment
func NewUsageAggregateModel(tenantID, serviceID uuid.UUID, w usage.Window, inc usage.Increment, now time.Time) *UsageAggregateModel {
	now = now.UTC()
	return &UsageAggregateModel{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ServiceID:   serviceID,
		WindowStart: w.Start.UTC(),
		WindowEnd:   w.End.UTC(),
		Invocations: inc.Invocations,
		DurationMs:  inc.DurationMs,
		MemMBMs:     inc.MemMBMs,
		ColdStarts:  inc.ColdStarts,
		Errors:      inc.Errors,
		EgressBytes: inc.EgressBytes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
