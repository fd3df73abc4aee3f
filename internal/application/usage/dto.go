package usage

import (
	"time"

	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/google/uuid"
)

// EventInput is the wire shape of one invocation event, shared by the HTTP
// endpoint and the Kafka consumer
type EventInput struct {
	EventID     string    `json:"event_id" binding:"required,max=128"`
	TenantID    uuid.UUID `json:"tenant_id" binding:"required"`
	ServiceID   uuid.UUID `json:"service_id" binding:"required"`
	Timestamp   time.Time `json:"timestamp" binding:"required"`
	DurationMs  int64     `json:"duration_ms" binding:"gte=0,lte=900000"`
	MemMB       int64     `json:"mem_mb" binding:"gte=0,lte=10240"`
	ColdStart   bool      `json:"cold_start"`
	Error       bool      `json:"error"`
	EgressBytes int64     `json:"egress_bytes" binding:"gte=0"`
}

// ToEvent converts the input to a domain event
func (in EventInput) ToEvent() usage.Event {
	return usage.Event{
		EventID:     in.EventID,
		TenantID:    in.TenantID,
		ServiceID:   in.ServiceID,
		Timestamp:   in.Timestamp.UTC(),
		DurationMs:  in.DurationMs,
		MemMB:       in.MemMB,
		ColdStart:   in.ColdStart,
		Error:       in.Error,
		EgressBytes: in.EgressBytes,
	}
}

// ToEvents converts a batch
func ToEvents(in []EventInput) []usage.Event {
	out := make([]usage.Event, len(in))
	for i := range in {
		out[i] = in[i].ToEvent()
	}
	return out
}

// AggregateDTO is the wire shape of a usage window
type AggregateDTO struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	ServiceID   uuid.UUID  `json:"service_id"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	WindowSize  string     `json:"window_size"`
	Invocations int64      `json:"invocations"`
	DurationMs  int64      `json:"duration_ms"`
	MemMBMs     int64      `json:"mem_mb_ms"`
	ColdStarts  int64      `json:"cold_starts"`
	Errors      int64      `json:"errors"`
	EgressBytes int64      `json:"egress_bytes"`
	Closed      bool       `json:"closed"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToAggregateDTO converts a domain aggregate
func ToAggregateDTO(a *usage.Aggregate) AggregateDTO {
	return AggregateDTO{
		ID:          a.ID,
		TenantID:    a.TenantID,
		ServiceID:   a.ServiceID,
		WindowStart: a.WindowStart,
		WindowEnd:   a.WindowEnd,
		WindowSize:  a.WindowEnd.Sub(a.WindowStart).String(),
		Invocations: a.Invocations,
		DurationMs:  a.DurationMs,
		MemMBMs:     a.MemMBMs,
		ColdStarts:  a.ColdStarts,
		Errors:      a.Errors,
		EgressBytes: a.EgressBytes,
		Closed:      a.IsClosed(),
		ClosedAt:    a.ClosedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ListAggregatesInput narrows an aggregate listing; Start/End select
// window_start in [Start, End)
type ListAggregatesInput struct {
	TenantID    *uuid.UUID
	ServiceID   *uuid.UUID
	Start       *time.Time
	End         *time.Time
	IncludeOpen bool
}

// Event sources, used as a metric label
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)
