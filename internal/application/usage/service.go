// Package usage ingests invocation events into fixed aggregation windows and
// closes the windows once their grace period has passed.
package usage

import (
	"context"
	"time"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the windower
type Options struct {
	Policy         usage.WindowPolicy
	MaxClockSkew   time.Duration
	DedupeTTL      time.Duration
	EventRetention time.Duration
	MaxBatchSize   int
}

// DefaultOptions returns hourly windows, 5m grace and skew, 24h dedupe and 30 day retention
func DefaultOptions() Options {
	return Options{
		Policy:         usage.DefaultWindowPolicy(),
		MaxClockSkew:   5 * time.Minute,
		DedupeTTL:      24 * time.Hour,
		EventRetention: 30 * 24 * time.Hour,
		MaxBatchSize:   1000,
	}
}

// Service is the aggregation windower
type Service struct {
	repo     usage.Repository
	services registry.ServiceRepository
	dedupe   shared.IdempotencyStore
	clock    shared.Clock
	opts     Options
	logger   *zap.Logger
	metrics  *telemetry.BillingMetrics
}

// NewService creates the windower. dedupe may be nil; the ledger unique key
// alone then guards against double counting.
func NewService(
	repo usage.Repository,
	services registry.ServiceRepository,
	dedupe shared.IdempotencyStore,
	clock shared.Clock,
	opts Options,
	logger *zap.Logger,
) (*Service, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	return &Service{
		repo:     repo,
		services: services,
		dedupe:   dedupe,
		clock:    clock,
		opts:     opts,
		logger:   logger,
	}, nil
}

// SetMetrics sets the metrics recorder (optional)
func (s *Service) SetMetrics(m *telemetry.BillingMetrics) {
	s.metrics = m
}

// Policy returns the window policy in force
func (s *Service) Policy() usage.WindowPolicy {
	return s.opts.Policy
}

// Ingest validates the whole batch and then records each event in its own
// transaction. Any invalid event rejects the batch before anything is written.
// On a storage failure the counts so far are returned with the error; a retry
// of the same batch is safe because recorded events come back as duplicates.
func (s *Service) Ingest(ctx context.Context, events []usage.Event, source string) (usage.IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "ingest")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEventCount, len(events),
		"source", source,
	)

	result, err := s.ingest(ctx, events, source)
	telemetry.SetAttributes(span,
		"accepted", result.Accepted,
		"duplicates", result.Duplicates,
		"late", result.Late,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetOK(span)
	return result, nil
}

func (s *Service) ingest(ctx context.Context, events []usage.Event, source string) (usage.IngestResult, error) {
	var result usage.IngestResult
	now := s.clock.Now()

	if len(events) == 0 {
		return result, shared.NewValidationError("at least one event is required")
	}
	if s.opts.MaxBatchSize > 0 && len(events) > s.opts.MaxBatchSize {
		return result, shared.NewValidationError("batch of %d events exceeds the limit of %d", len(events), s.opts.MaxBatchSize)
	}

	memLimits, err := s.validateBatch(ctx, events, now)
	if err != nil {
		return result, err
	}

	log := logger.WithLogger(ctx, s.logger)
	for _, e := range events {
		outcome, err := s.ingestOne(ctx, e, memLimits[e.ServiceID], now)
		if err != nil {
			log.Error("Usage event ingestion failed",
				zap.String("event_id", e.EventID),
				zap.Int("accepted_so_far", result.Accepted),
				zap.Error(err),
			)
			return result, err
		}
		result.Add(outcome)
		s.metrics.RecordEvent(ctx, e.TenantID, outcome.String(), source)

		if outcome == usage.OutcomeLate {
			log.Warn("Late usage event rejected",
				zap.String("event_id", e.EventID),
				zap.String("service_id", e.ServiceID.String()),
				zap.Time("timestamp", e.Timestamp),
				zap.Time("window_closes_at", s.opts.Policy.ClosesAt(s.opts.Policy.WindowFor(e.Timestamp))),
			)
		}
	}

	log.Debug("Usage batch ingested",
		zap.String("source", source),
		zap.Int("accepted", result.Accepted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("late", result.Late),
	)
	return result, nil
}

// validateBatch checks every event and resolves the memory limit of each
// referenced service
func (s *Service) validateBatch(ctx context.Context, events []usage.Event, now time.Time) (map[uuid.UUID]int64, error) {
	memLimits := make(map[uuid.UUID]int64)
	owners := make(map[uuid.UUID]uuid.UUID)

	for i := range events {
		e := &events[i]
		*e = e.Normalized()
		if err := e.Validate(now, s.opts.MaxClockSkew); err != nil {
			return nil, err
		}

		owner, seen := owners[e.ServiceID]
		if !seen {
			svc, err := s.services.FindByID(ctx, e.ServiceID)
			if err != nil {
				return nil, err
			}
			owner = svc.TenantID
			owners[e.ServiceID] = owner
			memLimits[e.ServiceID] = int64(svc.MemoryLimitMB)
		}
		if owner != e.TenantID {
			return nil, shared.NewValidationError("event %s: service %s does not belong to tenant %s", e.EventID, e.ServiceID, e.TenantID)
		}
	}
	return memLimits, nil
}

func (s *Service) ingestOne(ctx context.Context, e usage.Event, fallbackMemMB int64, now time.Time) (usage.Outcome, error) {
	inc := usage.IncrementFor(e, fallbackMemMB)
	w := s.opts.Policy.WindowFor(e.Timestamp)
	rec := usage.EventRecord{
		Event:       e,
		WindowStart: w.Start,
		Status:      usage.EventStatusAccepted,
		ReceivedAt:  now.UTC(),
	}
	rec.MemMB = fallbackMemMB
	if e.MemMB > 0 {
		rec.MemMB = e.MemMB
	}

	if s.seen(ctx, e.EventID) {
		return usage.OutcomeDuplicate, nil
	}

	var (
		outcome usage.Outcome
		err     error
	)
	if s.opts.Policy.IsLate(e.Timestamp, now) {
		rec.Status = usage.EventStatusLate
		outcome, err = s.repo.RecordLate(ctx, rec)
	} else {
		outcome, err = s.repo.Record(ctx, rec, w, inc)
	}
	if err != nil {
		return 0, err
	}

	s.markSeen(ctx, e.EventID)
	return outcome, nil
}

// seen consults the fast-path store. Store failures fall through to the
// database unique key.
func (s *Service) seen(ctx context.Context, eventID string) bool {
	if s.dedupe == nil {
		return false
	}
	ok, err := s.dedupe.IsProcessed(ctx, eventID)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Idempotency store lookup failed", zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) markSeen(ctx context.Context, eventID string) {
	if s.dedupe == nil {
		return
	}
	if _, err := s.dedupe.MarkProcessed(ctx, eventID, s.opts.DedupeTTL); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Idempotency store update failed", zap.Error(err))
	}
}

// CloseWindows seals every window whose grace period has passed at now
func (s *Service) CloseWindows(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "close_windows")
	defer span.End()

	cutoff := s.opts.Policy.CloseCutoff(now)
	n, err := s.repo.CloseDue(ctx, cutoff, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrWindowsClosed, n)
	telemetry.SetOK(span)
	s.metrics.RecordWindowsClosed(ctx, n)
	if n > 0 {
		logger.WithLogger(ctx, s.logger).Info("Usage windows closed",
			zap.Int64("closed", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}

// PurgeEvents removes ledger rows past retention. Only rows of windows that
// are already closable are touched.
func (s *Service) PurgeEvents(ctx context.Context, now time.Time) (int64, error) {
	if s.opts.EventRetention <= 0 {
		return 0, nil
	}
	before := now.UTC().Add(-s.opts.EventRetention)
	if latest := s.opts.Policy.CloseCutoff(now).Add(-s.opts.Policy.Size); before.After(latest) {
		before = latest
	}
	n, err := s.repo.PurgeEvents(ctx, before)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordEventsPurged(ctx, n)
	if n > 0 {
		logger.WithLogger(ctx, s.logger).Info("Usage events purged",
			zap.Int64("purged", n),
			zap.Time("before", before),
		)
	}
	return n, nil
}

// ListAggregates returns windows ordered by window_start, service_id
func (s *Service) ListAggregates(ctx context.Context, input ListAggregatesInput) ([]AggregateDTO, error) {
	if input.Start != nil && input.End != nil && !input.Start.Before(*input.End) {
		return nil, shared.NewValidationError("start_time must be before end_time")
	}
	aggs, err := s.repo.List(ctx, usage.AggregateFilter{
		TenantID:    input.TenantID,
		ServiceID:   input.ServiceID,
		Start:       input.Start,
		End:         input.End,
		IncludeOpen: input.IncludeOpen,
	})
	if err != nil {
		return nil, err
	}
	out := make([]AggregateDTO, len(aggs))
	for i := range aggs {
		out[i] = ToAggregateDTO(&aggs[i])
	}
	return out, nil
}

// ListClosedForTenant returns the closed windows of a tenant whose start lies in [start, end)
func (s *Service) ListClosedForTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]usage.Aggregate, error) {
	return s.repo.List(ctx, usage.AggregateFilter{
		TenantID: &tenantID,
		Start:    &start,
		End:      &end,
	})
}
