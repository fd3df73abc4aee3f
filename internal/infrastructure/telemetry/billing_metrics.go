package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics tracks usage ingestion, window lifecycle and billing activity.
// A nil *BillingMetrics is valid and records nothing, so services can be
// constructed without telemetry.
type BillingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	eventsTotal      *Counter
	windowsClosed    *Counter
	eventsPurged     *Counter
	billsGenerated   *Counter
	billedAmount     *Counter
	paymentsTotal    *Counter
	calcDuration     *Histogram
	openWindowsGauge *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	windowProvider OpenWindowProvider
}

// OpenWindowProvider reports how many aggregation windows are still open.
// It lets the telemetry layer sample window backlog without importing the
// usage domain.
type OpenWindowProvider interface {
	CountOpenWindows(ctx context.Context) (int64, error)
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter          metric.Meter
	Logger         *zap.Logger
	WindowProvider OpenWindowProvider
}

// NewBillingMetrics creates the billing instruments on cfg.Meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		windowProvider: cfg.WindowProvider,
	}

	var err error
	if bm.eventsTotal, err = NewCounter(cfg.Meter,
		"usage.events", "Usage events processed, by outcome", "{events}"); err != nil {
		return nil, err
	}
	if bm.windowsClosed, err = NewCounter(cfg.Meter,
		"usage.windows.closed", "Aggregation windows sealed", "{windows}"); err != nil {
		return nil, err
	}
	if bm.eventsPurged, err = NewCounter(cfg.Meter,
		"usage.events.purged", "Ledger rows removed by retention", "{events}"); err != nil {
		return nil, err
	}
	if bm.billsGenerated, err = NewCounter(cfg.Meter,
		"billing.bills.generated", "Bills persisted, by outcome (created, existing, regenerated)", "{bills}"); err != nil {
		return nil, err
	}
	if bm.billedAmount, err = NewCounter(cfg.Meter,
		"billing.amount", "Billed amount in minor currency units", "{cents}"); err != nil {
		return nil, err
	}
	if bm.paymentsTotal, err = NewCounter(cfg.Meter,
		"billing.payments", "Payment transitions, by resulting status", "{payments}"); err != nil {
		return nil, err
	}
	if bm.calcDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing.calculation.duration",
		Description: "Time spent calculating a statement",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.openWindowsGauge, err = NewGauge(cfg.Meter,
		"usage.windows.open", "Aggregation windows not yet closed", "{windows}"); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordEvent counts one ingested event. outcome is accepted, duplicate or late.
func (bm *BillingMetrics) RecordEvent(ctx context.Context, tenantID uuid.UUID, outcome, source string) {
	if bm == nil {
		return
	}
	bm.eventsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
		AttrSource.String(source),
	)
}

// RecordWindowsClosed counts sealed windows
func (bm *BillingMetrics) RecordWindowsClosed(ctx context.Context, n int64) {
	if bm == nil || n <= 0 {
		return
	}
	bm.windowsClosed.Add(ctx, n)
}

// RecordEventsPurged counts ledger rows removed by retention
func (bm *BillingMetrics) RecordEventsPurged(ctx context.Context, n int64) {
	if bm == nil || n <= 0 {
		return
	}
	bm.eventsPurged.Add(ctx, n)
}

// RecordBill counts a bill generation and, for new snapshots, its amount.
func (bm *BillingMetrics) RecordBill(ctx context.Context, tenantID uuid.UUID, outcome, currency string, total decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.billsGenerated.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
	if outcome == "existing" {
		return
	}
	cents := total.Mul(decimal.NewFromInt(100)).IntPart()
	bm.billedAmount.Add(ctx, cents,
		AttrTenantID.String(tenantID.String()),
		AttrCurrency.String(currency),
	)
}

// RecordCalculation records how long a statement took to calculate
func (bm *BillingMetrics) RecordCalculation(ctx context.Context, d time.Duration) {
	if bm == nil {
		return
	}
	bm.calcDuration.RecordDuration(ctx, d)
}

// RecordPayment counts a payment reaching status
func (bm *BillingMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, status string) {
	if bm == nil {
		return
	}
	bm.paymentsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentStatus.String(status),
	)
}

// StartPeriodicCollection samples the open window gauge every interval
// (default 1 minute). It is non-blocking; call Stop to end it.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if bm == nil {
		return
	}
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectWindowMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic billing metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic billing metrics collection")
			return
		case <-ticker.C:
			bm.collectWindowMetrics(ctx)
		}
	}
}

func (bm *BillingMetrics) collectWindowMetrics(ctx context.Context) {
	if bm.windowProvider == nil {
		bm.logger.Debug("No window provider configured, skipping window metrics collection")
		return
	}
	n, err := bm.windowProvider.CountOpenWindows(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count open windows", zap.Error(err))
		return
	}
	bm.openWindowsGauge.Record(ctx, n)
}

// Stop stops the periodic collection.
func (bm *BillingMetrics) Stop() {
	if bm == nil {
		return
	}
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
