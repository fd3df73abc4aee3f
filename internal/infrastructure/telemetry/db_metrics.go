package telemetry

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig configures statement and connection pool metrics.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DBMetrics records statement counts and latency, slow statements by table,
// and samples connection pool usage.
type DBMetrics struct {
	queries   *Counter
	latency   *Histogram
	slow      *Counter
	pool      *Gauge
	poolLimit *Gauge

	config DBMetricsConfig
	logger *zap.Logger
	sqlDB  *sql.DB
	key    queryStartKey

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics creates the instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}
	m := &DBMetrics{
		config: cfg,
		logger: logger,
		key:    queryStartKey{plugin: "metrics"},
		stop:   make(chan struct{}),
	}

	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Statements executed, by verb", "{query}"); err != nil {
		return nil, err
	}
	if m.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slow, err = NewCounter(meter, "db_slow_query_total", "Statements over the slow threshold, by table", "{query}"); err != nil {
		return nil, err
	}
	if m.pool, err = NewGauge(meter, "db_pool_connections", "Pooled connections, by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolLimit, err = NewGauge(meter, "db_pool_connections_max", "Connection pool limit", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, verb, table string, d time.Duration) {
	if verb == "" {
		verb = "OTHER"
	}
	m.queries.Inc(ctx, AttrDBOperation.String(verb))
	m.latency.RecordDuration(ctx, d, AttrDBOperation.String(verb))
	if d > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slow.Inc(ctx, AttrDBTable.String(table))
	}
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string { return "billing_db_metrics" }

// Initialize implements gorm.Plugin
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	return registerAround(db, "billing_metrics", markStart(m.key), func(verb string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			v := verb
			if v == "" {
				v = sqlVerb(db.Statement.SQL.String())
			}
			ctx := db.Statement.Context
			if ctx == nil {
				ctx = context.Background()
			}
			d, _ := elapsedSince(ctx, m.key)
			m.RecordQuery(ctx, v, db.Statement.Table, d)
		}
	})
}

// StartPoolStatsCollection samples sql.DB pool stats until Stop or ctx ends
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.sqlDB == nil {
		m.logger.Warn("Pool stats collection skipped: no sql.DB")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()
		for {
			m.samplePool(ctx)
			select {
			case <-ticker.C:
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) samplePool(ctx context.Context) {
	stats := m.sqlDB.Stats()
	m.poolLimit.Record(ctx, int64(stats.MaxOpenConnections))
	m.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.pool.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
	})
}

// RegisterDBMetrics attaches DBMetrics to db. It returns nil, nil when metrics
// are disabled or the meter provider does not export.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		return nil, nil
	}
	m, err := NewDBMetrics(mp.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}
	if m.sqlDB, err = db.DB(); err != nil {
		return nil, err
	}
	if err := db.Use(m); err != nil {
		return nil, err
	}
	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", m.config.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", m.config.PoolStatsInterval),
	)
	return m, nil
}
