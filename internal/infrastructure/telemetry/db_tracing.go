package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// queryStartKey carries the statement start time between gorm callbacks
type queryStartKey struct{ plugin string }

// registerAround installs before and after callbacks on every gorm processor.
// after receives the SQL verb for the processor, or "" for Row and Raw.
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(verb string) func(*gorm.DB)) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register(prefix+":before_create", before),
		cb.Query().Before("gorm:query").Register(prefix+":before_query", before),
		cb.Update().Before("gorm:update").Register(prefix+":before_update", before),
		cb.Delete().Before("gorm:delete").Register(prefix+":before_delete", before),
		cb.Row().Before("gorm:row").Register(prefix+":before_row", before),
		cb.Raw().Before("gorm:raw").Register(prefix+":before_raw", before),
		cb.Create().After("gorm:create").Register(prefix+":after_create", after("INSERT")),
		cb.Query().After("gorm:query").Register(prefix+":after_query", after("SELECT")),
		cb.Update().After("gorm:update").Register(prefix+":after_update", after("UPDATE")),
		cb.Delete().After("gorm:delete").Register(prefix+":after_delete", after("DELETE")),
		cb.Row().After("gorm:row").Register(prefix+":after_row", after("")),
		cb.Raw().After("gorm:raw").Register(prefix+":after_raw", after("")),
	)
}

// markStart returns a before callback stamping the statement context
func markStart(key queryStartKey) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
}

func elapsedSince(ctx context.Context, key queryStartKey) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	start, ok := ctx.Value(key).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// sqlVerb classifies Row and Raw statements by their leading keyword
func sqlVerb(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	if strings.HasPrefix(sql, "WITH") {
		return "SELECT"
	}
	return "OTHER"
}

// DBTracingConfig configures statement spans.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bind variables in db.statement; never enable in production
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DBTracingPlugin adds otelgorm statement spans and annotates them with row
// counts, table names and a slow query event.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
	key    queryStartKey
}

// NewDBTracingPlugin creates the plugin; RegisterOtelGorm attaches it
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracingPlugin{config: cfg, logger: logger, key: queryStartKey{plugin: "tracing"}}
}

// RegisterOtelGorm installs otelgorm and the annotation callbacks on db
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	// annotation runs before otelgorm's after callbacks, which end the span
	if err := registerAround(db, "billing_trace", markStart(p.key), func(string) func(*gorm.DB) {
		return p.annotate
	}); err != nil {
		return err
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
	if elapsed, ok := elapsedSince(ctx, p.key); ok && elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
