package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's statement log through zap. Statement entries
// inherit request, tenant and trace IDs from the query context.
type GormLogger struct {
	log          *zap.Logger
	level        gormlogger.LogLevel
	slow         time.Duration
	skipNotFound bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements log as SLOW SQL.
// Zero disables slow statement logging.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = d }
}

// WithIgnoreRecordNotFoundError drops ErrRecordNotFound entirely (the default)
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.skipNotFound = ignore }
}

// NewGormLogger creates a gorm logger writing to a "gorm" child of log
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		log:          log.Named("gorm"),
		level:        level,
		slow:         200 * time.Millisecond,
		skipNotFound: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	if ce := WithLogger(ctx, l.log).Zap().Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := WithLogger(ctx, l.log).Zap().Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// classify picks the level and message for a statement, or ok=false to drop it
func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case err != nil:
		if l.level < gormlogger.Error {
			return 0, "", false
		}
		notFound := errors.Is(err, gormlogger.ErrRecordNotFound)
		if notFound && l.skipNotFound {
			return 0, "", false
		}
		// idempotent inserts expect to lose unique key races
		if notFound || isDuplicateKey(err) {
			return zapcore.DebugLevel, "SQL Error", true
		}
		return zapcore.ErrorLevel, "SQL Error", true
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		return zapcore.WarnLevel, fmt.Sprintf("SLOW SQL >= %v", l.slow), true
	case l.level >= gormlogger.Info:
		return zapcore.DebugLevel, "SQL Query", true
	}
	return 0, "", false
}

// MapGormLogLevel maps the application log level onto gorm's levels. debug and
// info both log every statement; unknown levels default to warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
