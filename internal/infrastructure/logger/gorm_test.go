package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func traceFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(50*time.Millisecond))
	ctx := WithRequestID(context.Background(), "req-7")

	gl.Trace(ctx, time.Now(), traceFn("SELECT 1", 1), nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), traceFn("SELECT pg_sleep(1)", 1), nil)
	gl.Trace(ctx, time.Now(), traceFn("INSERT", 0), errors.New("connection reset"))
	gl.Trace(ctx, time.Now(), traceFn("SELECT", 0), gorm.ErrRecordNotFound)
	gl.Trace(ctx, time.Now(), traceFn("INSERT", 0), gorm.ErrDuplicatedKey)

	assert.Equal(t, 1, recorded.FilterMessage("SQL Query").Len())
	assert.Equal(t, 1, recorded.FilterMessage("SLOW SQL >= 50ms").Len())

	errs := recorded.FilterMessage("SQL Error").All()
	// not-found is ignored entirely, the duplicate key is demoted to debug
	if assert.Len(t, errs, 2) {
		assert.Equal(t, zapcore.ErrorLevel, errs[0].Level)
		assert.Equal(t, "req-7", errs[0].ContextMap()["request_id"])
		assert.Equal(t, zapcore.DebugLevel, errs[1].Level)
	}
}

func TestGormLogger_Silent(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info).LogMode(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), traceFn("SELECT 1", 1), errors.New("x"))
	gl.Info(context.Background(), "hello %s", "world")
	assert.Equal(t, 0, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
