package telemetry_test

import (
	"context"
	"testing"

	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestProviders_DisabledAreNoops(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "faasbill"}, log)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("billing"))
	require.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.SpanProfilesEnabled(), "nothing to wrap while disabled")
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "faasbill"}, log)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("billing"))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{ServiceName: "faasbill"}, log)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewZapOTELCore_DisabledIsNop(t *testing.T) {
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, zap.NewNop())
	require.NoError(t, err)

	for _, provider := range []*telemetry.LoggerProvider{nil, lp} {
		core := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    "faasbill",
			LoggerProvider: provider,
			Level:          zapcore.InfoLevel,
		})
		assert.False(t, core.Enabled(zapcore.ErrorLevel))
	}
}

func TestNewZapOTELCore_EnabledFiltersLevel(t *testing.T) {
	// the exporter connects lazily, so no collector is needed
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "faasbill",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	require.True(t, lp.IsEnabled())

	core := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    "faasbill",
		LoggerProvider: lp,
		Level:          zapcore.WarnLevel,
	})
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	child := core.With([]zapcore.Field{zap.String("tenant_id", "t-1")})
	assert.False(t, child.Enabled(zapcore.DebugLevel), "level survives With")
	assert.Nil(t, child.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil))
}

func TestInstruments(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	ctx := context.Background()

	c, err := telemetry.NewCounter(meter, "bills", "bills", "{bills}")
	require.NoError(t, err)
	h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{Name: "latency", Unit: "s", Boundaries: telemetry.SmallDurationBuckets})
	require.NoError(t, err)
	g, err := telemetry.NewGauge(meter, "open", "open windows", "{windows}")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		c.Inc(ctx, telemetry.AttrOutcome.String("created"))
		c.Add(ctx, 2)
		h.Record(ctx, 0.2)
		g.Record(ctx, 5, telemetry.AttrTenantID.String("t-1"))
	})
}
