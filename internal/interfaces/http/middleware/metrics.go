package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	ServiceName   string
	Enabled       bool
}

// DefaultHTTPMetricsConfig returns default HTTP metrics configuration.
func DefaultHTTPMetricsConfig() HTTPMetricsConfig {
	return HTTPMetricsConfig{ServiceName: "faasbill-backend", Enabled: true}
}

// artifact uploads push request sizes far past JSON bodies
var sizeBuckets = []float64{1e2, 5e2, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6, 5e6, 5e7}

type httpInstruments struct {
	total    *telemetry.Counter
	duration *telemetry.Histogram
	reqSize  *telemetry.Histogram
	respSize *telemetry.Histogram
	inflight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in   httpInstruments
		errs []error
		err  error
	)
	in.total, err = telemetry.NewCounter(meter, "http_server_request_total", "HTTP requests served", "{request}")
	errs = append(errs, err)

	histograms := []struct {
		dst  **telemetry.Histogram
		opts telemetry.HistogramOpts
	}{
		{&in.duration, telemetry.HistogramOpts{Name: "http_server_request_duration_seconds", Description: "HTTP request latency", Unit: "s", Boundaries: telemetry.HTTPDurationBuckets}},
		{&in.reqSize, telemetry.HistogramOpts{Name: "http_server_request_size_bytes", Description: "HTTP request body size", Unit: "By", Boundaries: sizeBuckets}},
		{&in.respSize, telemetry.HistogramOpts{Name: "http_server_response_size_bytes", Description: "HTTP response body size", Unit: "By", Boundaries: sizeBuckets}},
	}
	for _, h := range histograms {
		*h.dst, err = telemetry.NewHistogram(meter, h.opts)
		errs = append(errs, err)
	}

	in.inflight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &in, nil
}

// HTTPMetrics counts requests by method, matched route, status and tenant, and
// records latency, body sizes and in-flight requests. It is a pass-through
// when metrics are off.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter is HTTPMetrics on an existing meter
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	in, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}
	return in.middleware
}

func passThrough(c *gin.Context) { c.Next() }

func (in *httpInstruments) middleware(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()
	reqSize := c.Request.ContentLength

	in.inflight.Add(ctx, 1)
	c.Next()
	in.inflight.Add(ctx, -1)

	route := routePattern(c)
	in.observe(ctx, observation{
		method:   c.Request.Method,
		route:    route,
		status:   c.Writer.Status(),
		tenantID: GetTenantID(c),
		elapsed:  time.Since(start),
		reqSize:  reqSize,
		respSize: int64(c.Writer.Size()),
	})
}

type observation struct {
	method, route, tenantID string
	status                  int
	elapsed                 time.Duration
	reqSize, respSize       int64
}

func (in *httpInstruments) observe(ctx context.Context, o observation) {
	// latency and sizes are keyed by method and route only
	base := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(o.method),
		telemetry.AttrHTTPRoute.String(o.route),
	}
	counted := append(append([]attribute.KeyValue{}, base...), telemetry.AttrHTTPStatusCode.Int(o.status))
	if o.tenantID != "" {
		counted = append(counted, telemetry.AttrTenantID.String(o.tenantID))
	}
	in.total.Inc(ctx, counted...)
	in.duration.RecordDuration(ctx, o.elapsed, base...)
	if o.reqSize > 0 {
		in.reqSize.Record(ctx, float64(o.reqSize), base...)
	}
	if o.respSize > 0 {
		in.respSize.Record(ctx, float64(o.respSize), base...)
	}
}

// routePattern uses the matched pattern, not the raw path, so IDs do not
// become label values.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
