// Package middleware provides HTTP middleware for the billing API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "faasbill-backend", Enabled: true}
}

// Tracing is TracingWithConfig(DefaultTracingConfig())
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts a server span per request through otelgin, named
// "METHOD route", and tags it with the request and tenant IDs.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	otelMW := otelgin.Middleware(cfg.ServiceName)
	return func(c *gin.Context) {
		otelMW(c)
		tagSpan(c)
	}
}

// recordingSpan returns the request span, or nil when nothing records it
func recordingSpan(c *gin.Context) trace.Span {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return nil
	}
	return span
}

func tagSpan(c *gin.Context) {
	span := recordingSpan(c)
	if span == nil {
		return
	}
	var attrs []attribute.KeyValue
	if id := GetRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if id := GetTenantID(c); id != "" {
		attrs = append(attrs, attribute.String("tenant_id", id))
	}
	span.SetAttributes(attrs...)
}

// SpanErrorMarker sets error status on the request span for 4xx and 5xx
// responses. 5xx descriptions are generic so internals stay out of traces.
// It must run inside Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		span := recordingSpan(c)
		if span == nil || status < http.StatusBadRequest {
			return
		}
		desc := http.StatusText(status)
		if status >= http.StatusInternalServerError {
			desc = http.StatusText(http.StatusInternalServerError)
		}
		span.SetStatus(codes.Error, desc)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// TracingAttributeInjector tags the span again after the handlers ran, which
// picks up a tenant ID that was only known once the body was parsed.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		tagSpan(c)
	}
}
