package middleware

import (
	"context"
	"strings"

	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths get no labels (e.g. health checks)
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags CPU samples taken while a request is handled with
// its route pattern, method and, when the query names one, tenant. Pyroscope
// can then split profiles by endpoint.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		}, profilingLabels(c)...)
	}
}

func profilingLabels(c *gin.Context) []string {
	kv := make([]string, 0, 6)
	if route := c.FullPath(); route != "" {
		kv = append(kv, telemetry.ProfilingLabelRoute, route)
	}
	if method := c.Request.Method; method != "" {
		kv = append(kv, telemetry.ProfilingLabelMethod, strings.ToUpper(method))
	}
	if tenantID := GetTenantID(c); tenantID != "" {
		kv = append(kv, telemetry.ProfilingLabelTenantID, tenantID)
	}
	return kv
}
