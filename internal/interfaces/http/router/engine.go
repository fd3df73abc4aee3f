package router

import (
	"fmt"

	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineConfig selects the global middleware of the HTTP engine
type EngineConfig struct {
	HTTP             config.HTTPConfig
	Production       bool
	ServiceName      string
	TracingEnabled   bool
	MeterProvider    *telemetry.MeterProvider
	MetricsEnabled   bool
	ProfilingEnabled bool
}

// NewEngine builds a gin engine with the global middleware chain:
// request ID, panic recovery, request logging, tracing, metrics, profiling
// labels, CORS and security headers
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, fmt.Errorf("set trusted proxies: %w", err)
		}
	} else {
		// ClientIP then uses the socket address only
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	if cfg.TracingEnabled {
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.TracingAttributeInjector())
	}

	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: cfg.MeterProvider,
		ServiceName:   cfg.ServiceName,
		Enabled:       cfg.MetricsEnabled,
	}))

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.ProfilingEnabled
	engine.Use(middleware.ProfilingWithConfig(profiling))

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(
		cfg.HTTP.CORSAllowOrigins,
		cfg.HTTP.CORSAllowMethods,
		cfg.HTTP.CORSAllowHeaders,
	)))
	engine.Use(middleware.Secure())

	engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, dto.ErrCodeNotFound, "Route not found")
	})
	return engine, nil
}
