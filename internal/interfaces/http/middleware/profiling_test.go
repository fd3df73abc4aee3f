package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const profilingTenant = "6f1c1f8e-4b1a-4d43-9a53-0d5b0b9b8f11"

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := middleware.DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/ready")
}

func TestProfilingMiddleware_AttachesLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Profiling())

	labels := map[string]string{}
	r.GET("/api/v1/usage-aggregates", func(c *gin.Context) {
		for _, key := range []string{"route", "method", "tenant_id"} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage-aggregates?tenant_id="+profilingTenant, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{
		"route":     "/api/v1/usage-aggregates",
		"method":    "GET",
		"tenant_id": profilingTenant,
	}, labels)
}

func TestProfilingMiddleware_SkipsHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Profiling())

	labelled := true
	r.GET("/health", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), "route")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, labelled)
}

func TestProfilingMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{Enabled: false}))

	called := false
	r.GET("/api/v1/bills/:id", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bills/1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
