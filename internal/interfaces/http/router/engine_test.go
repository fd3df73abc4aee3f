package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewEngine_Middleware(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		HTTP:        config.HTTPConfig{CORSAllowOrigins: []string{"https://dash.example.com"}},
		ServiceName: "faasbill-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	engine.GET("/panic", func(*gin.Context) { panic("boom") })
	Register(engine, testHandlers(), RouteOptions{})

	t.Run("request id and security headers", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("cors for configured origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/tenants", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"ERR_NOT_FOUND"`)
	})

	t.Run("panics become 500", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/panic")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNewEngine_BadTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{
		HTTP: config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}},
	}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
