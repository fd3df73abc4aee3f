package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyLimitRouter(limit int64) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/test", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusBadRequest, "body too large")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	t.Run("allows request within limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("small body"))
		w := serve(bodyLimitRouter(1024), req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects declared length over the limit with the envelope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 200)))
		w := serve(bodyLimitRouter(100), req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodePayloadTooLarge, resp.Error.Code)
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("caps streamed bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1
		w := serve(bodyLimitRouter(50), req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero disables the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 4096)))
		w := serve(bodyLimitRouter(0), req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
