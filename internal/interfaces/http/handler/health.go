package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DatabasePinger reports database reachability
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger reports cache reachability
type CachePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	BaseHandler
	db      DatabasePinger
	cache   CachePinger
	timeout time.Duration
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler. cache may be nil.
func NewHealthHandler(db DatabasePinger, cache CachePinger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Health godoc
// @ID           getHealth
// @Summary      Service health
// @Description  Pings the database (and cache when configured). 503 when the database is unreachable.
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.HealthResponse
// @Failure      503 {object} dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:   "ok",
		Database: "ok",
		Time:     h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check database ping failed", zap.Error(err))
		resp.Status = "unavailable"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}

	// Redis loss degrades dedupe and locking but the API keeps serving
	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Health check cache ping failed", zap.Error(err))
			resp.Cache = "unavailable"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	c.JSON(status, resp)
}
