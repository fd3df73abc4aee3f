package handler

import (
	"errors"
	"net/http"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities.
// Success bodies are the resource itself; failures use the error envelope.
type BaseHandler struct{}

// OK sends a 200 response with the resource as body
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with the resource as body
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error envelope, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 validation envelope
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeValidation, message)
}

// BindingError sends a 400 envelope with per-field details
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts domain errors to HTTP responses. Anything else is
// logged and reported as an internal error without its cause.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		if code == dto.ErrCodeTransient {
			logger.GetGinLogger(c).Warn("Transient failure", zap.Error(err))
		}
		h.Error(c, code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	_ = c.Error(err)
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// uuidParam parses a path parameter, writing a 400 when it is malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, ok := dto.ParseUUIDParam(c.Param(name))
	if !ok {
		h.BadRequest(c, "Invalid "+name+": must be a UUID")
	}
	return id, ok
}

// uuidQuery parses an optional query parameter
func (h *BaseHandler) uuidQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, ok := dto.ParseUUIDParam(raw)
	if !ok {
		h.BadRequest(c, "Invalid "+name+": must be a UUID")
		return nil, false
	}
	return &id, true
}

// withTenant records the tenant for tracing, metrics and logs
func withTenant(c *gin.Context, tenantID uuid.UUID) {
	id := tenantID.String()
	c.Set(middleware.TenantIDKey, id)
	c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), id))
}
