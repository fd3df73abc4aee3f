package handler

import (
	"bytes"
	"encoding/json"
	"time"

	usageapp "github.com/faasbill/backend/internal/application/usage"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/faasbill/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// UsageHandler handles event ingestion and aggregate queries
type UsageHandler struct {
	BaseHandler
	usage *usageapp.Service
	clock shared.Clock
}

// NewUsageHandler creates a new usage handler. clock decides which windows
// are due on a manual close and defaults to the system clock.
func NewUsageHandler(usage *usageapp.Service, clock shared.Clock) *UsageHandler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &UsageHandler{usage: usage, clock: clock}
}

type eventEnvelope struct {
	Events []usageapp.EventInput `json:"events"`
}

// Ingest godoc
// @ID           ingestUsageEvents
// @Summary      Ingest invocation events
// @Description  Body is a JSON array of events or {"events": [...]}. Any invalid event rejects the whole batch.
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        request body []usageapp.EventInput true "Events"
// @Success      200 {object} dto.IngestResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      413 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /usage-events [post]
func (h *UsageHandler) Ingest(c *gin.Context) {
	events, err := decodeEvents(c)
	if err != nil {
		h.BindingError(c, err)
		return
	}
	if err := middleware.ValidateElements(events); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.usage.Ingest(c.Request.Context(), usageapp.ToEvents(events), usageapp.SourceHTTP)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.IngestResponse{
		Accepted:   result.Accepted,
		Duplicates: result.Duplicates,
		Late:       result.Late,
	})
}

// decodeEvents accepts either a bare array or an {"events": [...]} envelope
func decodeEvents(c *gin.Context) ([]usageapp.EventInput, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var events []usageapp.EventInput
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Events, nil
}

// ListAggregates godoc
// @ID           listUsageAggregates
// @Summary      List usage aggregates
// @Description  Closed windows only unless include_open=true. start_time and end_time filter window_start in [start_time, end_time).
// @Tags         usage
// @Produce      json
// @Param        tenant_id query string false "Tenant ID" format(uuid)
// @Param        service_id query string false "Service ID" format(uuid)
// @Param        start_time query string false "RFC 3339 lower bound" format(date-time)
// @Param        end_time query string false "RFC 3339 upper bound" format(date-time)
// @Param        include_open query bool false "Include open windows"
// @Success      200 {object} dto.DataResponse[usageapp.AggregateDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Router       /usage-aggregates [get]
func (h *UsageHandler) ListAggregates(c *gin.Context) {
	var input usageapp.ListAggregatesInput
	var ok bool

	if input.TenantID, ok = h.uuidQuery(c, "tenant_id"); !ok {
		return
	}
	if input.ServiceID, ok = h.uuidQuery(c, "service_id"); !ok {
		return
	}
	if input.Start, ok = h.timeQuery(c, "start_time"); !ok {
		return
	}
	if input.End, ok = h.timeQuery(c, "end_time"); !ok {
		return
	}
	if input.IncludeOpen, ok = dto.ParseBoolQuery(c.Query("include_open"), false); !ok {
		h.BadRequest(c, "Invalid include_open: must be a boolean")
		return
	}
	if input.TenantID != nil {
		withTenant(c, *input.TenantID)
	}

	aggregates, err := h.usage.ListAggregates(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.DataResponse[usageapp.AggregateDTO]{Data: aggregates})
}

// CloseWindows godoc
// @ID           closeUsageWindows
// @Summary      Close due aggregation windows
// @Description  Same pass the background scheduler runs; safe to call at any time
// @Tags         usage
// @Produce      json
// @Success      200 {object} dto.CloseResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /usage-aggregates/close [post]
func (h *UsageHandler) CloseWindows(c *gin.Context) {
	closed, err := h.usage.CloseWindows(c.Request.Context(), h.clock.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.CloseResponse{Closed: closed})
}

// timeQuery parses an optional RFC 3339 query parameter
func (h *BaseHandler) timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.BadRequest(c, "Invalid "+name+": must be an RFC 3339 timestamp")
		return nil, false
	}
	t = t.UTC()
	return &t, true
}
