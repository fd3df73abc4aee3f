package handler

import (
	pricingapp "github.com/faasbill/backend/internal/application/pricing"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingPlanHandler handles pricing plan endpoints
type PricingPlanHandler struct {
	BaseHandler
	pricing *pricingapp.Service
}

// NewPricingPlanHandler creates a new pricing plan handler
func NewPricingPlanHandler(pricing *pricingapp.Service) *PricingPlanHandler {
	return &PricingPlanHandler{pricing: pricing}
}

// CreatePricingPlanRequest is the body of POST /pricing-plans.
// Rates accept JSON numbers or decimal strings.
type CreatePricingPlanRequest struct {
	Name                       string          `json:"name" binding:"required,max=255" example:"standard"`
	TenantID                   *uuid.UUID      `json:"tenant_id,omitempty"`
	IsDefault                  bool            `json:"is_default"`
	Currency                   string          `json:"currency" binding:"omitempty,iso4217" example:"USD"`
	PricePerMillionInvocations decimal.Decimal `json:"price_per_million_invocations" binding:"gte=0" swaggertype:"string" example:"0.20"`
	PricePerGBSecond           decimal.Decimal `json:"price_per_gb_second" binding:"gte=0" swaggertype:"string" example:"0.0000166667"`
	PricePerColdStart          decimal.Decimal `json:"price_per_cold_start" binding:"gte=0" swaggertype:"string" example:"0"`
	PricePerGBEgress           decimal.Decimal `json:"price_per_gb_egress" binding:"gte=0" swaggertype:"string" example:"0.09"`
	FreeTierInvocations        int64           `json:"free_tier_invocations" binding:"gte=0" example:"1000000"`
	FreeTierGBSeconds          decimal.Decimal `json:"free_tier_gb_seconds" binding:"gte=0" swaggertype:"string" example:"400000"`
	FreeTierEgressGB           decimal.Decimal `json:"free_tier_egress_gb" binding:"gte=0" swaggertype:"string" example:"1"`
}

// List godoc
// @ID           listPricingPlans
// @Summary      List pricing plans
// @Tags         pricing-plans
// @Produce      json
// @Param        active query bool false "Only active plans" default(true)
// @Success      200 {array} pricingapp.PlanDTO
// @Failure      400 {object} dto.ErrorResponse
// @Router       /pricing-plans [get]
func (h *PricingPlanHandler) List(c *gin.Context) {
	activeOnly, ok := dto.ParseBoolQuery(c.Query("active"), true)
	if !ok {
		h.BadRequest(c, "Invalid active: must be a boolean")
		return
	}
	plans, err := h.pricing.ListPlans(c.Request.Context(), activeOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, plans)
}

// Create godoc
// @ID           createPricingPlan
// @Summary      Create a pricing plan
// @Tags         pricing-plans
// @Accept       json
// @Produce      json
// @Param        request body CreatePricingPlanRequest true "Plan"
// @Success      201 {object} pricingapp.PlanDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Router       /pricing-plans [post]
func (h *PricingPlanHandler) Create(c *gin.Context) {
	var req CreatePricingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	if req.TenantID != nil {
		withTenant(c, *req.TenantID)
	}

	plan, err := h.pricing.CreatePlan(c.Request.Context(), pricingapp.CreatePlanInput{
		Name:                       req.Name,
		TenantID:                   req.TenantID,
		IsDefault:                  req.IsDefault,
		Currency:                   req.Currency,
		PricePerMillionInvocations: req.PricePerMillionInvocations,
		PricePerGBSecond:           req.PricePerGBSecond,
		PricePerColdStart:          req.PricePerColdStart,
		PricePerGBEgress:           req.PricePerGBEgress,
		FreeTierInvocations:        req.FreeTierInvocations,
		FreeTierGBSeconds:          req.FreeTierGBSeconds,
		FreeTierEgressGB:           req.FreeTierEgressGB,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}
