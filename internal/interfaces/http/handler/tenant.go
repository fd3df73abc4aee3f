package handler

import (
	pricingapp "github.com/faasbill/backend/internal/application/pricing"
	registryapp "github.com/faasbill/backend/internal/application/registry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TenantHandler handles tenant HTTP requests, including the tenant's
// pricing plan assignment
type TenantHandler struct {
	BaseHandler
	registry *registryapp.Service
	pricing  *pricingapp.Service
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(registry *registryapp.Service, pricing *pricingapp.Service) *TenantHandler {
	return &TenantHandler{
		registry: registry,
		pricing:  pricing,
	}
}

// CreateTenantRequest is the body of POST /tenants
type CreateTenantRequest struct {
	Name         string `json:"name" binding:"required,max=255" example:"Acme Functions"`
	BillingEmail string `json:"billing_email" binding:"omitempty,email,max=255" example:"billing@acme.test"`
	Currency     string `json:"currency" binding:"omitempty,iso4217" example:"USD"`
}

// RenameTenantRequest is the body of PUT /tenants/:id
type RenameTenantRequest struct {
	Name string `json:"name" binding:"required,max=255" example:"Acme Serverless"`
}

// AssignPlanRequest is the body of PUT /tenants/:id/pricing-plan
type AssignPlanRequest struct {
	PricingPlanID uuid.UUID `json:"pricing_plan_id" binding:"required"`
}

// Create godoc
// @ID           createTenant
// @Summary      Create a tenant
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body CreateTenantRequest true "Tenant"
// @Success      201 {object} registryapp.TenantDTO
// @Failure      400 {object} dto.ErrorResponse
// @Router       /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	tenant, err := h.registry.CreateTenant(c.Request.Context(), registryapp.CreateTenantInput{
		Name:         req.Name,
		BillingEmail: req.BillingEmail,
		Currency:     req.Currency,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	withTenant(c, tenant.ID)
	h.Created(c, tenant)
}

// List godoc
// @ID           listTenants
// @Summary      List tenants
// @Tags         tenants
// @Produce      json
// @Success      200 {array} registryapp.TenantDTO
// @Router       /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.registry.ListTenants(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, tenants)
}

// Get godoc
// @ID           getTenant
// @Summary      Get a tenant
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} registryapp.TenantDTO
// @Failure      404 {object} dto.ErrorResponse
// @Router       /tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	withTenant(c, id)

	tenant, err := h.registry.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, tenant)
}

// Rename godoc
// @ID           renameTenant
// @Summary      Rename a tenant
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id path string true "Tenant ID" format(uuid)
// @Param        request body RenameTenantRequest true "New name"
// @Success      200 {object} registryapp.TenantDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /tenants/{id} [put]
func (h *TenantHandler) Rename(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	withTenant(c, id)

	var req RenameTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	tenant, err := h.registry.RenameTenant(c.Request.Context(), id, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, tenant)
}

// GetPricingPlan godoc
// @ID           getTenantPricingPlan
// @Summary      Effective pricing plan of a tenant
// @Description  The assigned plan, else the platform default. 422 when neither exists.
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID" format(uuid)
// @Success      200 {object} pricingapp.PlanDTO
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /tenants/{id}/pricing-plan [get]
func (h *TenantHandler) GetPricingPlan(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	withTenant(c, id)

	plan, err := h.pricing.GetTenantPlan(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, plan)
}

// AssignPricingPlan godoc
// @ID           assignTenantPricingPlan
// @Summary      Assign a pricing plan to a tenant
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id path string true "Tenant ID" format(uuid)
// @Param        request body AssignPlanRequest true "Plan"
// @Success      200 {object} pricingapp.PlanDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /tenants/{id}/pricing-plan [put]
func (h *TenantHandler) AssignPricingPlan(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	withTenant(c, id)

	var req AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	plan, err := h.pricing.AssignPlan(c.Request.Context(), id, req.PricingPlanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, plan)
}
