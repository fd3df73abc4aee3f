package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	billingapp "github.com/faasbill/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingHandler handles bill calculation, bills and payments
type BillingHandler struct {
	BaseHandler
	billing *billingapp.Service
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billing *billingapp.Service) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// BillingPeriodRequest selects a tenant's billing range [start_time, end_time)
type BillingPeriodRequest struct {
	TenantID  uuid.UUID `json:"tenant_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required" example:"2026-09-01T00:00:00Z"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime" example:"2026-10-01T00:00:00Z"`
}

func (r BillingPeriodRequest) toInput() billingapp.PeriodInput {
	return billingapp.PeriodInput{
		TenantID: r.TenantID,
		Start:    r.StartTime.UTC(),
		End:      r.EndTime.UTC(),
	}
}

// GenerateBillRequest is the body of POST /billing/generate
type GenerateBillRequest struct {
	BillingPeriodRequest
	Regenerate bool `json:"regenerate"`
}

// PayRequest is the body of POST /payments/:id/pay
type PayRequest struct {
	ExternalRef string `json:"external_ref" binding:"max=255" example:"psp_8f2a"`
}

// Calculate godoc
// @ID           calculateBill
// @Summary      Preview a bill
// @Description  Prices closed usage windows without persisting anything
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        request body BillingPeriodRequest true "Period"
// @Success      200 {object} billingapp.StatementDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /billing/calculate [post]
func (h *BillingHandler) Calculate(c *gin.Context) {
	var req BillingPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	withTenant(c, req.TenantID)

	statement, err := h.billing.CalculateBill(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, statement)
}

// Generate godoc
// @ID           generateBill
// @Summary      Generate a bill
// @Description  Idempotent per (tenant, period). Returns 201 when a bill is created and 200 with the existing bill otherwise. regenerate=true recomputes an unpaid bill in place.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        request body GenerateBillRequest true "Period"
// @Success      200 {object} billingapp.BillDTO
// @Success      201 {object} billingapp.BillDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /billing/generate [post]
func (h *BillingHandler) Generate(c *gin.Context) {
	var req GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	withTenant(c, req.TenantID)

	bill, created, err := h.billing.GenerateBill(c.Request.Context(), billingapp.GenerateInput{
		PeriodInput: req.toInput(),
		Regenerate:  req.Regenerate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.createdOrOK(c, created, bill)
}

// ListBills godoc
// @ID           listBills
// @Summary      List a tenant's bills
// @Tags         bills
// @Produce      json
// @Param        tenant_id query string true "Tenant ID" format(uuid)
// @Success      200 {array} billingapp.BillDTO
// @Failure      400 {object} dto.ErrorResponse
// @Router       /bills [get]
func (h *BillingHandler) ListBills(c *gin.Context) {
	tenantID, ok := h.uuidQuery(c, "tenant_id")
	if !ok {
		return
	}
	if tenantID == nil {
		h.BadRequest(c, "tenant_id is required")
		return
	}
	withTenant(c, *tenantID)

	bills, err := h.billing.ListBills(c.Request.Context(), *tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, bills)
}

// GetBill godoc
// @ID           getBill
// @Summary      Get a bill
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} billingapp.BillDTO
// @Failure      404 {object} dto.ErrorResponse
// @Router       /bills/{id} [get]
func (h *BillingHandler) GetBill(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	bill, err := h.billing.GetBill(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	withTenant(c, bill.TenantID)
	h.OK(c, bill)
}

// CreatePayment godoc
// @ID           createPayment
// @Summary      Start payment of a bill
// @Description  One payment per bill. Returns 201 when created and 200 with the existing payment otherwise.
// @Tags         payments
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} billingapp.PaymentDTO
// @Success      201 {object} billingapp.PaymentDTO
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /bills/{id}/payments [post]
func (h *BillingHandler) CreatePayment(c *gin.Context) {
	billID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payment, created, err := h.billing.CreatePayment(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.createdOrOK(c, created, payment)
}

// GetPaymentForBill godoc
// @ID           getBillPayment
// @Summary      Get the payment of a bill
// @Tags         payments
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} billingapp.PaymentDTO
// @Failure      404 {object} dto.ErrorResponse
// @Router       /bills/{id}/payment [get]
func (h *BillingHandler) GetPaymentForBill(c *gin.Context) {
	billID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.billing.GetPaymentForBill(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, payment)
}

// GetPayment godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} billingapp.PaymentDTO
// @Failure      404 {object} dto.ErrorResponse
// @Router       /payments/{id} [get]
func (h *BillingHandler) GetPayment(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.billing.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, payment)
}

// Pay godoc
// @ID           payPayment
// @Summary      Mark a payment as paid
// @Description  Settles the bill. Repeating the call on a paid payment returns it unchanged.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body PayRequest false "Processor reference"
// @Success      200 {object} billingapp.PaymentDTO
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /payments/{id}/pay [post]
func (h *BillingHandler) Pay(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	// The body is optional
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindingError(c, err)
		return
	}
	payment, err := h.billing.MarkPaid(c.Request.Context(), id, req.ExternalRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, payment)
}

// Reconcile godoc
// @ID           reconcilePayment
// @Summary      Reconcile a paid payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} billingapp.PaymentDTO
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /payments/{id}/reconcile [post]
func (h *BillingHandler) Reconcile(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.billing.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, payment)
}

func (h *BillingHandler) createdOrOK(c *gin.Context, created bool, body any) {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, body)
}
