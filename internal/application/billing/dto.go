package billing

import (
	"encoding/json"
	"time"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// money renders an amount as a JSON number with two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// LineItemDTO is one priced dimension of a statement
type LineItemDTO struct {
	Name     string      `json:"name"`
	Quantity json.Number `json:"quantity"`
	FreeTier json.Number `json:"free_tier"`
	Amount   json.Number `json:"amount"`
	Unit     string      `json:"unit"`
	Rate     json.Number `json:"rate"`
	Cost     json.Number `json:"cost"`
}

func toLineItemDTOs(items []billing.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, len(items))
	for i, it := range items {
		out[i] = LineItemDTO{
			Name:     it.Name,
			Quantity: number(it.Quantity),
			FreeTier: number(it.FreeTier),
			Amount:   number(it.Amount),
			Unit:     it.Unit,
			Rate:     number(it.Rate),
			Cost:     money(it.Cost),
		}
	}
	return out
}

// StatementDTO is the result of an ephemeral calculation
type StatementDTO struct {
	TenantID       uuid.UUID     `json:"tenant_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Currency       string        `json:"currency"`
	TotalCost      json.Number   `json:"total_cost"`
	LineItems      []LineItemDTO `json:"line_items"`
	PricingPlanID  uuid.UUID     `json:"pricing_plan_id"`
	AggregateCount int           `json:"aggregate_count"`
}

// ToStatementDTO converts a calculated statement
func ToStatementDTO(st billing.Statement) StatementDTO {
	return StatementDTO{
		TenantID:       st.TenantID,
		StartTime:      st.Period.Start,
		EndTime:        st.Period.End,
		Currency:       st.Currency,
		TotalCost:      money(st.TotalCost),
		LineItems:      toLineItemDTOs(st.LineItems),
		PricingPlanID:  st.PricingPlanID,
		AggregateCount: st.AggregateCount,
	}
}

// BillDTO is a persisted statement; ID is the bill's reference key
type BillDTO struct {
	ID             uuid.UUID     `json:"id"`
	TenantID       uuid.UUID     `json:"tenant_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Currency       string        `json:"currency"`
	TotalCost      json.Number   `json:"total_cost"`
	LineItems      []LineItemDTO `json:"line_items"`
	PricingPlanID  uuid.UUID     `json:"pricing_plan_id"`
	AggregateCount int           `json:"aggregate_count"`
	Revision       int           `json:"revision"`
	GeneratedAt    time.Time     `json:"generated_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ToBillDTO converts a domain bill
func ToBillDTO(b *billing.Bill) BillDTO {
	return BillDTO{
		ID:             b.ID,
		TenantID:       b.TenantID,
		StartTime:      b.Period.Start,
		EndTime:        b.Period.End,
		Currency:       b.Currency,
		TotalCost:      money(b.TotalCost),
		LineItems:      toLineItemDTOs(b.LineItems),
		PricingPlanID:  b.PricingPlanID,
		AggregateCount: b.AggregateCount,
		Revision:       b.Revision,
		GeneratedAt:    b.GeneratedAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// PaymentDTO is the wire shape of a payment
type PaymentDTO struct {
	ID           uuid.UUID   `json:"id"`
	BillID       uuid.UUID   `json:"bill_id"`
	TenantID     uuid.UUID   `json:"tenant_id"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Status       string      `json:"status"`
	ExternalRef  string      `json:"external_ref,omitempty"`
	PaidAt       *time.Time  `json:"paid_at"`
	ReconciledAt *time.Time  `json:"reconciled_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ToPaymentDTO converts a domain payment
func ToPaymentDTO(p *billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:           p.ID,
		BillID:       p.BillID,
		TenantID:     p.TenantID,
		Amount:       money(p.Amount),
		Currency:     p.Currency,
		Status:       string(p.Status),
		ExternalRef:  p.ExternalRef,
		PaidAt:       p.PaidAt,
		ReconciledAt: p.ReconciledAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// PeriodInput selects a tenant's billing range [Start, End)
type PeriodInput struct {
	TenantID uuid.UUID
	Start    time.Time
	End      time.Time
}

// GenerateInput asks for a persisted bill
type GenerateInput struct {
	PeriodInput
	Regenerate bool
}
