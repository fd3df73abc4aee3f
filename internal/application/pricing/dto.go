package pricing

import (
	"encoding/json"
	"time"

	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanDTO is the wire shape of a pricing plan
type PlanDTO struct {
	ID                         uuid.UUID   `json:"id"`
	Name                       string      `json:"name"`
	TenantID                   *uuid.UUID  `json:"tenant_id"`
	IsDefault                  bool        `json:"is_default"`
	Currency                   string      `json:"currency"`
	PricePerMillionInvocations json.Number `json:"price_per_million_invocations"`
	PricePerGBSecond           json.Number `json:"price_per_gb_second"`
	PricePerColdStart          json.Number `json:"price_per_cold_start"`
	PricePerGBEgress           json.Number `json:"price_per_gb_egress"`
	FreeTierInvocations        int64       `json:"free_tier_invocations"`
	FreeTierGBSeconds          json.Number `json:"free_tier_gb_seconds"`
	FreeTierEgressGB           json.Number `json:"free_tier_egress_gb"`
	Active                     bool        `json:"active"`
	CreatedAt                  time.Time   `json:"created_at"`
	UpdatedAt                  time.Time   `json:"updated_at"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// ToPlanDTO converts a domain plan
func ToPlanDTO(p *pricing.Plan) PlanDTO {
	return PlanDTO{
		ID:                         p.ID,
		Name:                       p.Name,
		TenantID:                   p.TenantID,
		IsDefault:                  p.IsDefault,
		Currency:                   p.Currency,
		PricePerMillionInvocations: number(p.Rates.PerMillionInvocations),
		PricePerGBSecond:           number(p.Rates.PerGBSecond),
		PricePerColdStart:          number(p.Rates.PerColdStart),
		PricePerGBEgress:           number(p.Rates.PerGBEgress),
		FreeTierInvocations:        p.FreeTier.Invocations,
		FreeTierGBSeconds:          number(p.FreeTier.GBSeconds),
		FreeTierEgressGB:           number(p.FreeTier.EgressGB),
		Active:                     p.Active,
		CreatedAt:                  p.CreatedAt,
		UpdatedAt:                  p.UpdatedAt,
	}
}

// CreatePlanInput carries a new plan. Zero decimals mean "free".
type CreatePlanInput struct {
	Name                       string
	TenantID                   *uuid.UUID
	IsDefault                  bool
	Currency                   string
	PricePerMillionInvocations decimal.Decimal
	PricePerGBSecond           decimal.Decimal
	PricePerColdStart          decimal.Decimal
	PricePerGBEgress           decimal.Decimal
	FreeTierInvocations        int64
	FreeTierGBSeconds          decimal.Decimal
	FreeTierEgressGB           decimal.Decimal
}
