package models

import (
	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingPlanModel is the persistence model for pricing plans
type PricingPlanModel struct {
	BaseModel
	Name                       string          `gorm:"type:varchar(255);not null"`
	TenantID                   *uuid.UUID      `gorm:"type:uuid;index"`
	IsDefault                  bool            `gorm:"not null"`
	Currency                   string          `gorm:"type:char(3);not null"`
	PricePerMillionInvocations decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PricePerGBSecond           decimal.Decimal `gorm:"column:price_per_gb_second;type:numeric(20,10);not null"`
	PricePerColdStart          decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PricePerGBEgress           decimal.Decimal `gorm:"column:price_per_gb_egress;type:numeric(20,10);not null"`
	FreeTierInvocations        int64           `gorm:"not null"`
	FreeTierGBSeconds          decimal.Decimal `gorm:"column:free_tier_gb_seconds;type:numeric(20,6);not null"`
	FreeTierEgressGB           decimal.Decimal `gorm:"column:free_tier_egress_gb;type:numeric(20,6);not null"`
	Active                     bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PricingPlanModel) TableName() string {
	return "pricing_plans"
}

// ToDomain converts the model to a domain entity
func (m *PricingPlanModel) ToDomain() *pricing.Plan {
	return &pricing.Plan{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		TenantID:   m.TenantID,
		IsDefault:  m.IsDefault,
		Currency:   m.Currency,
		Rates: pricing.Rates{
			PerMillionInvocations: m.PricePerMillionInvocations,
			PerGBSecond:           m.PricePerGBSecond,
			PerColdStart:          m.PricePerColdStart,
			PerGBEgress:           m.PricePerGBEgress,
		},
		FreeTier: pricing.FreeTier{
			Invocations: m.FreeTierInvocations,
			GBSeconds:   m.FreeTierGBSeconds,
			EgressGB:    m.FreeTierEgressGB,
		},
		Active: m.Active,
	}
}

// PricingPlanModelFromDomain creates a model from a domain entity
func PricingPlanModelFromDomain(p *pricing.Plan) *PricingPlanModel {
	m := &PricingPlanModel{
		Name:                       p.Name,
		TenantID:                   p.TenantID,
		IsDefault:                  p.IsDefault,
		Currency:                   p.Currency,
		PricePerMillionInvocations: p.Rates.PerMillionInvocations,
		PricePerGBSecond:           p.Rates.PerGBSecond,
		PricePerColdStart:          p.Rates.PerColdStart,
		PricePerGBEgress:           p.Rates.PerGBEgress,
		FreeTierInvocations:        p.FreeTier.Invocations,
		FreeTierGBSeconds:          p.FreeTier.GBSeconds,
		FreeTierEgressGB:           p.FreeTier.EgressGB,
		Active:                     p.Active,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}
