// Package pricing defines the rate cards bills are calculated with.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rates are the unit prices of a plan, all in the plan currency
type Rates struct {
	PerMillionInvocations decimal.Decimal
	PerGBSecond           decimal.Decimal
	PerColdStart          decimal.Decimal
	PerGBEgress           decimal.Decimal
}

// FreeTier is the usage absorbed before a plan starts charging
type FreeTier struct {
	Invocations int64
	GBSeconds   decimal.Decimal
	EgressGB    decimal.Decimal
}

// Plan is a pricing rule. A plan without TenantID is a platform plan
// usable by every tenant; at most one platform plan is the default.
type Plan struct {
	shared.BaseEntity
	Name      string
	TenantID  *uuid.UUID
	IsDefault bool
	Currency  string
	Rates     Rates
	FreeTier  FreeTier
	Active    bool
}

// PlanSpec carries the caller-supplied attributes of a new plan
type PlanSpec struct {
	Name      string
	TenantID  *uuid.UUID
	IsDefault bool
	Currency  string
	Rates     Rates
	FreeTier  FreeTier
}

// NewPlan validates spec and creates an active plan
func NewPlan(spec PlanSpec, now time.Time) (*Plan, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, shared.NewValidationError("pricing plan name is required")
	}
	code, ok := valueobject.NormalizeCurrency(spec.Currency)
	if !ok {
		return nil, shared.NewValidationError("currency %q is not an ISO 4217 code", spec.Currency)
	}
	if spec.IsDefault && spec.TenantID != nil {
		return nil, shared.NewValidationError("a tenant-scoped plan cannot be the platform default")
	}
	for field, v := range map[string]decimal.Decimal{
		"price_per_million_invocations": spec.Rates.PerMillionInvocations,
		"price_per_gb_second":           spec.Rates.PerGBSecond,
		"price_per_cold_start":          spec.Rates.PerColdStart,
		"price_per_gb_egress":           spec.Rates.PerGBEgress,
		"free_tier_gb_seconds":          spec.FreeTier.GBSeconds,
		"free_tier_egress_gb":           spec.FreeTier.EgressGB,
	} {
		if v.IsNegative() {
			return nil, shared.NewValidationError("%s must not be negative", field)
		}
	}
	if spec.FreeTier.Invocations < 0 {
		return nil, shared.NewValidationError("free_tier_invocations must not be negative")
	}

	return &Plan{
		BaseEntity: shared.NewBaseEntity(now),
		Name:       name,
		TenantID:   spec.TenantID,
		IsDefault:  spec.IsDefault,
		Currency:   code,
		Rates:      spec.Rates,
		FreeTier:   spec.FreeTier,
		Active:     true,
	}, nil
}

// UsableBy reports whether the plan may be assigned to tenantID
func (p *Plan) UsableBy(tenantID uuid.UUID) bool {
	return p.Active && (p.TenantID == nil || *p.TenantID == tenantID)
}

// Repository persists pricing plans
type Repository interface {
	// Save inserts the plan; saving a default plan clears the flag on the previous default
	Save(ctx context.Context, plan *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// FindDefault returns the active platform default plan or shared.ErrNotFound
	FindDefault(ctx context.Context) (*Plan, error)
	List(ctx context.Context, activeOnly bool) ([]Plan, error)
}
