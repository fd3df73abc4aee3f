// Package pricing manages pricing plans and decides which plan prices a tenant.
package pricing

import (
	"context"
	"errors"

	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service handles pricing plans
type Service struct {
	plans   pricing.Repository
	tenants registry.TenantRepository
	clock   shared.Clock
	logger  *zap.Logger
}

// NewService creates a pricing service
func NewService(plans pricing.Repository, tenants registry.TenantRepository, clock shared.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{plans: plans, tenants: tenants, clock: clock, logger: logger}
}

// CreatePlan validates and stores a plan. A default plan replaces the
// previous platform default.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (*PlanDTO, error) {
	plan, err := pricing.NewPlan(pricing.PlanSpec{
		Name:      input.Name,
		TenantID:  input.TenantID,
		IsDefault: input.IsDefault,
		Currency:  input.Currency,
		Rates: pricing.Rates{
			PerMillionInvocations: input.PricePerMillionInvocations,
			PerGBSecond:           input.PricePerGBSecond,
			PerColdStart:          input.PricePerColdStart,
			PerGBEgress:           input.PricePerGBEgress,
		},
		FreeTier: pricing.FreeTier{
			Invocations: input.FreeTierInvocations,
			GBSeconds:   input.FreeTierGBSeconds,
			EgressGB:    input.FreeTierEgressGB,
		},
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if plan.TenantID != nil {
		exists, err := s.tenants.Exists(ctx, *plan.TenantID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, shared.NewNotFoundError("tenant", *plan.TenantID)
		}
	}

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Pricing plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.Bool("default", plan.IsDefault),
	)
	dto := ToPlanDTO(plan)
	return &dto, nil
}

// ListPlans returns plans, optionally only the active ones
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]PlanDTO, error) {
	plans, err := s.plans.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]PlanDTO, len(plans))
	for i := range plans {
		out[i] = ToPlanDTO(&plans[i])
	}
	return out, nil
}

// AssignPlan pins planID to the tenant. The plan must be active and either a
// platform plan or scoped to the same tenant.
func (s *Service) AssignPlan(ctx context.Context, tenantID, planID uuid.UUID) (*PlanDTO, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewValidationError("pricing plan %s does not exist", planID)
		}
		return nil, err
	}
	if !plan.UsableBy(tenantID) {
		return nil, shared.NewValidationError("pricing plan %s cannot be assigned to tenant %s", planID, tenantID)
	}

	tenant.AssignPricingPlan(plan.ID, s.clock.Now())
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Pricing plan assigned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("plan_id", planID.String()),
	)
	dto := ToPlanDTO(plan)
	return &dto, nil
}

// GetTenantPlan returns the plan the calculator would use for the tenant
func (s *Service) GetTenantPlan(ctx context.Context, tenantID uuid.UUID) (*PlanDTO, error) {
	plan, err := s.ResolvePlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	dto := ToPlanDTO(plan)
	return &dto, nil
}

// ResolvePlan applies the lookup policy: the tenant's assigned plan, else the
// active platform default. Unknown tenants are NotFound; a tenant without an
// applicable plan is a ConfigurationError.
func (s *Service) ResolvePlan(ctx context.Context, tenantID uuid.UUID) (*pricing.Plan, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if tenant.PricingPlanID != nil {
		plan, err := s.plans.FindByID(ctx, *tenant.PricingPlanID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return nil, shared.NewConfigurationError("pricing plan %s assigned to tenant %s no longer exists", *tenant.PricingPlanID, tenantID)
		case err != nil:
			return nil, err
		case !plan.UsableBy(tenantID):
			return nil, shared.NewConfigurationError("pricing plan %s assigned to tenant %s is inactive", plan.ID, tenantID)
		}
		return plan, nil
	}

	plan, err := s.plans.FindDefault(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewConfigurationError("no pricing plan configured for tenant %s", tenantID)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}
