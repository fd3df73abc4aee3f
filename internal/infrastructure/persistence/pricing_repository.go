package persistence

import (
	"context"
	"errors"

	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPricingPlanRepository implements pricing.Repository using GORM
type GormPricingPlanRepository struct {
	db *gorm.DB
}

// NewGormPricingPlanRepository creates a new GormPricingPlanRepository
func NewGormPricingPlanRepository(db *gorm.DB) *GormPricingPlanRepository {
	return &GormPricingPlanRepository{db: db}
}

// Save inserts the plan. A new default demotes the previous one in the same transaction.
func (r *GormPricingPlanRepository) Save(ctx context.Context, plan *pricing.Plan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if plan.IsDefault {
			if err := tx.Model(&models.PricingPlanModel{}).
				Where("is_default = ? AND id <> ?", true, plan.ID).
				Updates(map[string]any{"is_default": false, "updated_at": plan.UpdatedAt.UTC()}).Error; err != nil {
				return err
			}
		}
		return tx.Create(models.PricingPlanModelFromDomain(plan)).Error
	})
	return translateError("save pricing plan", err)
}

// FindByID finds a plan by its ID
func (r *GormPricingPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Plan, error) {
	var model models.PricingPlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound("find pricing plan", "pricing plan", id, err)
	}
	return model.ToDomain(), nil
}

// FindDefault returns the active platform default plan
func (r *GormPricingPlanRepository) FindDefault(ctx context.Context) (*pricing.Plan, error) {
	var model models.PricingPlanModel
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND active = ? AND tenant_id IS NULL", true, true).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, translateError("find default pricing plan", err)
	}
	return model.ToDomain(), nil
}

// List returns plans in creation order
func (r *GormPricingPlanRepository) List(ctx context.Context, activeOnly bool) ([]pricing.Plan, error) {
	query := r.db.WithContext(ctx).Model(&models.PricingPlanModel{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.PricingPlanModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, translateError("list pricing plans", err)
	}
	plans := make([]pricing.Plan, len(rows))
	for i := range rows {
		plans[i] = *rows[i].ToDomain()
	}
	return plans, nil
}
