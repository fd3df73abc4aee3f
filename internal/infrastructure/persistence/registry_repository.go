package persistence

import (
	"context"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/faasbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantRepository implements registry.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Save inserts a new tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *registry.Tenant) error {
	err := r.db.WithContext(ctx).Create(models.TenantModelFromDomain(tenant)).Error
	return translateError("save tenant", err)
}

// Update writes the mutable tenant fields
func (r *GormTenantRepository) Update(ctx context.Context, tenant *registry.Tenant) error {
	result := r.db.WithContext(ctx).
		Model(&models.TenantModel{}).
		Where("id = ?", tenant.ID).
		Updates(map[string]any{
			"name":            tenant.Name,
			"billing_email":   tenant.BillingEmail,
			"currency":        tenant.Currency,
			"pricing_plan_id": tenant.PricingPlanID,
			"updated_at":      tenant.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return translateError("update tenant", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("update tenant", "tenant", tenant.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*registry.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound("find tenant", "tenant", id, err)
	}
	return model.ToDomain(), nil
}

// Exists reports whether the tenant is registered
func (r *GormTenantRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TenantModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translateError("check tenant", err)
	}
	return count > 0, nil
}

// List returns every tenant in creation order
func (r *GormTenantRepository) List(ctx context.Context) ([]registry.Tenant, error) {
	var rows []models.TenantModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, translateError("list tenants", err)
	}
	tenants := make([]registry.Tenant, len(rows))
	for i := range rows {
		tenants[i] = *rows[i].ToDomain()
	}
	return tenants, nil
}

// GormServiceRepository implements registry.ServiceRepository using GORM
type GormServiceRepository struct {
	db *gorm.DB
}

// NewGormServiceRepository creates a new GormServiceRepository
func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

// Save inserts a new service together with its artifact metadata
func (r *GormServiceRepository) Save(ctx context.Context, service *registry.Service) error {
	err := r.db.WithContext(ctx).Create(models.ServiceModelFromDomain(service)).Error
	return translateError("save service", err)
}

// FindByID finds a service by its ID
func (r *GormServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*registry.Service, error) {
	var model models.ServiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound("find service", "service", id, err)
	}
	return model.ToDomain(), nil
}

// List returns services ordered by (created_at, id)
func (r *GormServiceRepository) List(ctx context.Context, filter registry.ServiceFilter) ([]registry.Service, error) {
	page := filter.Page.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ServiceModel{})
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}

	var rows []models.ServiceModel
	err := query.Order("created_at ASC, id ASC").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, translateError("list services", err)
	}
	services := make([]registry.Service, len(rows))
	for i := range rows {
		services[i] = *rows[i].ToDomain()
	}
	return services, nil
}
