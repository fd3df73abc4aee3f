package registry

import (
	"context"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantRepository persists tenants
type TenantRepository interface {
	Save(ctx context.Context, tenant *Tenant) error
	Update(ctx context.Context, tenant *Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// List returns tenants in creation order
	List(ctx context.Context) ([]Tenant, error)
}

// ServiceFilter narrows ListServices
type ServiceFilter struct {
	TenantID *uuid.UUID
	shared.Page
}

// ServiceRepository persists services
type ServiceRepository interface {
	Save(ctx context.Context, service *Service) error
	FindByID(ctx context.Context, id uuid.UUID) (*Service, error)
	// List returns services ordered by (created_at, id) so pages are stable
	List(ctx context.Context, filter ServiceFilter) ([]Service, error)
}
