package registry

import (
	"io"
	"time"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/google/uuid"
)

// TenantDTO is the wire shape of a tenant
type TenantDTO struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	BillingEmail  string     `json:"billing_email,omitempty"`
	Currency      string     `json:"currency"`
	PricingPlanID *uuid.UUID `json:"pricing_plan_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ToTenantDTO converts a domain tenant
func ToTenantDTO(t *registry.Tenant) TenantDTO {
	return TenantDTO{
		ID:            t.ID,
		Name:          t.Name,
		BillingEmail:  t.BillingEmail,
		Currency:      t.Currency,
		PricingPlanID: t.PricingPlanID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ArtifactDTO describes an uploaded package
type ArtifactDTO struct {
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ServiceDTO is the wire shape of a service
type ServiceDTO struct {
	ID            uuid.UUID    `json:"id"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Runtime       string       `json:"runtime,omitempty"`
	MemoryLimitMB int          `json:"memory_limit_mb"`
	Artifact      *ArtifactDTO `json:"artifact"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ToServiceDTO converts a domain service; the storage key stays internal
func ToServiceDTO(s *registry.Service) ServiceDTO {
	dto := ServiceDTO{
		ID:            s.ID,
		TenantID:      s.TenantID,
		Name:          s.Name,
		Description:   s.Description,
		Runtime:       s.Runtime,
		MemoryLimitMB: s.MemoryLimitMB,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if a := s.Artifact; a != nil {
		dto.Artifact = &ArtifactDTO{
			Name:        a.Name,
			SizeBytes:   a.SizeBytes,
			SHA256:      a.SHA256,
			ContentType: a.ContentType,
			UploadedAt:  a.UploadedAt,
		}
	}
	return dto
}

// CreateTenantInput contains input for creating a tenant
type CreateTenantInput struct {
	Name         string
	BillingEmail string
	Currency     string
}

// ArtifactUpload is a package streamed as part of service creation
type ArtifactUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateServiceInput contains input for registering a service
type CreateServiceInput struct {
	TenantID      uuid.UUID
	Name          string
	Description   string
	Runtime       string
	MemoryLimitMB int
	Artifact      *ArtifactUpload
}

// ListServicesInput filters ListServices
type ListServicesInput struct {
	TenantID *uuid.UUID
	Page     int
	PageSize int
}
