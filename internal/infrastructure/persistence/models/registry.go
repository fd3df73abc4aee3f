package models

import (
	"time"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/google/uuid"
)

// TenantModel is the persistence model for tenants
type TenantModel struct {
	BaseModel
	Name          string     `gorm:"type:varchar(255);not null"`
	BillingEmail  string     `gorm:"type:varchar(320);not null"`
	Currency      string     `gorm:"type:char(3);not null"`
	PricingPlanID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the model to a domain entity
func (m *TenantModel) ToDomain() *registry.Tenant {
	return &registry.Tenant{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		BillingEmail:  m.BillingEmail,
		Currency:      m.Currency,
		PricingPlanID: m.PricingPlanID,
	}
}

// TenantModelFromDomain creates a model from a domain entity
func TenantModelFromDomain(t *registry.Tenant) *TenantModel {
	m := &TenantModel{
		Name:          t.Name,
		BillingEmail:  t.BillingEmail,
		Currency:      t.Currency,
		PricingPlanID: t.PricingPlanID,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// ServiceModel is the persistence model for services; artifact columns are
// nullable and only set once a package has been uploaded.
type ServiceModel struct {
	BaseModel
	TenantID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name                string     `gorm:"type:varchar(255);not null"`
	Description         string     `gorm:"type:text;not null"`
	Runtime             string     `gorm:"type:varchar(64);not null"`
	MemoryLimitMB       int        `gorm:"column:memory_limit_mb;not null"`
	ArtifactKey         *string    `gorm:"type:varchar(512)"`
	ArtifactName        *string    `gorm:"type:varchar(255)"`
	ArtifactSize        *int64
	ArtifactSHA256      *string    `gorm:"column:artifact_sha256;type:char(64)"`
	ArtifactContentType *string    `gorm:"type:varchar(255)"`
	ArtifactUploadedAt  *time.Time
}

// TableName returns the table name for GORM
func (ServiceModel) TableName() string {
	return "services"
}

// ToDomain converts the model to a domain entity
func (m *ServiceModel) ToDomain() *registry.Service {
	s := &registry.Service{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		Name:          m.Name,
		Description:   m.Description,
		Runtime:       m.Runtime,
		MemoryLimitMB: m.MemoryLimitMB,
	}
	if m.ArtifactKey != nil {
		a := &registry.Artifact{Key: *m.ArtifactKey}
		if m.ArtifactName != nil {
			a.Name = *m.ArtifactName
		}
		if m.ArtifactSize != nil {
			a.SizeBytes = *m.ArtifactSize
		}
		if m.ArtifactSHA256 != nil {
			a.SHA256 = *m.ArtifactSHA256
		}
		if m.ArtifactContentType != nil {
			a.ContentType = *m.ArtifactContentType
		}
		if m.ArtifactUploadedAt != nil {
			a.UploadedAt = m.ArtifactUploadedAt.UTC()
		}
		s.Artifact = a
	}
	return s
}

// ServiceModelFromDomain creates a model from a domain entity
func ServiceModelFromDomain(s *registry.Service) *ServiceModel {
	m := &ServiceModel{
		TenantID:      s.TenantID,
		Name:          s.Name,
		Description:   s.Description,
		Runtime:       s.Runtime,
		MemoryLimitMB: s.MemoryLimitMB,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	if a := s.Artifact; a != nil {
		uploaded := a.UploadedAt.UTC()
		m.ArtifactKey = &a.Key
		m.ArtifactName = &a.Name
		m.ArtifactSize = &a.SizeBytes
		m.ArtifactSHA256 = &a.SHA256
		m.ArtifactContentType = &a.ContentType
		m.ArtifactUploadedAt = &uploaded
	}
	return m
}
