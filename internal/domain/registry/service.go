package registry

import (
	"strings"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// DefaultMemoryLimitMB is applied when a service is registered without a limit
	DefaultMemoryLimitMB = 128
	// MaxMemoryLimitMB is the largest memory size a function may declare
	MaxMemoryLimitMB = 10240
)

// Artifact describes the deployable package uploaded for a service
type Artifact struct {
	Key         string
	Name        string
	SizeBytes   int64
	SHA256      string
	ContentType string
	UploadedAt  time.Time
}

// ServiceSpec carries the caller-supplied attributes of a new service
type ServiceSpec struct {
	Name          string
	Description   string
	Runtime       string
	MemoryLimitMB int
}

// Service is a deployable function owned by a tenant, the unit of usage metering
type Service struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	Name          string
	Description   string
	Runtime       string
	MemoryLimitMB int
	Artifact      *Artifact
}

// NewService validates spec and creates a service owned by tenantID.
// Tenant existence is checked by the caller.
func NewService(tenantID uuid.UUID, spec ServiceSpec, now time.Time) (*Service, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant_id is required")
	}
	name, err := normalizeName("service", spec.Name)
	if err != nil {
		return nil, err
	}
	mem := spec.MemoryLimitMB
	if mem == 0 {
		mem = DefaultMemoryLimitMB
	}
	if mem < 0 || mem > MaxMemoryLimitMB {
		return nil, shared.NewValidationError("memory_limit_mb must be between 1 and %d", MaxMemoryLimitMB)
	}

	return &Service{
		BaseEntity:    shared.NewBaseEntity(now),
		TenantID:      tenantID,
		Name:          name,
		Description:   strings.TrimSpace(spec.Description),
		Runtime:       strings.TrimSpace(spec.Runtime),
		MemoryLimitMB: mem,
	}, nil
}

// AttachArtifact records the uploaded package
func (s *Service) AttachArtifact(a Artifact, now time.Time) {
	a.UploadedAt = now.UTC()
	s.Artifact = &a
	s.Touch(now)
}

// ArtifactKey builds the object storage key for a service package
func ArtifactKey(tenantID, serviceID uuid.UUID, filename string) string {
	return "artifacts/" + tenantID.String() + "/" + serviceID.String() + "/" + filename
}
