// Package registry implements tenant and service registration, including
// the artifact upload that happens in the same request as service creation.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStorage stores service artifacts
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Options tunes artifact handling
type Options struct {
	MaxUploadSize     int64
	PresignExpiration time.Duration
}

// Service handles tenant and service registration
type Service struct {
	tenants  registry.TenantRepository
	services registry.ServiceRepository
	storage  ObjectStorage
	clock    shared.Clock
	opts     Options
	logger   *zap.Logger
}

// NewService creates a registry service. storage may be nil, in which case
// artifact uploads are rejected.
func NewService(
	tenants registry.TenantRepository,
	services registry.ServiceRepository,
	storage ObjectStorage,
	clock shared.Clock,
	opts Options,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	if opts.PresignExpiration <= 0 {
		opts.PresignExpiration = 15 * time.Minute
	}
	return &Service{
		tenants:  tenants,
		services: services,
		storage:  storage,
		clock:    clock,
		opts:     opts,
		logger:   logger,
	}
}

// CreateTenant registers a tenant
func (s *Service) CreateTenant(ctx context.Context, input CreateTenantInput) (*TenantDTO, error) {
	tenant, err := registry.NewTenant(input.Name, input.BillingEmail, input.Currency, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("name", tenant.Name),
	)
	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// ListTenants returns every tenant in creation order
func (s *Service) ListTenants(ctx context.Context) ([]TenantDTO, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TenantDTO, len(tenants))
	for i := range tenants {
		out[i] = ToTenantDTO(&tenants[i])
	}
	return out, nil
}

// GetTenant returns a tenant by id
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// RenameTenant changes a tenant's display name
func (s *Service) RenameTenant(ctx context.Context, id uuid.UUID, name string) (*TenantDTO, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenant.Rename(name, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// CreateService registers a service and, when given, streams its artifact to
// object storage first. A failed database write removes the uploaded object.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (*ServiceDTO, error) {
	svc, err := registry.NewService(input.TenantID, registry.ServiceSpec{
		Name:          input.Name,
		Description:   input.Description,
		Runtime:       input.Runtime,
		MemoryLimitMB: input.MemoryLimitMB,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	exists, err := s.tenants.Exists(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewNotFoundError("tenant", input.TenantID)
	}

	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("tenant_id", svc.TenantID.String()),
		zap.String("service_id", svc.ID.String()),
	)

	if input.Artifact != nil {
		artifact, err := s.upload(ctx, svc, input.Artifact)
		if err != nil {
			return nil, err
		}
		svc.AttachArtifact(*artifact, s.clock.Now())
	}

	if err := s.services.Save(ctx, svc); err != nil {
		if svc.Artifact != nil {
			// compensate with a fresh context, the request one may be gone
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if delErr := s.storage.Delete(cleanupCtx, svc.Artifact.Key); delErr != nil {
				log.Error("Failed to remove orphaned artifact",
					zap.String("key", svc.Artifact.Key),
					zap.Error(delErr),
				)
			}
		}
		return nil, err
	}

	log.Info("Service registered", zap.Bool("artifact", svc.Artifact != nil))
	dto := ToServiceDTO(svc)
	return &dto, nil
}

func (s *Service) upload(ctx context.Context, svc *registry.Service, up *ArtifactUpload) (*registry.Artifact, error) {
	if s.storage == nil {
		return nil, shared.NewConfigurationError("artifact storage is not configured")
	}
	name := sanitizeFilename(up.Filename)
	if name == "" {
		return nil, shared.NewValidationError("artifact file name is required")
	}
	if s.opts.MaxUploadSize > 0 && up.Size > s.opts.MaxUploadSize {
		return nil, shared.NewValidationError("artifact exceeds the %d byte limit", s.opts.MaxUploadSize)
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	hash := sha256.New()
	counter := &countingReader{r: io.TeeReader(up.Body, hash)}
	key := registry.ArtifactKey(svc.TenantID, svc.ID, name)

	if err := s.storage.Put(ctx, key, counter, up.Size, contentType); err != nil {
		return nil, shared.NewTransientError("upload artifact", err)
	}
	if up.Size > 0 && counter.n != up.Size {
		_ = s.storage.Delete(context.WithoutCancel(ctx), key)
		return nil, shared.NewValidationError("artifact size mismatch: declared %d bytes, received %d", up.Size, counter.n)
	}

	return &registry.Artifact{
		Key:         key,
		Name:        name,
		SizeBytes:   counter.n,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		ContentType: contentType,
	}, nil
}

// ListServices returns services in creation order
func (s *Service) ListServices(ctx context.Context, input ListServicesInput) ([]ServiceDTO, error) {
	filter := registry.ServiceFilter{
		TenantID: input.TenantID,
		Page:     shared.Page{Page: input.Page, PageSize: input.PageSize},
	}
	services, err := s.services.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceDTO, len(services))
	for i := range services {
		out[i] = ToServiceDTO(&services[i])
	}
	return out, nil
}

// GetService returns a service by id
func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*ServiceDTO, error) {
	svc, err := s.services.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToServiceDTO(svc)
	return &dto, nil
}

// ArtifactURL returns a time-limited download link for a service's package
func (s *Service) ArtifactURL(ctx context.Context, id uuid.UUID) (string, error) {
	svc, err := s.services.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if svc.Artifact == nil {
		return "", shared.NewNotFoundError("artifact of service", id)
	}
	if s.storage == nil {
		return "", shared.NewConfigurationError("artifact storage is not configured")
	}
	url, err := s.storage.DownloadURL(ctx, svc.Artifact.Key, s.opts.PresignExpiration)
	if err != nil {
		return "", shared.NewTransientError("sign artifact url", err)
	}
	return url, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-]
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ".")
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
