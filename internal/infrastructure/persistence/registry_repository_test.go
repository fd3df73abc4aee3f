package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/faasbill/backend/internal/domain/registry"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustTenant(t *testing.T, repo *GormTenantRepository, name string, at time.Time) *registry.Tenant {
	t.Helper()
	tenant, err := registry.NewTenant(name, "", "", at)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tenant))
	return tenant
}

func TestGormTenantRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	b := mustTenant(t, repo, "beta", baseTime.Add(time.Minute))
	a := mustTenant(t, repo, "alpha", baseTime)

	t.Run("finds by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Name)
		assert.Equal(t, "USD", got.Currency)
		assert.True(t, got.CreatedAt.Equal(baseTime))
		assert.Nil(t, got.PricingPlanID)
	})

	t.Run("unknown tenant is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		ok, err := repo.Exists(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lists in creation order", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, a.ID, list[0].ID)
		assert.Equal(t, b.ID, list[1].ID)
	})

	t.Run("update persists plan assignment", func(t *testing.T) {
		planID := uuid.New()
		b.AssignPricingPlan(planID, baseTime.Add(time.Hour))
		require.NoError(t, b.Rename("beta two", baseTime.Add(time.Hour)))
		require.NoError(t, repo.Update(ctx, b))

		got, err := repo.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "beta two", got.Name)
		require.NotNil(t, got.PricingPlanID)
		assert.Equal(t, planID, *got.PricingPlanID)
	})

	t.Run("update of unknown tenant is not found", func(t *testing.T) {
		ghost, err := registry.NewTenant("ghost", "", "", baseTime)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormServiceRepository(t *testing.T) {
	db := newTestDB(t)
	tenants := NewGormTenantRepository(db)
	repo := NewGormServiceRepository(db)
	ctx := context.Background()

	owner := mustTenant(t, tenants, "owner", baseTime)
	other := mustTenant(t, tenants, "other", baseTime)

	var ids []uuid.UUID
	for i, name := range []string{"resize", "thumbnail", "notify"} {
		svc, err := registry.NewService(owner.ID, registry.ServiceSpec{Name: name, Runtime: "go1.x"}, baseTime.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		if i == 0 {
			svc.AttachArtifact(registry.Artifact{
				Key:         registry.ArtifactKey(owner.ID, svc.ID, "resize.zip"),
				Name:        "resize.zip",
				SizeBytes:   2048,
				SHA256:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
				ContentType: "application/zip",
				UploadedAt:  baseTime,
			}, baseTime)
		}
		require.NoError(t, repo.Save(ctx, svc))
		ids = append(ids, svc.ID)
	}
	foreign, err := registry.NewService(other.ID, registry.ServiceSpec{Name: "foreign"}, baseTime)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, foreign))

	t.Run("round trips artifact metadata", func(t *testing.T) {
		got, err := repo.FindByID(ctx, ids[0])
		require.NoError(t, err)
		require.NotNil(t, got.Artifact)
		assert.Equal(t, "resize.zip", got.Artifact.Name)
		assert.Equal(t, int64(2048), got.Artifact.SizeBytes)
		assert.True(t, got.Artifact.UploadedAt.Equal(baseTime))
		assert.Equal(t, registry.DefaultMemoryLimitMB, got.MemoryLimitMB)

		plain, err := repo.FindByID(ctx, ids[1])
		require.NoError(t, err)
		assert.Nil(t, plain.Artifact)
	})

	t.Run("filters by tenant in stable order", func(t *testing.T) {
		list, err := repo.List(ctx, registry.ServiceFilter{TenantID: &owner.ID})
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i := range list {
			assert.Equal(t, ids[i], list[i].ID)
		}
	})

	t.Run("pages", func(t *testing.T) {
		list, err := repo.List(ctx, registry.ServiceFilter{TenantID: &owner.ID, Page: shared.Page{Page: 2, PageSize: 2}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, ids[2], list[0].ID)
	})

	t.Run("lists all tenants", func(t *testing.T) {
		list, err := repo.List(ctx, registry.ServiceFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})

	t.Run("unknown service is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
