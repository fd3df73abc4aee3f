package pricing

import (
	"testing"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func validSpec() PlanSpec {
	return PlanSpec{
		Name:     "standard",
		Currency: "usd",
		Rates: Rates{
			PerMillionInvocations: decimal.RequireFromString("0.20"),
			PerGBSecond:           decimal.RequireFromString("0.0000166667"),
			PerColdStart:          decimal.RequireFromString("0.0001"),
			PerGBEgress:           decimal.RequireFromString("0.09"),
		},
		FreeTier: FreeTier{Invocations: 1_000_000, GBSeconds: decimal.NewFromInt(400_000), EgressGB: decimal.NewFromInt(100)},
	}
}

func TestNewPlan(t *testing.T) {
	plan, err := NewPlan(validSpec(), now)
	require.NoError(t, err)
	assert.True(t, plan.Active)
	assert.Equal(t, "USD", plan.Currency)

	t.Run("rejects negative rate", func(t *testing.T) {
		spec := validSpec()
		spec.Rates.PerColdStart = decimal.NewFromInt(-1)
		_, err := NewPlan(spec, now)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		spec := validSpec()
		spec.Name = " "
		_, err := NewPlan(spec, now)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects tenant scoped default", func(t *testing.T) {
		spec := validSpec()
		tid := uuid.New()
		spec.TenantID = &tid
		spec.IsDefault = true
		_, err := NewPlan(spec, now)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestPlan_UsableBy(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()

	platform, err := NewPlan(validSpec(), now)
	require.NoError(t, err)
	assert.True(t, platform.UsableBy(tenantA))

	spec := validSpec()
	spec.TenantID = &tenantA
	scoped, err := NewPlan(spec, now)
	require.NoError(t, err)
	assert.True(t, scoped.UsableBy(tenantA))
	assert.False(t, scoped.UsableBy(tenantB))

	scoped.Active = false
	assert.False(t, scoped.UsableBy(tenantA))
}
