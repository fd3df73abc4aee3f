package billing

import (
	"testing"
	"time"

	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	march1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april1 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

func testPlan(t *testing.T, freeInvocations int64) *pricing.Plan {
	t.Helper()
	plan, err := pricing.NewPlan(pricing.PlanSpec{
		Name:     "standard",
		Currency: "USD",
		Rates: pricing.Rates{
			PerMillionInvocations: decimal.RequireFromString("0.20"),
			PerGBSecond:           decimal.RequireFromString("0.0000166667"),
			PerColdStart:          decimal.RequireFromString("0.0001"),
			PerGBEgress:           decimal.RequireFromString("0.09"),
		},
		FreeTier: pricing.FreeTier{Invocations: freeInvocations},
	}, march1)
	require.NoError(t, err)
	return plan
}

func closedAgg(tenantID uuid.UUID, start time.Time, inv, memMBMs, cold, egress int64) usage.Aggregate {
	closed := start.Add(2 * time.Hour)
	return usage.Aggregate{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ServiceID:   uuid.New(),
		WindowStart: start,
		WindowEnd:   start.Add(time.Hour),
		Invocations: inv,
		MemMBMs:     memMBMs,
		ColdStarts:  cold,
		EgressBytes: egress,
		ClosedAt:    &closed,
	}
}

func TestNewPeriod(t *testing.T) {
	p, err := NewPeriod(march1, april1)
	require.NoError(t, err)
	assert.Equal(t, march1, p.Start)

	_, err = NewPeriod(april1, march1)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = NewPeriod(march1, march1)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = NewPeriod(time.Time{}, april1)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCalculate_EmptySet(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)

	st := Calculate(tenantID, testPlan(t, 0), period, nil)

	assert.True(t, st.TotalCost.IsZero())
	assert.NotNil(t, st.LineItems)
	assert.Empty(t, st.LineItems)
	assert.Equal(t, 0, st.AggregateCount)
}

func TestCalculate_PricesEveryDimension(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)
	aggs := []usage.Aggregate{
		closedAgg(tenantID, march1.Add(time.Hour), 1_500_000, 51_200_000_000, 600, 4<<30),
		closedAgg(tenantID, march1.Add(48*time.Hour), 500_000, 51_200_000_000, 400, 6<<30),
	}

	st := Calculate(tenantID, testPlan(t, 0), period, aggs)

	require.Len(t, st.LineItems, 4)
	want := []struct{ name, unit, qty, cost string }{
		{ItemInvocations, "invocation", "2000000", "0.40"},
		{ItemCompute, "GB-second", "100000", "1.67"},
		{ItemColdStarts, "cold_start", "1000", "0.10"},
		{ItemEgress, "GB", "10", "0.90"},
	}
	for i, w := range want {
		item := st.LineItems[i]
		assert.Equal(t, w.name, item.Name)
		assert.Equal(t, w.unit, item.Unit)
		assert.Equal(t, w.qty, item.Quantity.String(), w.name)
		assert.Equal(t, w.cost, item.Cost.StringFixed(2), w.name)
	}
	assert.Equal(t, "3.07", st.TotalCost.StringFixed(2))
	assert.Equal(t, 2, st.AggregateCount)
}

func TestCalculate_TotalEqualsSumOfItems(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)
	var aggs []usage.Aggregate
	for i := 0; i < 50; i++ {
		aggs = append(aggs, closedAgg(tenantID, march1.Add(time.Duration(i)*time.Hour),
			int64(12_345+i*7), int64(98_765_431+i*13), int64(i%3), int64(i*1_000_003)))
	}

	st := Calculate(tenantID, testPlan(t, 100_000), period, aggs)

	sum := decimal.Zero
	for _, item := range st.LineItems {
		sum = sum.Add(item.Cost)
		assert.True(t, item.Amount.Equal(item.Quantity.Sub(item.FreeTier)))
	}
	assert.True(t, st.TotalCost.Equal(sum))
}

func TestCalculate_FreeTier(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)
	aggs := []usage.Aggregate{closedAgg(tenantID, march1, 1_200_000, 0, 0, 0)}

	st := Calculate(tenantID, testPlan(t, 1_000_000), period, aggs)

	inv := st.LineItems[0]
	assert.Equal(t, "1000000", inv.FreeTier.String())
	assert.Equal(t, "200000", inv.Amount.String())
	assert.Equal(t, "0.04", inv.Cost.StringFixed(2))
	assert.Len(t, st.LineItems, 3, "no egress line without egress")
}

func TestCalculate_SelectsHalfOpenRangeAndClosedWindows(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)

	open := closedAgg(tenantID, march1.Add(time.Hour), 1_000_000, 0, 0, 0)
	open.ClosedAt = nil
	aggs := []usage.Aggregate{
		closedAgg(tenantID, march1, 1_000_000, 0, 0, 0),                   // start boundary: included
		closedAgg(tenantID, april1, 1_000_000, 0, 0, 0),                   // end boundary: excluded
		closedAgg(tenantID, march1.Add(-time.Hour), 1_000_000, 0, 0, 0),   // before range
		closedAgg(uuid.New(), march1.Add(3*time.Hour), 1_000_000, 0, 0, 0), // other tenant
		open,
	}

	st := Calculate(tenantID, testPlan(t, 0), period, aggs)

	assert.Equal(t, 1, st.AggregateCount)
	assert.Equal(t, "1000000", st.LineItems[0].Quantity.String())
}

func TestCalculate_Deterministic(t *testing.T) {
	tenantID := uuid.New()
	period, _ := NewPeriod(march1, april1)
	aggs := []usage.Aggregate{
		closedAgg(tenantID, march1, 3_333_333, 77_777_777, 5, 123_456_789),
		closedAgg(tenantID, march1.Add(time.Hour), 1, 1, 1, 1),
	}
	plan := testPlan(t, 10)

	first := Calculate(tenantID, plan, period, aggs)
	second := Calculate(tenantID, plan, period, aggs)
	assert.Equal(t, first, second)
}
