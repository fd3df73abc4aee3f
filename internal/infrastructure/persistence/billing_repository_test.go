package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatement(tenantID uuid.UUID, total string) billing.Statement {
	period, _ := billing.NewPeriod(baseTime, baseTime.Add(24*time.Hour))
	return billing.Statement{
		TenantID:       tenantID,
		Period:         period,
		Currency:       "USD",
		PricingPlanID:  uuid.New(),
		AggregateCount: 2,
		TotalCost:      decimal.RequireFromString(total),
		LineItems: []billing.LineItem{{
			Name:     billing.ItemInvocations,
			Quantity: decimal.NewFromInt(3_000_000),
			FreeTier: decimal.NewFromInt(1_000_000),
			Amount:   decimal.NewFromInt(2_000_000),
			Unit:     "invocation",
			Rate:     decimal.RequireFromString("0.0000002"),
			Cost:     decimal.RequireFromString(total),
		}},
	}
}

func TestGormBillRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	bill := billing.NewBill(testStatement(tenantID, "0.40"), baseTime)
	created, err := repo.Create(ctx, bill)
	require.NoError(t, err)
	require.True(t, created)

	t.Run("second bill for the same period is not created", func(t *testing.T) {
		dup := billing.NewBill(testStatement(tenantID, "9.99"), baseTime.Add(time.Minute))
		created, err := repo.Create(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repo.FindByKey(ctx, tenantID, bill.Period)
		require.NoError(t, err)
		assert.Equal(t, bill.ID, got.ID)
		assert.True(t, got.TotalCost.Equal(decimal.RequireFromString("0.40")))
	})

	t.Run("round trips the line item snapshot", func(t *testing.T) {
		got, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		require.Len(t, got.LineItems, 1)
		item := got.LineItems[0]
		assert.Equal(t, billing.ItemInvocations, item.Name)
		assert.True(t, item.Rate.Equal(decimal.RequireFromString("0.0000002")))
		assert.True(t, item.Cost.Equal(decimal.RequireFromString("0.40")))
		assert.Equal(t, 1, got.Revision)
		assert.True(t, got.Period.Start.Equal(baseTime))
	})

	t.Run("update is guarded by revision", func(t *testing.T) {
		got, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		require.NoError(t, got.Regenerate(testStatement(tenantID, "1.25"), baseTime.Add(time.Hour)))
		require.NoError(t, repo.Update(ctx, got, 1))

		stale, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stale.Revision)
		assert.True(t, stale.TotalCost.Equal(decimal.RequireFromString("1.25")))

		err = repo.Update(ctx, got, 1)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("lists newest period first", func(t *testing.T) {
		st := testStatement(tenantID, "0.10")
		st.Period = billing.Period{Start: baseTime.Add(24 * time.Hour), End: baseTime.Add(48 * time.Hour)}
		next := billing.NewBill(st, baseTime)
		_, err := repo.Create(ctx, next)
		require.NoError(t, err)

		bills, err := repo.ListByTenant(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, bills, 2)
		assert.Equal(t, next.ID, bills[0].ID)
		assert.Equal(t, bill.ID, bills[1].ID)
	})

	t.Run("unknown bill is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByKey(ctx, uuid.New(), bill.Period)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormPaymentRepository(t *testing.T) {
	db := newTestDB(t)
	bills := NewGormBillRepository(db)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()

	bill := billing.NewBill(testStatement(uuid.New(), "3.07"), baseTime)
	_, err := bills.Create(ctx, bill)
	require.NoError(t, err)

	payment := billing.NewPayment(bill, baseTime)
	created, err := repo.Create(ctx, payment)
	require.NoError(t, err)
	require.True(t, created)

	t.Run("one payment per bill", func(t *testing.T) {
		created, err := repo.Create(ctx, billing.NewPayment(bill, baseTime))
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("lifecycle is persisted", func(t *testing.T) {
		_, err := payment.MarkPaid("txn-42", baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, payment, billing.PaymentStatusPending))

		got, err := repo.FindByBillID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPaid, got.Status)
		assert.Equal(t, "txn-42", got.ExternalRef)
		require.NotNil(t, got.PaidAt)
		assert.True(t, got.PaidAt.Equal(baseTime.Add(time.Hour)))
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("3.07")))

		require.NoError(t, got.Reconcile(baseTime.Add(2*time.Hour)))
		require.NoError(t, repo.Update(ctx, got, billing.PaymentStatusPaid))

		again, err := repo.FindByID(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusReconciled, again.Status)
		require.NotNil(t, again.ReconciledAt)
	})

	t.Run("unknown payment is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByBillID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		ghost := billing.NewPayment(bill, baseTime)
		assert.ErrorIs(t, repo.Update(ctx, ghost, billing.PaymentStatusPending), shared.ErrNotFound)
	})

	t.Run("stale pending copy cannot overwrite a paid payment", func(t *testing.T) {
		other := billing.NewBill(testStatement(uuid.New(), "9.99"), baseTime)
		_, err := bills.Create(ctx, other)
		require.NoError(t, err)
		_, err = repo.Create(ctx, billing.NewPayment(other, baseTime))
		require.NoError(t, err)

		stale, err := repo.FindByBillID(ctx, other.ID)
		require.NoError(t, err)
		fresh, err := repo.FindByBillID(ctx, other.ID)
		require.NoError(t, err)

		_, err = fresh.MarkPaid("txn-7", baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, fresh, billing.PaymentStatusPending))

		other.TotalCost = decimal.RequireFromString("12.00")
		require.NoError(t, stale.Reprice(other, baseTime.Add(2*time.Hour)))
		err = repo.Update(ctx, stale, billing.PaymentStatusPending)
		assert.ErrorIs(t, err, shared.ErrConflict)

		got, err := repo.FindByBillID(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPaid, got.Status)
		assert.Equal(t, "txn-7", got.ExternalRef)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("9.99")))
	})
}
