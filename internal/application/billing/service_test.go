package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPlanResolver struct {
	mock.Mock
}

func (m *MockPlanResolver) ResolvePlan(ctx context.Context, tenantID uuid.UUID) (*pricing.Plan, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Plan), args.Error(1)
}

type MockAggregateSource struct {
	mock.Mock
}

func (m *MockAggregateSource) ListClosedForTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]usage.Aggregate, error) {
	args := m.Called(ctx, tenantID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usage.Aggregate), args.Error(1)
}

type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) Create(ctx context.Context, bill *billing.Bill) (bool, error) {
	args := m.Called(ctx, bill)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, p billing.Period) (*billing.Bill, error) {
	args := m.Called(ctx, tenantID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Bill), args.Error(1)
}

func (m *MockBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Bill), args.Error(1)
}

func (m *MockBillRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]billing.Bill, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Bill), args.Error(1)
}

func (m *MockBillRepository) Update(ctx context.Context, bill *billing.Bill, prevRevision int) error {
	return m.Called(ctx, bill, prevRevision).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *billing.Payment) (bool, error) {
	args := m.Called(ctx, payment)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByBillID(ctx context.Context, billID uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, billID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *billing.Payment, from billing.PaymentStatus) error {
	return m.Called(ctx, payment, from).Error(0)
}

var (
	march1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april1 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	now    = april1.Add(2 * time.Hour)
)

type fixture struct {
	plans      *MockPlanResolver
	aggregates *MockAggregateSource
	bills      *MockBillRepository
	payments   *MockPaymentRepository
	locker     *cache.InMemoryLocker
	svc        *Service
	tenantID   uuid.UUID
	plan       *pricing.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		plans:      new(MockPlanResolver),
		aggregates: new(MockAggregateSource),
		bills:      new(MockBillRepository),
		payments:   new(MockPaymentRepository),
		locker:     cache.NewInMemoryLocker(),
		tenantID:   uuid.New(),
	}
	f.svc = NewService(f.plans, f.aggregates, f.bills, f.payments, f.locker,
		shared.ClockFunc(func() time.Time { return now }),
		Options{LockWait: 50 * time.Millisecond}, zap.NewNop())

	plan, err := pricing.NewPlan(pricing.PlanSpec{
		Name:      "standard",
		IsDefault: true,
		Rates: pricing.Rates{
			PerMillionInvocations: decimal.RequireFromString("0.20"),
			PerGBSecond:           decimal.RequireFromString("0.0000166667"),
			PerColdStart:          decimal.RequireFromString("0.001"),
		},
	}, march1)
	require.NoError(t, err)
	f.plan = plan
	return f
}

func (f *fixture) closedAggregate(start time.Time, invocations int64) usage.Aggregate {
	closed := start.Add(2 * time.Hour)
	return usage.Aggregate{
		ID:          uuid.New(),
		TenantID:    f.tenantID,
		ServiceID:   uuid.New(),
		WindowStart: start,
		WindowEnd:   start.Add(time.Hour),
		Invocations: invocations,
		DurationMs:  invocations * 100,
		MemMBMs:     invocations * 100 * 1024,
		ClosedAt:    &closed,
	}
}

func (f *fixture) period() PeriodInput {
	return PeriodInput{TenantID: f.tenantID, Start: march1, End: april1}
}

func TestService_CalculateBill_Empty(t *testing.T) {
	f := newFixture(t)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).Return([]usage.Aggregate{}, nil)

	st, err := f.svc.CalculateBill(context.Background(), f.period())
	require.NoError(t, err)
	assert.Equal(t, "0.00", st.TotalCost.String())
	assert.NotNil(t, st.LineItems)
	assert.Empty(t, st.LineItems)
	assert.Equal(t, "USD", st.Currency)
}

func TestService_CalculateBill_Prices(t *testing.T) {
	f := newFixture(t)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).Return([]usage.Aggregate{
		f.closedAggregate(march1, 1_000_000),
		f.closedAggregate(march1.Add(time.Hour), 1_000_000),
	}, nil)

	st, err := f.svc.CalculateBill(context.Background(), f.period())
	require.NoError(t, err)
	require.Len(t, st.LineItems, 3)
	assert.Equal(t, billing.ItemInvocations, st.LineItems[0].Name)
	assert.Equal(t, "0.40", st.LineItems[0].Cost.String())
	assert.Equal(t, billing.ItemCompute, st.LineItems[1].Name)
	assert.Equal(t, 2, st.AggregateCount)

	total := decimal.Zero
	for _, it := range st.LineItems {
		total = total.Add(decimal.RequireFromString(it.Cost.String()))
	}
	assert.Equal(t, total.StringFixed(2), st.TotalCost.String())
}

func TestService_CalculateBill_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CalculateBill(context.Background(), PeriodInput{TenantID: f.tenantID, Start: april1, End: march1})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.CalculateBill(context.Background(), PeriodInput{Start: march1, End: april1})
	assert.ErrorIs(t, err, shared.ErrValidation)
	f.plans.AssertNotCalled(t, "ResolvePlan", mock.Anything, mock.Anything)
}

func TestService_CalculateBill_MissingPlanIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).
		Return(nil, shared.NewConfigurationError("no pricing plan configured"))

	_, err := f.svc.CalculateBill(context.Background(), f.period())
	assert.ErrorIs(t, err, shared.ErrConfiguration)
	f.aggregates.AssertNotCalled(t, "ListClosedForTenant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GenerateBill_CreatesOnce(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).
		Return([]usage.Aggregate{f.closedAggregate(march1, 10)}, nil)
	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(nil, shared.ErrNotFound).Once()

	var stored *billing.Bill
	f.bills.On("Create", mock.Anything, mock.AnythingOfType("*billing.Bill")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*billing.Bill) }).
		Return(true, nil).Once()

	first, created, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period()})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Revision)
	assert.True(t, first.GeneratedAt.Equal(now))

	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(stored, nil).Once()
	second, created, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period()})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalCost, second.TotalCost)
	f.bills.AssertNumberOfCalls(t, "Create", 1)
}

func TestService_GenerateBill_LostInsertRaceReturnsStored(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	winner := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, now)

	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).Return([]usage.Aggregate{}, nil)
	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(nil, shared.ErrNotFound).Once()
	f.bills.On("Create", mock.Anything, mock.Anything).Return(false, nil).Once()
	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(winner, nil).Once()

	dto, created, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period()})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, dto.ID)
}

func TestService_GenerateBill_Regenerate(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	existing := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD", LineItems: []billing.LineItem{}}, march1)
	pending := billing.NewPayment(existing, march1)

	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(existing, nil)
	f.payments.On("FindByBillID", mock.Anything, existing.ID).Return(pending, nil)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).
		Return([]usage.Aggregate{f.closedAggregate(march1, 2_000_000)}, nil)
	f.bills.On("Update", mock.Anything, existing, 1).Return(nil).Once()
	f.payments.On("Update", mock.Anything, pending, billing.PaymentStatusPending).Return(nil).Once()

	dto, created, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period(), Regenerate: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, dto.ID)
	assert.Equal(t, 2, dto.Revision)
	assert.NotEmpty(t, dto.LineItems)
	assert.True(t, pending.Amount.Equal(existing.TotalCost), "pending payment follows the new total")
}

func TestService_GenerateBill_RegenerateRefusedWhenPaid(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	existing := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, march1)
	paid := billing.NewPayment(existing, march1)
	_, err := paid.MarkPaid("txn", march1)
	require.NoError(t, err)

	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(existing, nil)
	f.payments.On("FindByBillID", mock.Anything, existing.ID).Return(paid, nil)

	_, _, err = f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period(), Regenerate: true})
	assert.ErrorIs(t, err, shared.ErrConflict)
	f.bills.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GenerateBill_LockTimeoutIsTransient(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)

	release, err := f.locker.Acquire(context.Background(), billing.BillKey(f.tenantID, period), time.Minute, time.Second)
	require.NoError(t, err)
	defer release()

	_, _, err = f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period()})
	assert.True(t, shared.IsRetryable(err))
	f.bills.AssertNotCalled(t, "FindByKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GenerateBill_StorageErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).
		Return(nil, shared.NewTransientError("find bill", errors.New("timeout")))

	_, _, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period()})
	assert.True(t, shared.IsRetryable(err))
}

func TestService_CreatePayment(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	bill := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD", TotalCost: decimal.RequireFromString("12.5")}, now)

	f.bills.On("FindByID", mock.Anything, bill.ID).Return(bill, nil)
	f.payments.On("FindByBillID", mock.Anything, bill.ID).Return(nil, shared.ErrNotFound).Once()
	f.payments.On("Create", mock.Anything, mock.AnythingOfType("*billing.Payment")).Return(true, nil).Once()

	dto, created, err := f.svc.CreatePayment(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "12.50", dto.Amount.String())

	existing := billing.NewPayment(bill, now)
	f.payments.On("FindByBillID", mock.Anything, bill.ID).Return(existing, nil).Once()
	again, created, err := f.svc.CreatePayment(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, again.ID)
}

func TestService_CreatePayment_UnknownBill(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.bills.On("FindByID", mock.Anything, id).Return(nil, shared.NewNotFoundError("bill", id))

	_, _, err := f.svc.CreatePayment(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_PaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	bill := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, now)
	payment := billing.NewPayment(bill, now)
	f.bills.On("FindByID", mock.Anything, bill.ID).Return(bill, nil)
	f.payments.On("FindByID", mock.Anything, payment.ID).Return(payment, nil)
	f.payments.On("Update", mock.Anything, payment, billing.PaymentStatusPending).Return(nil).Once()
	f.payments.On("Update", mock.Anything, payment, billing.PaymentStatusPaid).Return(nil).Once()

	_, err := f.svc.Reconcile(context.Background(), payment.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	paid, err := f.svc.MarkPaid(context.Background(), payment.ID, "txn-9")
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)
	assert.Equal(t, "txn-9", paid.ExternalRef)

	_, err = f.svc.MarkPaid(context.Background(), payment.ID, "txn-9")
	require.NoError(t, err)
	f.payments.AssertNumberOfCalls(t, "Update", 1)

	reconciled, err := f.svc.Reconcile(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "reconciled", reconciled.Status)
	require.NotNil(t, reconciled.ReconciledAt)

	_, err = f.svc.MarkPaid(context.Background(), payment.ID, "")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	f.payments.AssertNumberOfCalls(t, "Update", 2)
}

func TestService_GenerateBill_RegenerateLosesToSettledPayment(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	existing := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD", LineItems: []billing.LineItem{}}, march1)
	stale := billing.NewPayment(existing, march1)

	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(existing, nil)
	f.payments.On("FindByBillID", mock.Anything, existing.ID).Return(stale, nil)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).
		Return([]usage.Aggregate{f.closedAggregate(march1, 2_000_000)}, nil)
	f.payments.On("Update", mock.Anything, stale, billing.PaymentStatusPending).
		Return(shared.NewConflictError("payment %s is paid, expected pending", stale.ID)).Once()

	_, _, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period(), Regenerate: true})
	assert.ErrorIs(t, err, shared.ErrConflict)
	f.bills.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_MarkPaid_WaitsForRegenerate(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	existing := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD", LineItems: []billing.LineItem{}}, march1)
	payment := billing.NewPayment(existing, march1)

	calculating := make(chan struct{})
	resume := make(chan struct{})
	f.bills.On("FindByKey", mock.Anything, f.tenantID, period).Return(existing, nil)
	f.bills.On("FindByID", mock.Anything, existing.ID).Return(existing, nil)
	f.payments.On("FindByBillID", mock.Anything, existing.ID).Return(payment, nil)
	f.payments.On("FindByID", mock.Anything, payment.ID).Return(payment, nil)
	f.plans.On("ResolvePlan", mock.Anything, f.tenantID).Return(f.plan, nil)
	f.aggregates.On("ListClosedForTenant", mock.Anything, f.tenantID, march1, april1).
		Run(func(mock.Arguments) {
			close(calculating)
			<-resume
		}).
		Return([]usage.Aggregate{f.closedAggregate(march1, 2_000_000)}, nil)
	f.payments.On("Update", mock.Anything, payment, billing.PaymentStatusPending).Return(nil)
	f.bills.On("Update", mock.Anything, existing, 1).Return(nil).Once()

	done := make(chan error, 1)
	go func() {
		_, _, err := f.svc.GenerateBill(context.Background(), GenerateInput{PeriodInput: f.period(), Regenerate: true})
		done <- err
	}()
	<-calculating

	_, err := f.svc.MarkPaid(context.Background(), payment.ID, "txn-1")
	assert.True(t, shared.IsRetryable(err), "payment cannot settle while the bill is being rewritten")
	assert.Equal(t, billing.PaymentStatusPending, payment.Status)

	close(resume)
	require.NoError(t, <-done)
	assert.True(t, payment.Amount.Equal(existing.TotalCost))

	paid, err := f.svc.MarkPaid(context.Background(), payment.ID, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)
	assert.Equal(t, existing.TotalCost.StringFixed(2), paid.Amount.String())
	f.payments.AssertNumberOfCalls(t, "Update", 2)
}

func TestService_MarkPaid_RereadsUnderLock(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	bill := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, now)
	stale := billing.NewPayment(bill, now)
	current := *stale
	_, err := current.MarkPaid("txn-a", now)
	require.NoError(t, err)

	f.bills.On("FindByID", mock.Anything, bill.ID).Return(bill, nil)
	f.payments.On("FindByID", mock.Anything, stale.ID).Return(stale, nil).Once()
	f.payments.On("FindByID", mock.Anything, stale.ID).Return(&current, nil).Once()

	_, err = f.svc.MarkPaid(context.Background(), stale.ID, "txn-b")
	assert.ErrorIs(t, err, shared.ErrConflict)
	f.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Reconcile_SeesPaymentSettledByMarkPaid(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	bill := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, now)
	stale := billing.NewPayment(bill, now)
	current := *stale
	_, err := current.MarkPaid("txn-a", now)
	require.NoError(t, err)

	f.bills.On("FindByID", mock.Anything, bill.ID).Return(bill, nil)
	f.payments.On("FindByID", mock.Anything, stale.ID).Return(stale, nil).Once()
	f.payments.On("FindByID", mock.Anything, stale.ID).Return(&current, nil).Once()
	f.payments.On("Update", mock.Anything, &current, billing.PaymentStatusPaid).Return(nil).Once()

	dto, err := f.svc.Reconcile(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, "reconciled", dto.Status)
	assert.Equal(t, "txn-a", dto.ExternalRef)
}

func TestService_MarkPaid_LockTimeoutIsTransient(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	bill := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "USD"}, now)
	payment := billing.NewPayment(bill, now)
	f.bills.On("FindByID", mock.Anything, bill.ID).Return(bill, nil)
	f.payments.On("FindByID", mock.Anything, payment.ID).Return(payment, nil)

	release, err := f.locker.Acquire(context.Background(), bill.Key(), time.Minute, time.Second)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.MarkPaid(context.Background(), payment.ID, "txn")
	assert.True(t, shared.IsRetryable(err))
	_, err = f.svc.Reconcile(context.Background(), payment.ID)
	assert.True(t, shared.IsRetryable(err))
	f.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, billing.PaymentStatusPending, payment.Status)
}

func TestService_ListBills(t *testing.T) {
	f := newFixture(t)
	period, _ := billing.NewPeriod(march1, april1)
	b := billing.NewBill(billing.Statement{TenantID: f.tenantID, Period: period, Currency: "EUR"}, now)
	f.bills.On("ListByTenant", mock.Anything, f.tenantID).Return([]billing.Bill{*b}, nil)

	out, err := f.svc.ListBills(context.Background(), f.tenantID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "EUR", out[0].Currency)
	assert.Equal(t, "0.00", out[0].TotalCost.String())
}
