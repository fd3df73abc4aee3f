// Package billing calculates statements from closed usage windows, persists
// them as idempotent bills and drives the payment lifecycle.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanResolver picks the pricing plan of a tenant
type PlanResolver interface {
	ResolvePlan(ctx context.Context, tenantID uuid.UUID) (*pricing.Plan, error)
}

// AggregateSource lists the closed usage windows of a tenant
type AggregateSource interface {
	ListClosedForTenant(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]usage.Aggregate, error)
}

// Options tunes bill generation locking
type Options struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

// Service calculates and generates bills
type Service struct {
	plans      PlanResolver
	aggregates AggregateSource
	bills      billing.BillRepository
	payments   billing.PaymentRepository
	locker     shared.Locker
	clock      shared.Clock
	opts       Options
	logger     *zap.Logger
	metrics    *telemetry.BillingMetrics
}

// NewService creates a billing service
func NewService(
	plans PlanResolver,
	aggregates AggregateSource,
	bills billing.BillRepository,
	payments billing.PaymentRepository,
	locker shared.Locker,
	clock shared.Clock,
	opts Options,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	return &Service{
		plans:      plans,
		aggregates: aggregates,
		bills:      bills,
		payments:   payments,
		locker:     locker,
		clock:      clock,
		opts:       opts,
		logger:     logger,
	}
}

// SetMetrics sets the metrics recorder (optional)
func (s *Service) SetMetrics(m *telemetry.BillingMetrics) {
	s.metrics = m
}

// CalculateBill prices the tenant's closed usage in [start, end) without
// persisting anything
func (s *Service) CalculateBill(ctx context.Context, input PeriodInput) (*StatementDTO, error) {
	st, err := s.calculate(ctx, input)
	if err != nil {
		return nil, err
	}
	dto := ToStatementDTO(st)
	return &dto, nil
}

// calculate resolves the plan before reading usage so a missing plan is a
// ConfigurationError even for a period without usage
func (s *Service) calculate(ctx context.Context, input PeriodInput) (billing.Statement, error) {
	period, err := billing.NewPeriod(input.Start, input.End)
	if err != nil {
		return billing.Statement{}, err
	}
	if input.TenantID == uuid.Nil {
		return billing.Statement{}, shared.NewValidationError("tenant_id is required")
	}

	plan, err := s.plans.ResolvePlan(ctx, input.TenantID)
	if err != nil {
		return billing.Statement{}, err
	}
	aggs, err := s.aggregates.ListClosedForTenant(ctx, input.TenantID, period.Start, period.End)
	if err != nil {
		return billing.Statement{}, err
	}

	started := time.Now()
	st := billing.Calculate(input.TenantID, plan, period, aggs)
	s.metrics.RecordCalculation(ctx, time.Since(started))
	return st, nil
}

// GenerateBill persists the statement for (tenant, start, end). An existing
// bill is returned unchanged with created=false unless Regenerate is set, in
// which case its snapshot is recalculated and its revision bumped.
func (s *Service) GenerateBill(ctx context.Context, input GenerateInput) (*BillDTO, bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "generate_bill")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrPeriodStart, input.Start.UTC().Format(time.RFC3339),
		telemetry.SpanAttrPeriodEnd, input.End.UTC().Format(time.RFC3339),
		"regenerate", input.Regenerate,
	)

	bill, created, err := s.generateBill(ctx, input)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillID, bill.ID.String(),
		telemetry.SpanAttrAmount, string(bill.TotalCost),
		"created", created,
	)
	telemetry.SetOK(span)
	return bill, created, nil
}

func (s *Service) generateBill(ctx context.Context, input GenerateInput) (*BillDTO, bool, error) {
	period, err := billing.NewPeriod(input.Start, input.End)
	if err != nil {
		return nil, false, err
	}
	if input.TenantID == uuid.Nil {
		return nil, false, shared.NewValidationError("tenant_id is required")
	}
	input.Start, input.End = period.Start, period.End
	key := billing.BillKey(input.TenantID, period)

	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, false, err
	}
	defer release()

	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("bill_key", key),
	)

	existing, err := s.bills.FindByKey(ctx, input.TenantID, period)
	switch {
	case err == nil && !input.Regenerate:
		s.metrics.RecordBill(ctx, existing.TenantID, "existing", existing.Currency, existing.TotalCost)
		dto := ToBillDTO(existing)
		return &dto, false, nil
	case err == nil:
		bill, err := s.regenerate(ctx, existing, input.PeriodInput)
		if err != nil {
			return nil, false, err
		}
		log.Info("Bill regenerated", zap.String("bill_id", bill.ID.String()), zap.Int("revision", bill.Revision))
		dto := ToBillDTO(bill)
		return &dto, false, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, false, err
	}

	st, err := s.calculate(ctx, input.PeriodInput)
	if err != nil {
		return nil, false, err
	}
	bill := billing.NewBill(st, s.clock.Now())
	created, err := s.bills.Create(ctx, bill)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// another writer without the lock got there first
		stored, err := s.bills.FindByKey(ctx, input.TenantID, period)
		if err != nil {
			return nil, false, err
		}
		s.metrics.RecordBill(ctx, stored.TenantID, "existing", stored.Currency, stored.TotalCost)
		dto := ToBillDTO(stored)
		return &dto, false, nil
	}

	s.metrics.RecordBill(ctx, bill.TenantID, "created", bill.Currency, bill.TotalCost)
	log.Info("Bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("total_cost", bill.TotalCost.StringFixed(2)),
		zap.Int("aggregates", bill.AggregateCount),
	)
	dto := ToBillDTO(bill)
	return &dto, true, nil
}

// lock takes the per-bill lock that serializes generation, regeneration and
// payment transitions of one bill
func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key, s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, shared.NewTransientError("acquire bill lock", err)
	}
	return release, nil
}

// regenerate runs under the bill lock. The payment is repriced before the
// bill is rewritten, so a payment settled in the meantime fails the status
// check and leaves the bill untouched.
func (s *Service) regenerate(ctx context.Context, bill *billing.Bill, input PeriodInput) (*billing.Bill, error) {
	payment, err := s.payments.FindByBillID(ctx, bill.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if payment != nil && payment.Settled() {
		return nil, shared.NewConflictError("bill %s has a %s payment and cannot be regenerated", bill.ID, payment.Status)
	}

	st, err := s.calculate(ctx, input)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	prev := bill.Revision
	if err := bill.Regenerate(st, now); err != nil {
		return nil, err
	}

	if payment != nil {
		from := payment.Status
		if err := payment.Reprice(bill, now); err != nil {
			return nil, err
		}
		if err := s.payments.Update(ctx, payment, from); err != nil {
			return nil, err
		}
	}
	if err := s.bills.Update(ctx, bill, prev); err != nil {
		return nil, err
	}
	s.metrics.RecordBill(ctx, bill.TenantID, "regenerated", bill.Currency, bill.TotalCost)
	return bill, nil
}

// GetBill returns a bill by id
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*BillDTO, error) {
	bill, err := s.bills.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToBillDTO(bill)
	return &dto, nil
}

// ListBills returns the tenant's bills, newest period first
func (s *Service) ListBills(ctx context.Context, tenantID uuid.UUID) ([]BillDTO, error) {
	bills, err := s.bills.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]BillDTO, len(bills))
	for i := range bills {
		out[i] = ToBillDTO(&bills[i])
	}
	return out, nil
}

// CreatePayment opens the pending payment of a bill. A bill has at most one
// payment; asking again returns it with created=false.
func (s *Service) CreatePayment(ctx context.Context, billID uuid.UUID) (*PaymentDTO, bool, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.payments.FindByBillID(ctx, billID)
	if err == nil {
		dto := ToPaymentDTO(existing)
		return &dto, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	payment := billing.NewPayment(bill, s.clock.Now())
	created, err := s.payments.Create(ctx, payment)
	if err != nil {
		return nil, false, err
	}
	if !created {
		if payment, err = s.payments.FindByBillID(ctx, billID); err != nil {
			return nil, false, err
		}
	} else {
		s.metrics.RecordPayment(ctx, payment.TenantID, string(payment.Status))
		logger.WithLogger(ctx, s.logger).Info("Payment opened",
			zap.String("payment_id", payment.ID.String()),
			zap.String("bill_id", billID.String()),
		)
	}
	dto := ToPaymentDTO(payment)
	return &dto, created, nil
}

// lockPayment takes the lock of the payment's bill and reads the payment
// again under it, so the transition starts from the current stored state
func (s *Service) lockPayment(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, func(), error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	bill, err := s.bills.FindByID(ctx, payment.BillID)
	if err != nil {
		return nil, nil, err
	}
	release, err := s.lock(ctx, bill.Key())
	if err != nil {
		return nil, nil, err
	}
	if payment, err = s.payments.FindByID(ctx, paymentID); err != nil {
		release()
		return nil, nil, err
	}
	return payment, release, nil
}

// MarkPaid moves a pending payment to paid
func (s *Service) MarkPaid(ctx context.Context, paymentID uuid.UUID, externalRef string) (*PaymentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "mark_paid")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	payment, release, err := s.lockPayment(ctx, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, payment.TenantID.String(),
		telemetry.SpanAttrBillID, payment.BillID.String(),
	)

	from := payment.Status
	changed, err := payment.MarkPaid(externalRef, s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if changed {
		if err := s.payments.Update(ctx, payment, from); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.metrics.RecordPayment(ctx, payment.TenantID, string(payment.Status))
		logger.WithLogger(ctx, s.logger).Info("Payment marked paid",
			zap.String("payment_id", payment.ID.String()),
			zap.String("external_ref", payment.ExternalRef),
		)
	}
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

// Reconcile moves a paid payment to reconciled
func (s *Service) Reconcile(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	payment, release, err := s.lockPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	from := payment.Status
	if err := payment.Reconcile(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, payment, from); err != nil {
		return nil, err
	}
	s.metrics.RecordPayment(ctx, payment.TenantID, string(payment.Status))
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

// GetPayment returns a payment by id
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentDTO, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

// GetPaymentForBill returns the payment of a bill
func (s *Service) GetPaymentForBill(ctx context.Context, billID uuid.UUID) (*PaymentDTO, error) {
	payment, err := s.payments.FindByBillID(ctx, billID)
	if err != nil {
		return nil, err
	}
	dto := ToPaymentDTO(payment)
	return &dto, nil
}
