package billing

import (
	"context"
	"strings"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusReconciled PaymentStatus = "reconciled"
)

// Payment settles one bill: pending -> paid -> reconciled
type Payment struct {
	shared.BaseEntity
	BillID       uuid.UUID
	TenantID     uuid.UUID
	Amount       decimal.Decimal
	Currency     string
	Status       PaymentStatus
	ExternalRef  string
	PaidAt       *time.Time
	ReconciledAt *time.Time
}

// NewPayment opens a pending payment for the bill total
func NewPayment(bill *Bill, now time.Time) *Payment {
	return &Payment{
		BaseEntity: shared.NewBaseEntity(now),
		BillID:     bill.ID,
		TenantID:   bill.TenantID,
		Amount:     bill.TotalCost,
		Currency:   bill.Currency,
		Status:     PaymentStatusPending,
	}
}

// Settled reports whether money has been received
func (p *Payment) Settled() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusReconciled
}

// MarkPaid moves a pending payment to paid. Repeating the call with the same
// (or no) external reference is a no-op and reports changed=false.
func (p *Payment) MarkPaid(externalRef string, now time.Time) (changed bool, err error) {
	externalRef = strings.TrimSpace(externalRef)
	switch p.Status {
	case PaymentStatusPending:
		t := now.UTC()
		p.Status = PaymentStatusPaid
		p.ExternalRef = externalRef
		p.PaidAt = &t
		p.Touch(now)
		return true, nil
	case PaymentStatusPaid:
		if externalRef == "" || externalRef == p.ExternalRef {
			return false, nil
		}
		return false, shared.NewConflictError("payment %s already paid with reference %q", p.ID, p.ExternalRef)
	default:
		return false, shared.NewInvalidStateError("payment %s is %s and cannot be marked paid", p.ID, p.Status)
	}
}

// Reconcile confirms a paid payment against the ledger
func (p *Payment) Reconcile(now time.Time) error {
	if p.Status != PaymentStatusPaid {
		return shared.NewInvalidStateError("payment %s is %s; only paid payments can be reconciled", p.ID, p.Status)
	}
	t := now.UTC()
	p.Status = PaymentStatusReconciled
	p.ReconciledAt = &t
	p.Touch(now)
	return nil
}

// Reprice follows a regenerated bill. Only pending payments can change amount.
func (p *Payment) Reprice(bill *Bill, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewConflictError("payment %s is %s; bill %s can no longer change", p.ID, p.Status, bill.ID)
	}
	p.Amount = bill.TotalCost
	p.Currency = bill.Currency
	p.Touch(now)
	return nil
}

// PaymentRepository persists payments
type PaymentRepository interface {
	// Create inserts the payment unless the bill already has one
	Create(ctx context.Context, payment *Payment) (created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByBillID(ctx context.Context, billID uuid.UUID) (*Payment, error)
	// Update stores payment only while the stored status is still from, the
	// status it was read in; otherwise it fails with ConflictError.
	Update(ctx context.Context, payment *Payment, from PaymentStatus) error
}
