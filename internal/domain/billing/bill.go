package billing

import (
	"context"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bill is a persisted statement, unique per (tenant, start, end)
type Bill struct {
	shared.BaseEntity
	TenantID       uuid.UUID
	Period         Period
	Currency       string
	TotalCost      decimal.Decimal
	LineItems      []LineItem
	PricingPlanID  uuid.UUID
	AggregateCount int
	Revision       int
	GeneratedAt    time.Time
}

// NewBill freezes a statement into a bill at revision 1
func NewBill(st Statement, now time.Time) *Bill {
	b := &Bill{BaseEntity: shared.NewBaseEntity(now), Revision: 1}
	b.apply(st, now)
	return b
}

// Regenerate replaces the snapshot with a fresh statement for the same key
func (b *Bill) Regenerate(st Statement, now time.Time) error {
	if st.TenantID != b.TenantID || !st.Period.Start.Equal(b.Period.Start) || !st.Period.End.Equal(b.Period.End) {
		return shared.NewValidationError("statement does not match bill %s", b.ID)
	}
	b.apply(st, now)
	b.Revision++
	b.Touch(now)
	return nil
}

func (b *Bill) apply(st Statement, now time.Time) {
	b.TenantID = st.TenantID
	b.Period = st.Period
	b.Currency = st.Currency
	b.TotalCost = st.TotalCost
	b.LineItems = st.LineItems
	b.PricingPlanID = st.PricingPlanID
	b.AggregateCount = st.AggregateCount
	b.GeneratedAt = now.UTC()
}

// Key identifies the bill for locking and idempotent generation
func (b *Bill) Key() string {
	return BillKey(b.TenantID, b.Period)
}

// BillKey builds the natural key of a bill
func BillKey(tenantID uuid.UUID, p Period) string {
	return "bill:" + tenantID.String() + ":" + p.Start.Format(time.RFC3339) + ":" + p.End.Format(time.RFC3339)
}

// BillRepository persists bills
type BillRepository interface {
	// Create inserts the bill unless one already exists for its key.
	// created is false when another writer got there first.
	Create(ctx context.Context, bill *Bill) (created bool, err error)
	FindByKey(ctx context.Context, tenantID uuid.UUID, p Period) (*Bill, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	// ListByTenant returns bills newest period first
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Bill, error)
	// Update stores a regenerated bill if it is still at prevRevision
	Update(ctx context.Context, bill *Bill, prevRevision int) error
}
