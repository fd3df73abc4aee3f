package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillModel is the persistence model for generated bills. Line items are a
// frozen JSON snapshot.
type BillModel struct {
	BaseModel
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_bills_tenant_period,priority:1"`
	StartTime      time.Time       `gorm:"not null;uniqueIndex:uq_bills_tenant_period,priority:2"`
	EndTime        time.Time       `gorm:"not null;uniqueIndex:uq_bills_tenant_period,priority:3"`
	Currency       string          `gorm:"type:char(3);not null"`
	TotalCost      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	LineItems      []byte          `gorm:"type:jsonb;not null"`
	PricingPlanID  uuid.UUID       `gorm:"type:uuid;not null"`
	AggregateCount int             `gorm:"not null"`
	Revision       int             `gorm:"not null"`
	GeneratedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "bills"
}

// ToDomain converts the model to a domain bill
func (m *BillModel) ToDomain() (*billing.Bill, error) {
	items := []billing.LineItem{}
	if len(m.LineItems) > 0 {
		if err := json.Unmarshal(m.LineItems, &items); err != nil {
			return nil, fmt.Errorf("decode line items of bill %s: %w", m.ID, err)
		}
	}
	return &billing.Bill{
		BaseEntity:     m.BaseModel.ToDomain(),
		TenantID:       m.TenantID,
		Period:         billing.Period{Start: m.StartTime.UTC(), End: m.EndTime.UTC()},
		Currency:       m.Currency,
		TotalCost:      m.TotalCost,
		LineItems:      items,
		PricingPlanID:  m.PricingPlanID,
		AggregateCount: m.AggregateCount,
		Revision:       m.Revision,
		GeneratedAt:    m.GeneratedAt.UTC(),
	}, nil
}

// BillModelFromDomain creates a model from a domain bill
func BillModelFromDomain(b *billing.Bill) (*BillModel, error) {
	items := b.LineItems
	if items == nil {
		items = []billing.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode line items: %w", err)
	}
	m := &BillModel{
		TenantID:       b.TenantID,
		StartTime:      b.Period.Start.UTC(),
		EndTime:        b.Period.End.UTC(),
		Currency:       b.Currency,
		TotalCost:      b.TotalCost,
		LineItems:      raw,
		PricingPlanID:  b.PricingPlanID,
		AggregateCount: b.AggregateCount,
		Revision:       b.Revision,
		GeneratedAt:    b.GeneratedAt.UTC(),
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m, nil
}

// PaymentModel is the persistence model for bill payments
type PaymentModel struct {
	BaseModel
	BillID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Currency     string          `gorm:"type:char(3);not null"`
	Status       string          `gorm:"type:varchar(16);not null"`
	ExternalRef  string          `gorm:"type:varchar(255);not null"`
	PaidAt       *time.Time
	ReconciledAt *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the model to a domain payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:   m.BaseModel.ToDomain(),
		BillID:       m.BillID,
		TenantID:     m.TenantID,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Status:       billing.PaymentStatus(m.Status),
		ExternalRef:  m.ExternalRef,
		PaidAt:       utcPtr(m.PaidAt),
		ReconciledAt: utcPtr(m.ReconciledAt),
	}
}

// PaymentModelFromDomain creates a model from a domain payment
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		BillID:       p.BillID,
		TenantID:     p.TenantID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       string(p.Status),
		ExternalRef:  p.ExternalRef,
		PaidAt:       utcPtr(p.PaidAt),
		ReconciledAt: utcPtr(p.ReconciledAt),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// AllModels lists every table model, in dependency order
func AllModels() []any {
	return []any{
		&PricingPlanModel{},
		&TenantModel{},
		&ServiceModel{},
		&UsageEventModel{},
		&UsageAggregateModel{},
		&BillModel{},
		&PaymentModel{},
	}
}
