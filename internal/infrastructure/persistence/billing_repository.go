package persistence

import (
	"context"

	"github.com/faasbill/backend/internal/domain/billing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillRepository implements billing.BillRepository using GORM.
// The (tenant_id, start_time, end_time) unique index backs bill idempotency.
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

// Create inserts the bill unless one already exists for its period
func (r *GormBillRepository) Create(ctx context.Context, bill *billing.Bill) (bool, error) {
	model, err := models.BillModelFromDomain(bill)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "start_time"}, {Name: "end_time"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return false, translateError("create bill", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByKey finds the bill of a tenant for an exact period
func (r *GormBillRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, p billing.Period) (*billing.Bill, error) {
	var model models.BillModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND start_time = ? AND end_time = ?", tenantID, p.Start.UTC(), p.End.UTC()).
		First(&model).Error
	if err != nil {
		return nil, notFound("find bill", "bill", billing.BillKey(tenantID, p), err)
	}
	return model.ToDomain()
}

// FindByID finds a bill by its ID
func (r *GormBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound("find bill", "bill", id, err)
	}
	return model.ToDomain()
}

// ListByTenant returns a tenant's bills, newest period first
func (r *GormBillRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]billing.Bill, error) {
	var rows []models.BillModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("start_time DESC, end_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError("list bills", err)
	}
	bills := make([]billing.Bill, 0, len(rows))
	for i := range rows {
		b, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, nil
}

// Update stores a regenerated bill guarded by optimistic revision check
func (r *GormBillRepository) Update(ctx context.Context, bill *billing.Bill, prevRevision int) error {
	model, err := models.BillModelFromDomain(bill)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.BillModel{}).
		Where("id = ? AND revision = ?", bill.ID, prevRevision).
		Updates(map[string]any{
			"currency":        model.Currency,
			"total_cost":      model.TotalCost,
			"line_items":      model.LineItems,
			"pricing_plan_id": model.PricingPlanID,
			"aggregate_count": model.AggregateCount,
			"revision":        model.Revision,
			"generated_at":    model.GeneratedAt,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return translateError("update bill", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("bill %s was modified concurrently", bill.ID)
	}
	return nil
}

// GormPaymentRepository implements billing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts the payment unless its bill already has one
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bill_id"}},
		DoNothing: true,
	}).Create(models.PaymentModelFromDomain(payment))
	if result.Error != nil {
		return false, translateError("create payment", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound("find payment", "payment", id, err)
	}
	return model.ToDomain(), nil
}

// FindByBillID finds the payment of a bill
func (r *GormPaymentRepository) FindByBillID(ctx context.Context, billID uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "bill_id = ?", billID).Error; err != nil {
		return nil, notFound("find payment", "payment for bill", billID, err)
	}
	return model.ToDomain(), nil
}

// Update writes the payment's lifecycle fields if the row is still in the
// from status. A stale copy therefore cannot undo a transition made by
// another request.
func (r *GormPaymentRepository) Update(ctx context.Context, payment *billing.Payment, from billing.PaymentStatus) error {
	db := r.db.WithContext(ctx)
	result := db.
		Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", payment.ID, string(from)).
		Updates(map[string]any{
			"status":        string(payment.Status),
			"amount":        payment.Amount,
			"currency":      payment.Currency,
			"external_ref":  payment.ExternalRef,
			"paid_at":       payment.PaidAt,
			"reconciled_at": payment.ReconciledAt,
			"updated_at":    payment.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return translateError("update payment", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var stored models.PaymentModel
	if err := db.Select("status").First(&stored, "id = ?", payment.ID).Error; err != nil {
		return notFound("update payment", "payment", payment.ID, err)
	}
	return shared.NewConflictError("payment %s is %s, expected %s", payment.ID, stored.Status, from)
}
