package persistence

import (
	"context"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// counterColumns are folded with col = col + excluded.col on upsert
var counterColumns = []string{
	"invocations",
	"duration_ms",
	"mem_mb_ms",
	"cold_starts",
	"errors",
	"egress_bytes",
}

// GormUsageRepository implements usage.Repository using GORM.
// Increments are single upsert statements so concurrent writers never lose counts.
type GormUsageRepository struct {
	db *gorm.DB
}

// NewGormUsageRepository creates a new GormUsageRepository
func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

// Record inserts the ledger row and folds inc into the window row.
// The event insert, overlap check and counter upsert share one transaction.
func (r *GormUsageRepository) Record(ctx context.Context, rec usage.EventRecord, w usage.Window, inc usage.Increment) (usage.Outcome, error) {
	outcome := usage.OutcomeAccepted
	rec.Status = usage.EventStatusAccepted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := insertEvent(tx, rec)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = usage.OutcomeDuplicate
			return nil
		}

		var overlapping int64
		if err := tx.Model(&models.UsageAggregateModel{}).
			Where("service_id = ? AND window_start <> ? AND window_start < ? AND window_end > ?",
				rec.ServiceID, w.Start.UTC(), w.End.UTC(), w.Start.UTC()).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return shared.NewConflictError("window %s overlaps an existing window of service %s",
				w.Start.UTC().Format(time.RFC3339), rec.ServiceID)
		}

		now := rec.ReceivedAt.UTC()
		updates := make(map[string]any, len(counterColumns)+1)
		for _, col := range counterColumns {
			updates[col] = gorm.Expr("usage_aggregates." + col + " + excluded." + col)
		}
		updates["updated_at"] = now

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_id"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(updates),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "usage_aggregates.closed_at IS NULL"},
			}},
		}).Create(models.NewUsageAggregateModel(rec.TenantID, rec.ServiceID, w, inc, now))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// the window was sealed between the late check and this write
			outcome = usage.OutcomeLate
			return tx.Model(&models.UsageEventModel{}).
				Where("event_id = ?", rec.EventID).
				Update("status", string(usage.EventStatusLate)).Error
		}
		return nil
	})
	if err != nil {
		return 0, translateError("record usage event", err)
	}
	return outcome, nil
}

// RecordLate keeps a ledger row for an event that arrived after its window closed
func (r *GormUsageRepository) RecordLate(ctx context.Context, rec usage.EventRecord) (usage.Outcome, error) {
	rec.Status = usage.EventStatusLate
	inserted, err := insertEvent(r.db.WithContext(ctx), rec)
	if err != nil {
		return 0, translateError("record late usage event", err)
	}
	if !inserted {
		return usage.OutcomeDuplicate, nil
	}
	return usage.OutcomeLate, nil
}

func insertEvent(tx *gorm.DB, rec usage.EventRecord) (bool, error) {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(models.UsageEventModelFromRecord(rec))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CloseDue seals every open window ending at or before cutoff
func (r *GormUsageRepository) CloseDue(ctx context.Context, cutoff, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.UsageAggregateModel{}).
		Where("closed_at IS NULL AND window_end <= ?", cutoff.UTC()).
		Updates(map[string]any{"closed_at": now, "updated_at": now})
	if result.Error != nil {
		return 0, translateError("close usage windows", result.Error)
	}
	return result.RowsAffected, nil
}

// CountOpenWindows returns the number of windows not yet closed
func (r *GormUsageRepository) CountOpenWindows(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.UsageAggregateModel{}).
		Where("closed_at IS NULL").
		Count(&n).Error; err != nil {
		return 0, translateError("count open windows", err)
	}
	return n, nil
}

// PurgeEvents deletes ledger rows of windows starting before the given time
func (r *GormUsageRepository) PurgeEvents(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("window_start < ?", before.UTC()).
		Delete(&models.UsageEventModel{})
	if result.Error != nil {
		return 0, translateError("purge usage events", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns aggregates ordered by window_start, service_id
func (r *GormUsageRepository) List(ctx context.Context, filter usage.AggregateFilter) ([]usage.Aggregate, error) {
	query := r.db.WithContext(ctx).Model(&models.UsageAggregateModel{})
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.ServiceID != nil {
		query = query.Where("service_id = ?", *filter.ServiceID)
	}
	if filter.Start != nil {
		query = query.Where("window_start >= ?", filter.Start.UTC())
	}
	if filter.End != nil {
		query = query.Where("window_start < ?", filter.End.UTC())
	}
	if !filter.IncludeOpen {
		query = query.Where("closed_at IS NOT NULL")
	}

	var rows []models.UsageAggregateModel
	if err := query.Order("window_start ASC, service_id ASC").Find(&rows).Error; err != nil {
		return nil, translateError("list usage aggregates", err)
	}
	aggregates := make([]usage.Aggregate, len(rows))
	for i := range rows {
		aggregates[i] = rows[i].ToDomain()
	}
	return aggregates, nil
}
