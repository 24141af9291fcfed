// Package repository persists the completion audit trail and the orphaned
// resource journal. The ledger itself is never stored.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"retailku_backend/internals/features/finance/collections/model"
	helper "retailku_backend/internals/helpers"
)

var ErrJournalConflict = errors.New("journal row already exists")

type JournalRepository struct {
	DB *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{DB: db}
}

func (r *JournalRepository) RecordAttempt(ctx context.Context, row *model.CollectionAttempt) error {
	if err := r.DB.WithContext(ctx).Create(row).Error; err != nil {
		return mapErr("record attempt", err)
	}
	return nil
}

// RecordOrphans is idempotent on external ref: a voucher journaled by an
// earlier failed run is not written twice.
func (r *JournalRepository) RecordOrphans(ctx context.Context, rows []model.OrphanedResource) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "orphaned_resource_external_ref"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return mapErr("record orphans", err)
	}
	return nil
}

// MarkOrphansSubmitted resolves pending orphans of a session whose refs went
// out in a successful submission.
func (r *JournalRepository) MarkOrphansSubmitted(ctx context.Context, sessionID uuid.UUID, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	now := time.Now()
	res := r.DB.WithContext(ctx).
		Model(&model.OrphanedResource{}).
		Where("orphaned_resource_session_id = ? AND orphaned_resource_external_ref IN ? AND orphaned_resource_status = ?",
			sessionID, refs, model.OrphanStatusPending).
		Updates(map[string]any{
			"orphaned_resource_status":      model.OrphanStatusSubmitted,
			"orphaned_resource_resolved_at": now,
			"orphaned_resource_updated_at":  now,
		})
	if res.Error != nil {
		return 0, mapErr("mark orphans submitted", res.Error)
	}
	return res.RowsAffected, nil
}

type OrphanFilter struct {
	Status     string
	CustomerID string
	Offset     int
	Limit      int
}

func (r *JournalRepository) ListOrphans(ctx context.Context, f OrphanFilter) ([]model.OrphanedResource, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.OrphanedResource{})
	if f.Status != "" {
		q = q.Where("orphaned_resource_status = ?", f.Status)
	}
	if f.CustomerID != "" {
		q = q.Where("orphaned_resource_customer_id = ?", f.CustomerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr("count orphans", err)
	}

	var rows []model.OrphanedResource
	if err := q.Order("orphaned_resource_created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, mapErr("list orphans", err)
	}
	return rows, total, nil
}

func mapErr(op string, err error) error {
	if helper.IsUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w: %v", op, ErrJournalConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
