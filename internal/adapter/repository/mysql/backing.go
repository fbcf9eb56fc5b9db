package mysql

import (
	"context"
	"fmt"
	"time"

	backingDomain "peerlend-backend/internal/domain/backing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BackingRepository struct{ db *gorm.DB }

func NewBackingRepository(db *gorm.DB) *BackingRepository { return &BackingRepository{db: db} }

func (r *BackingRepository) Create(ctx context.Context, b *backingDomain.Backing) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BackingRepository) GetByBackingID(ctx context.Context, backingID string) (*backingDomain.Backing, error) {
	var out backingDomain.Backing
	res := r.db.WithContext(ctx).Where("backing_id = ?", backingID).First(&out)
	return &out, res.Error
}

func (r *BackingRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*backingDomain.Backing, error) {
	var out backingDomain.Backing
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out)
	return &out, res.Error
}

func (r *BackingRepository) ListActiveByBorrower(ctx context.Context, borrowerID string) ([]*backingDomain.Backing, error) {
	var out []*backingDomain.Backing
	res := r.db.WithContext(ctx).
		Where("borrower_id = ? AND status = ?", borrowerID, backingDomain.StatusActive).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

func (r *BackingRepository) FindActive(ctx context.Context, backerID, borrowerID string) (*backingDomain.Backing, error) {
	var out backingDomain.Backing
	res := r.db.WithContext(ctx).
		Where("backer_id = ? AND borrower_id = ? AND status = ?", backerID, borrowerID, backingDomain.StatusActive).
		First(&out)
	return &out, res.Error
}

func (r *BackingRepository) Revoke(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&backingDomain.Backing{}).
		Where("id = ? AND status = ?", id, backingDomain.StatusActive).
		Updates(map[string]any{
			"status":     backingDomain.StatusRevoked,
			"revoked_at": at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *BackingRepository) RecordOutcome(ctx context.Context, rec *backingDomain.OutcomeRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	return res.RowsAffected == 1, res.Error
}

func (r *BackingRepository) ApplyOutcomeCounters(ctx context.Context, id uint64, o backingDomain.Outcome) error {
	decActive := gorm.Expr("CASE WHEN loans_active > 0 THEN loans_active - 1 ELSE 0 END")
	var patch map[string]any
	switch o {
	case backingDomain.OutcomeCompleted:
		patch = map[string]any{"loans_completed": gorm.Expr("loans_completed + 1"), "loans_active": decActive}
	case backingDomain.OutcomeDefaulted:
		patch = map[string]any{"loans_defaulted": gorm.Expr("loans_defaulted + 1"), "loans_active": decActive}
	case backingDomain.OutcomeDefaultResolved:
		return nil
	default:
		return fmt.Errorf("unknown outcome %q", o)
	}
	return r.db.WithContext(ctx).
		Model(&backingDomain.Backing{}).
		Where("id = ?", id).
		Updates(patch).Error
}

func (r *BackingRepository) IncrementActiveForBorrower(ctx context.Context, borrowerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&backingDomain.Backing{}).
		Where("borrower_id = ? AND status = ?", borrowerID, backingDomain.StatusActive).
		Update("loans_active", gorm.Expr("loans_active + 1"))
	return res.RowsAffected, res.Error
}

func (r *BackingRepository) UpdateStrength(ctx context.Context, id uint64, strength int) error {
	return r.db.WithContext(ctx).
		Model(&backingDomain.Backing{}).
		Where("id = ?", id).
		Update("strength", strength).Error
}

func (r *BackingRepository) OutcomeTotals(ctx context.Context, backerID string) (int, int, error) {
	var totals struct {
		Completed int
		Defaulted int
	}
	err := r.db.WithContext(ctx).
		Model(&backingDomain.Backing{}).
		Select("COALESCE(SUM(loans_completed), 0) AS completed, COALESCE(SUM(loans_defaulted), 0) AS defaulted").
		Where("backer_id = ?", backerID).
		Scan(&totals).Error
	return totals.Completed, totals.Defaulted, err
}
