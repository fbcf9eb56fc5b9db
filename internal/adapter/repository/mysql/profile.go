package mysql

import (
	"context"
	"time"

	backingDomain "peerlend-backend/internal/domain/backing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) *ProfileRepository { return &ProfileRepository{db: db} }

func (r *ProfileRepository) Create(ctx context.Context, p *backingDomain.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*backingDomain.Profile, error) {
	var out backingDomain.Profile
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&out)
	return &out, res.Error
}

func (r *ProfileRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*backingDomain.Profile, error) {
	var out backingDomain.Profile
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&out)
	return &out, res.Error
}

func (r *ProfileRepository) SetSuccessRate(ctx context.Context, userID string, rate float64) error {
	return r.db.WithContext(ctx).
		Model(&backingDomain.Profile{}).
		Where("user_id = ?", userID).
		Update("success_rate", rate).Error
}

// AdjustActiveDefaults adds delta, flooring the counter at zero.
func (r *ProfileRepository) AdjustActiveDefaults(ctx context.Context, userID string, delta int) error {
	return r.db.WithContext(ctx).
		Model(&backingDomain.Profile{}).
		Where("user_id = ?", userID).
		Update("active_default_count", gorm.Expr(
			"CASE WHEN active_default_count + ? < 0 THEN 0 ELSE active_default_count + ? END", delta, delta,
		)).Error
}

func (r *ProfileRepository) AdjustTrustScore(ctx context.Context, userID string, delta int) error {
	return r.db.WithContext(ctx).
		Model(&backingDomain.Profile{}).
		Where("user_id = ?", userID).
		Update("trust_score", gorm.Expr("trust_score + ?", delta)).Error
}

func (r *ProfileRepository) Lock(ctx context.Context, userID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&backingDomain.Profile{}).
		Where("user_id = ? AND locked = ?", userID, false).
		Updates(map[string]any{
			"locked":        true,
			"locked_reason": reason,
			"locked_at":     at.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *ProfileRepository) Unlock(ctx context.Context, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&backingDomain.Profile{}).
		Where("user_id = ? AND locked = ?", userID, true).
		Updates(map[string]any{
			"locked":        false,
			"locked_reason": "",
			"locked_at":     nil,
		})
	return res.RowsAffected == 1, res.Error
}
