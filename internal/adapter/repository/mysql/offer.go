package mysql

import (
	"context"
	"time"

	offerDomain "peerlend-backend/internal/domain/offer"

	"gorm.io/gorm"
)

type OfferRepository struct{ db *gorm.DB }

func NewOfferRepository(db *gorm.DB) *OfferRepository { return &OfferRepository{db: db} }

func (r *OfferRepository) CreateBatch(ctx context.Context, offers []*offerDomain.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(offers).Error
}

func (r *OfferRepository) GetByOfferID(ctx context.Context, offerID string) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	res := r.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&out)
	return &out, res.Error
}

func (r *OfferRepository) GetByID(ctx context.Context, id uint64) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *OfferRepository) ListByLoan(ctx context.Context, loanID uint64) ([]*offerDomain.Offer, error) {
	var out []*offerDomain.Offer
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("offer_rank ASC, id ASC").
		Find(&out)
	return out, res.Error
}

func (r *OfferRepository) NextPending(ctx context.Context, loanID uint64) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanID, offerDomain.StatusPending).
		Order("offer_rank ASC, id ASC").
		Limit(1).
		Find(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &out, nil
}

func (r *OfferRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*offerDomain.Offer, error) {
	var out []*offerDomain.Offer
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", offerDomain.StatusPending, now.UTC()).
		Order("loan_id ASC, offer_rank ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	res := q.Find(&out)
	return out, res.Error
}

func (r *OfferRepository) FindByCandidate(ctx context.Context, loanID uint64, c offerDomain.Candidate) (*offerDomain.Offer, error) {
	var out offerDomain.Offer
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND candidate_kind = ? AND candidate_ref = ?", loanID, c.Kind(), c.Ref()).
		Order("id DESC").
		First(&out)
	return &out, res.Error
}

func (r *OfferRepository) MaxRank(ctx context.Context, loanID uint64) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&offerDomain.Offer{}).
		Where("loan_id = ?", loanID).
		Select("COALESCE(MAX(offer_rank), 0)").
		Scan(&max).Error
	return max, err
}

func (r *OfferRepository) TransitionFromPending(ctx context.Context, id uint64, res offerDomain.Resolution) (bool, error) {
	patch := map[string]any{
		"status":        res.Status,
		"auto_accepted": res.AutoAccepted,
	}
	if !res.RespondedAt.IsZero() {
		patch["responded_at"] = res.RespondedAt.UTC()
	}
	if res.DeclineReason != "" {
		patch["decline_reason"] = res.DeclineReason
	}
	out := r.db.WithContext(ctx).
		Model(&offerDomain.Offer{}).
		Where("id = ? AND status = ?", id, offerDomain.StatusPending).
		Updates(patch)
	return out.RowsAffected == 1, out.Error
}

func (r *OfferRepository) SkipPendingSiblings(ctx context.Context, loanID, exceptID uint64, at time.Time) (int64, error) {
	out := r.db.WithContext(ctx).
		Model(&offerDomain.Offer{}).
		Where("loan_id = ? AND id <> ? AND status = ?", loanID, exceptID, offerDomain.StatusPending).
		Updates(map[string]any{
			"status":     offerDomain.StatusSkipped,
			"updated_at": at.UTC(),
		})
	return out.RowsAffected, out.Error
}

func (r *OfferRepository) Present(ctx context.Context, id uint64, expiresAt time.Time) (bool, error) {
	out := r.db.WithContext(ctx).
		Model(&offerDomain.Offer{}).
		Where("id = ? AND status = ?", id, offerDomain.StatusPending).
		Update("expires_at", expiresAt.UTC())
	return out.RowsAffected == 1, out.Error
}
