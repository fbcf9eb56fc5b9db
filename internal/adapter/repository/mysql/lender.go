package mysql

import (
	"context"
	"fmt"

	lenderDomain "peerlend-backend/internal/domain/lender"
	offerDomain "peerlend-backend/internal/domain/offer"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LenderRepository struct{ db *gorm.DB }

func NewLenderRepository(db *gorm.DB) *LenderRepository { return &LenderRepository{db: db} }

// Upsert writes the policy columns; running statistics are never overwritten.
func (r *LenderRepository) Upsert(ctx context.Context, p *lenderDomain.Preference) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_kind"}, {Name: "candidate_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"capital_pool", "min_loan_amount", "max_loan_amount",
				"default_rate", "tier_rates", "auto_accept", "updated_at",
			}),
		}).
		Create(p).Error
}

func (r *LenderRepository) GetByCandidate(ctx context.Context, c offerDomain.Candidate) (*lenderDomain.Preference, error) {
	var out lenderDomain.Preference
	res := r.db.WithContext(ctx).
		Where("candidate_kind = ? AND candidate_ref = ?", c.Kind(), c.Ref()).
		First(&out)
	return &out, res.Error
}

func (r *LenderRepository) GetByID(ctx context.Context, id uint64) (*lenderDomain.Preference, error) {
	var out lenderDomain.Preference
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *LenderRepository) RecordAcceptance(ctx context.Context, id uint64, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&lenderDomain.Preference{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"capital_reserved": gorm.Expr("capital_reserved + ?", amount),
			"loans_funded":     gorm.Expr("loans_funded + 1"),
			"amount_funded":    gorm.Expr("amount_funded + ?", amount),
		})
	return rowsOrNotFound(res, lenderDomain.ErrNotFound)
}

func (r *LenderRepository) ReleaseCapital(ctx context.Context, id uint64, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&lenderDomain.Preference{}).
		Where("id = ?", id).
		Update("capital_reserved", gorm.Expr(
			"CASE WHEN capital_reserved > ? THEN capital_reserved - ? ELSE 0 END", amount, amount,
		))
	// mysql reports changed rows, so an already-released pool is not an error
	return res.Error
}

// RecordNonAcceptance dilutes the acceptance rate toward zero:
// rate = rate * funded / (funded + 1).
func (r *LenderRepository) RecordNonAcceptance(ctx context.Context, id uint64, counter string) error {
	switch counter {
	case lenderDomain.CounterDeclines, lenderDomain.CounterMissedResponses:
	default:
		return fmt.Errorf("unknown reliability counter %q", counter)
	}
	res := r.db.WithContext(ctx).
		Model(&lenderDomain.Preference{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"acceptance_rate": gorm.Expr("acceptance_rate * loans_funded / (loans_funded + 1)"),
			counter:           gorm.Expr(counter + " + 1"),
		})
	return rowsOrNotFound(res, lenderDomain.ErrNotFound)
}

func (r *LenderRepository) IsOrganizationMember(ctx context.Context, organizationID, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&lenderDomain.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *LenderRepository) AddOrganizationMember(ctx context.Context, m *lenderDomain.OrganizationMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

func rowsOrNotFound(res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}
