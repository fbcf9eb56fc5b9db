package mysql

import (
	"context"

	backingDomain "peerlend-backend/internal/domain/backing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrustEventRepository only ever inserts and reads.
type TrustEventRepository struct{ db *gorm.DB }

func NewTrustEventRepository(db *gorm.DB) *TrustEventRepository { return &TrustEventRepository{db: db} }

func (r *TrustEventRepository) Append(ctx context.Context, e *backingDomain.TrustEvent) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *TrustEventRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*backingDomain.TrustEvent, error) {
	var out []*backingDomain.TrustEvent
	q := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	res := q.Find(&out)
	return out, res.Error
}
