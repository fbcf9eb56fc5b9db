package offer

import (
	"context"
	"time"
)

type Repository interface {
	CreateBatch(ctx context.Context, offers []*Offer) error
	GetByOfferID(ctx context.Context, offerID string) (*Offer, error)
	GetByID(ctx context.Context, id uint64) (*Offer, error)
	// ListByLoan returns offers ordered by rank then creation order.
	ListByLoan(ctx context.Context, loanID uint64) ([]*Offer, error)
	// NextPending returns the lowest-ranked pending offer, gorm.ErrRecordNotFound if none.
	NextPending(ctx context.Context, loanID uint64) (*Offer, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Offer, error)
	FindByCandidate(ctx context.Context, loanID uint64, c Candidate) (*Offer, error)
	MaxRank(ctx context.Context, loanID uint64) (int, error)

	// TransitionFromPending applies res only while the offer is still pending.
	// The bool reports whether this caller won the transition.
	TransitionFromPending(ctx context.Context, id uint64, res Resolution) (bool, error)
	// SkipPendingSiblings forces every other pending offer of the loan to skipped.
	SkipPendingSiblings(ctx context.Context, loanID, exceptID uint64, at time.Time) (int64, error)
	// Present stamps the expiry of a pending offer.
	Present(ctx context.Context, id uint64, expiresAt time.Time) (bool, error)
}
