package backing

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, b *Backing) error
	GetByBackingID(ctx context.Context, backingID string) (*Backing, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*Backing, error)
	ListActiveByBorrower(ctx context.Context, borrowerID string) ([]*Backing, error)
	FindActive(ctx context.Context, backerID, borrowerID string) (*Backing, error)
	Revoke(ctx context.Context, id uint64, at time.Time) (bool, error)

	// RecordOutcome stores the (backing, loan, outcome) key; false means it already existed.
	RecordOutcome(ctx context.Context, rec *OutcomeRecord) (bool, error)
	ApplyOutcomeCounters(ctx context.Context, id uint64, o Outcome) error
	IncrementActiveForBorrower(ctx context.Context, borrowerID string) (int64, error)
	UpdateStrength(ctx context.Context, id uint64, strength int) error
	// OutcomeTotals sums completed/defaulted over every backing of the backer.
	OutcomeTotals(ctx context.Context, backerID string) (completed, defaulted int, err error)
}

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
	GetByUserIDForUpdate(ctx context.Context, userID string) (*Profile, error)
	SetSuccessRate(ctx context.Context, userID string, rate float64) error
	AdjustActiveDefaults(ctx context.Context, userID string, delta int) error
	AdjustTrustScore(ctx context.Context, userID string, delta int) error
	// Lock and Unlock are conditional on the current flag.
	Lock(ctx context.Context, userID, reason string, at time.Time) (bool, error)
	Unlock(ctx context.Context, userID string) (bool, error)
}

type TrustEventRepository interface {
	Append(ctx context.Context, e *TrustEvent) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*TrustEvent, error)
}
