package lender

import (
	"context"

	"github.com/shopspring/decimal"

	"peerlend-backend/internal/domain/offer"
)

type Repository interface {
	Upsert(ctx context.Context, p *Preference) error
	GetByCandidate(ctx context.Context, c offer.Candidate) (*Preference, error)
	GetByID(ctx context.Context, id uint64) (*Preference, error)

	// Atomic counter updates; none of them overwrite a cached row.
	// RecordAcceptance reserves amount and bumps the funded counters.
	RecordAcceptance(ctx context.Context, id uint64, amount decimal.Decimal) error
	ReleaseCapital(ctx context.Context, id uint64, amount decimal.Decimal) error
	RecordNonAcceptance(ctx context.Context, id uint64, counter string) error

	IsOrganizationMember(ctx context.Context, organizationID, userID string) (bool, error)
	AddOrganizationMember(ctx context.Context, m *OrganizationMember) error
}

// Counter columns accepted by RecordNonAcceptance.
const (
	CounterDeclines        = "declines"
	CounterMissedResponses = "missed_responses"
)
