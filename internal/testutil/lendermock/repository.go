package lendermock

import (
	"context"

	"github.com/shopspring/decimal"

	domain "peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/offer"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies lender.Repository.
// Unset getters return context.Canceled; unset writers are no-ops.
type Repo struct {
	UpsertFn                func(ctx context.Context, p *domain.Preference) error
	GetByCandidateFn        func(ctx context.Context, c offer.Candidate) (*domain.Preference, error)
	GetByIDFn               func(ctx context.Context, id uint64) (*domain.Preference, error)
	RecordAcceptanceFn      func(ctx context.Context, id uint64, amount decimal.Decimal) error
	ReleaseCapitalFn        func(ctx context.Context, id uint64, amount decimal.Decimal) error
	RecordNonAcceptanceFn   func(ctx context.Context, id uint64, counter string) error
	IsOrganizationMemberFn  func(ctx context.Context, organizationID, userID string) (bool, error)
	AddOrganizationMemberFn func(ctx context.Context, m *domain.OrganizationMember) error
}

func (m *Repo) Upsert(ctx context.Context, p *domain.Preference) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, p)
	}
	return nil
}

func (m *Repo) GetByCandidate(ctx context.Context, c offer.Candidate) (*domain.Preference, error) {
	if m.GetByCandidateFn != nil {
		return m.GetByCandidateFn(ctx, c)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Preference, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) RecordAcceptance(ctx context.Context, id uint64, amount decimal.Decimal) error {
	if m.RecordAcceptanceFn != nil {
		return m.RecordAcceptanceFn(ctx, id, amount)
	}
	return nil
}

func (m *Repo) ReleaseCapital(ctx context.Context, id uint64, amount decimal.Decimal) error {
	if m.ReleaseCapitalFn != nil {
		return m.ReleaseCapitalFn(ctx, id, amount)
	}
	return nil
}

func (m *Repo) RecordNonAcceptance(ctx context.Context, id uint64, counter string) error {
	if m.RecordNonAcceptanceFn != nil {
		return m.RecordNonAcceptanceFn(ctx, id, counter)
	}
	return nil
}

func (m *Repo) IsOrganizationMember(ctx context.Context, organizationID, userID string) (bool, error) {
	if m.IsOrganizationMemberFn != nil {
		return m.IsOrganizationMemberFn(ctx, organizationID, userID)
	}
	return false, nil
}

func (m *Repo) AddOrganizationMember(ctx context.Context, om *domain.OrganizationMember) error {
	if m.AddOrganizationMemberFn != nil {
		return m.AddOrganizationMemberFn(ctx, om)
	}
	return nil
}
