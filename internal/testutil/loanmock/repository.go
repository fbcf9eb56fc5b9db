package loanmock

import (
	"context"

	domain "peerlend-backend/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset getters return context.Canceled; unset writers are no-ops.
type Repo struct {
	CreateFn                     func(ctx context.Context, l *domain.LoanRequest) error
	GetByLoanIDFn                func(ctx context.Context, loanID string) (*domain.LoanRequest, error)
	GetByIDFn                    func(ctx context.Context, id uint64) (*domain.LoanRequest, error)
	GetByIDForUpdateFn           func(ctx context.Context, id uint64) (*domain.LoanRequest, error)
	SaveFn                       func(ctx context.Context, l *domain.LoanRequest) error
	GetPendingLoanByBorrowerIDFn func(ctx context.Context, borrowerID string) (*domain.LoanRequest, error)
	TransitionStatusFn           func(ctx context.Context, id uint64, from []domain.Status, to domain.Status) (bool, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.LoanRequest) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.LoanRequest, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.LoanRequest, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.LoanRequest, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}
func (m *Repo) Save(ctx context.Context, l *domain.LoanRequest) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetPendingLoanByBorrowerID(ctx context.Context, borrowerID string) (*domain.LoanRequest, error) {
	if m.GetPendingLoanByBorrowerIDFn != nil {
		return m.GetPendingLoanByBorrowerIDFn(ctx, borrowerID)
	}
	return nil, context.Canceled
}

func (m *Repo) TransitionStatus(ctx context.Context, id uint64, from []domain.Status, to domain.Status) (bool, error) {
	if m.TransitionStatusFn != nil {
		return m.TransitionStatusFn(ctx, id, from, to)
	}
	return false, nil
}
