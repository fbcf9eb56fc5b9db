package uow

import (
	"context"

	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
)

// Repos are bound to the same transaction.
type Repos struct {
	Loans       loan.Repository
	Offers      offer.Repository
	Lenders     lender.Repository
	Backings    backing.Repository
	Profiles    backing.ProfileRepository
	TrustEvents backing.TrustEventRepository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.LoanRequest) error) error
}
