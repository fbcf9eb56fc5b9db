package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *LoanRequest) error
	GetByLoanID(ctx context.Context, loanID string) (*LoanRequest, error)
	GetByID(ctx context.Context, id uint64) (*LoanRequest, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*LoanRequest, error)
	GetPendingLoanByBorrowerID(ctx context.Context, borrowerID string) (*LoanRequest, error)
	Save(ctx context.Context, l *LoanRequest) error
	// TransitionStatus moves the loan only if it is still in one of from.
	TransitionStatus(ctx context.Context, id uint64, from []Status, to Status) (bool, error)
}
