package uowmock

import (
	"context"
	"errors"
	"testing"

	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/testutil/lendermock"
	"peerlend-backend/internal/testutil/loanmock"
)

func TestUoW_WithinTx_Happy(t *testing.T) {
	ctx := context.Background()

	loans := &loanmock.Repo{}
	lenders := &lendermock.Repo{}
	repos := uow.Repos{Loans: loans, Lenders: lenders}

	innerCalled := false
	m := &UoW{
		WithinTxFn: func(gotCtx context.Context, fn func(r uow.Repos) error) error {
			if gotCtx != ctx {
				t.Fatalf("WithinTx: ctx mismatch")
			}
			return fn(repos)
		},
	}

	err := m.WithinTx(ctx, func(r uow.Repos) error {
		innerCalled = true
		if r.Loans != loans || r.Lenders != lenders {
			t.Fatalf("WithinTx: repos not forwarded correctly")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: unexpected err: %v", err)
	}
	if !innerCalled {
		t.Fatalf("WithinTx: inner fn not called")
	}
}

func TestUoW_WithinTx_PropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	m := New().WithWithinTx(func(context.Context, func(uow.Repos) error) error { return sentinel })
	if err := m.WithinTx(context.Background(), func(uow.Repos) error { return nil }); !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: want %v, got %v", sentinel, err)
	}
}

func TestUoW_Defaults_Unimplemented(t *testing.T) {
	ctx := context.Background()
	m := &UoW{}
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx default: want errUnimplemented, got %v", err)
	}
	if err := m.WithinLoanTx(ctx, 1, func(uow.Repos, *loan.LoanRequest) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinLoanTx default: want errUnimplemented, got %v", err)
	}
}

func TestPassthrough_LocksLoanThenRuns(t *testing.T) {
	ctx := context.Background()
	locked := &loan.LoanRequest{ID: 7, LoanID: "LN-7"}
	loans := &loanmock.Repo{
		GetByIDForUpdateFn: func(ctx context.Context, id uint64) (*loan.LoanRequest, error) {
			if id != 7 {
				t.Fatalf("unexpected id %d", id)
			}
			return locked, nil
		},
	}
	m := Passthrough(uow.Repos{Loans: loans})

	var got *loan.LoanRequest
	if err := m.WithinLoanTx(ctx, 7, func(r uow.Repos, l *loan.LoanRequest) error {
		got = l
		return nil
	}); err != nil {
		t.Fatalf("WithinLoanTx: %v", err)
	}
	if got != locked {
		t.Fatalf("WithinLoanTx: loan not forwarded")
	}

	m.Reset()
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("Reset: want errUnimplemented, got %v", err)
	}
}
