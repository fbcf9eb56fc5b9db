package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "peerlend-backend/internal/domain/loan"
	"peerlend-backend/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func makeLoan(loanID, borrowerID string) *domain.LoanRequest {
	return &domain.LoanRequest{
		LoanID:          loanID,
		BorrowerID:      borrowerID,
		Amount:          decimal.NewFromInt(1_000),
		Currency:        "USD",
		TermMonths:      12,
		Status:          domain.StatusPending,
		StatusUpdatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGetByLoanID(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()   // 32-char
	borrower := id.NewID32() // 32-char

	l := makeLoan(loanID, borrower)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Fatalf("Create did not set auto-increment ID")
	}

	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.LoanID != loanID || got.BorrowerID != borrower {
		t.Errorf("unexpected loan: %+v", got)
	}
	if !got.Amount.Equal(decimal.NewFromInt(1_000)) {
		t.Errorf("amount = %s, want 1000", got.Amount)
	}
	if got.Assigned() {
		t.Errorf("fresh loan must not have a lender")
	}
}

func TestSaveUpdates(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	l := makeLoan(loanID, "dddddddddddddddddddddddddddddddd")

	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	kind, ref := "individual", "llllllllllllllllllllllllllllllll"
	l.LenderKind, l.LenderRef = &kind, &ref
	l.InterestRate = decimal.RequireFromString("7.5")
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if !got.Assigned() || *got.LenderRef != ref {
		t.Errorf("lender not persisted: %+v", got)
	}
	if !got.InterestRate.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("rate = %s", got.InterestRate)
	}
}

func TestGetByLoanID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	_, err := repo.GetByLoanID(ctx, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGetPendingLoanByBorrowerID(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	b1 := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	now := time.Now().UTC()

	seed := func(loanID string, status domain.Status, at time.Time) {
		l := makeLoan(loanID, b1)
		l.Status = status
		l.StatusUpdatedAt = at
		if err := repo.Create(ctx, l); err != nil {
			t.Fatal(err)
		}
	}
	seed("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", domain.StatusActive, now.Add(-3*time.Hour))
	seed("cccccccccccccccccccccccccccccccc", domain.StatusPending, now.Add(-2*time.Hour))
	wantID := "dddddddddddddddddddddddddddddddd"
	seed(wantID, domain.StatusPending, now.Add(-1*time.Hour))

	got, err := repo.GetPendingLoanByBorrowerID(ctx, b1)
	if err != nil {
		t.Fatalf("GetPendingLoanByBorrowerID error: %v", err)
	}
	if got == nil || got.LoanID != wantID || got.Status != domain.StatusPending {
		t.Fatalf("unexpected loan: %+v", got)
	}

	// borrower with no pending
	if _, err := repo.GetPendingLoanByBorrowerID(ctx, "cccccccccccccccccccccccccccccccc"); err == nil {
		t.Fatalf("expected not found for borrower without pending loans")
	}
}

func TestTransitionStatus_Conditional(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	l := makeLoan(id.NewID32(), id.NewID32())
	if err := repo.Create(ctx, l); err != nil {
		t.Fatal(err)
	}

	ok, err := repo.TransitionStatus(ctx, l.ID, []domain.Status{domain.StatusActive}, domain.StatusCompleted)
	if err != nil || ok {
		t.Fatalf("pending loan must not complete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(ctx, l.ID, []domain.Status{domain.StatusPending, domain.StatusNoMatch}, domain.StatusNoMatch)
	if err != nil || !ok {
		t.Fatalf("pending -> no_match: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(ctx, l.ID)
	if got.Status != domain.StatusNoMatch {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestTx_Commit(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	err := repo.Tx(ctx, func(r domain.Repository) error {
		return r.Create(ctx, makeLoan(loanID, "11111111111111111111111111111111"))
	})
	if err != nil {
		t.Fatalf("Tx commit: %v", err)
	}

	// Should be visible after commit
	if _, err := repo.GetByLoanID(ctx, loanID); err != nil {
		t.Fatalf("GetByLoanID after commit: %v", err)
	}
}

func TestTx_Rollback(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	wantErr := errors.New("boom")

	_ = repo.Tx(ctx, func(r domain.Repository) error {
		if err := r.Create(ctx, makeLoan(loanID, "22222222222222222222222222222222")); err != nil {
			return err
		}
		return wantErr // force rollback
	})

	// Should not exist after rollback
	_, err := repo.GetByLoanID(ctx, loanID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found after rollback, got %v", err)
	}
}
