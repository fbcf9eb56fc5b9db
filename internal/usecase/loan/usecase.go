package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/usecase/accountability"
	"peerlend-backend/internal/usecase/matching"
	"peerlend-backend/internal/usecase/reliability"
	"peerlend-backend/pkg/id"
)

var ErrInvalidInput = errors.New("invalid input")

// OutcomeHooks receives the borrower-level consequences of a loan outcome.
type OutcomeHooks interface {
	OnBorrowerLoanCompleted(ctx context.Context, borrowerID, loanID string) (*accountability.Result, error)
	OnBorrowerLoanDefaulted(ctx context.Context, borrowerID, loanID string) (*accountability.Result, error)
	OnBorrowerDefaultResolved(ctx context.Context, borrowerID, loanID string) (*accountability.Result, error)
}

type Usecase struct {
	repos   uow.Repos
	uow     uow.UnitOfWork
	tracker *reliability.Tracker
	hooks   OutcomeHooks
	log     *slog.Logger
}

// NewUsecase: repos for reads, tx for transitions. tx, tracker and hooks
// may be nil when only Create/Get are needed.
func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, tracker *reliability.Tracker, hooks OutcomeHooks, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{repos: repos, uow: tx, tracker: tracker, hooks: hooks, log: log.With("module", "loan")}
}

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	if len(in.BorrowerID) != 32 || !in.Amount.IsPositive() {
		return nil, ErrInvalidInput
	}
	if in.TermMonths == 0 {
		in.TermMonths = 12
	}
	if in.TermMonths < 1 || in.TermMonths > 60 {
		return nil, fmt.Errorf("%w: term_months must be 1-60", ErrInvalidInput)
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if len(in.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be ISO 4217", ErrInvalidInput)
	}

	// Block if the borrower already has a pending loan.
	pending, err := u.repos.Loans.GetPendingLoanByBorrowerID(ctx, in.BorrowerID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: borrower %s already has a pending loan: %s", loan.ErrPendingExists, in.BorrowerID, pending.LoanID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	l := &loan.LoanRequest{
		LoanID:          id.NewID32(),
		BorrowerID:      in.BorrowerID,
		BorrowerTier:    strings.TrimSpace(in.BorrowerTier),
		Amount:          in.Amount.Round(2),
		Currency:        in.Currency,
		TermMonths:      in.TermMonths,
		Purpose:         strings.TrimSpace(in.Purpose),
		Status:          loan.StatusPending,
		StatusUpdatedAt: time.Now().UTC(),
	}
	if err := u.repos.Loans.Create(ctx, l); err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.repos.Loans.GetByLoanID(ctx, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

// ListOffers returns the loan's offers in cascade order.
func (u *Usecase) ListOffers(ctx context.Context, loanID string) ([]*matching.OfferDTO, error) {
	l, err := u.repos.Loans.GetByLoanID(ctx, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	offers, err := u.repos.Offers.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*matching.OfferDTO, 0, len(offers))
	for _, o := range offers {
		out = append(out, matching.ToOfferDTO(o, l.LoanID))
	}
	return out, nil
}

type transition struct {
	from    loan.Status
	to      loan.Status
	release bool
}

var transitions = map[Event]transition{
	EventCompleted:       {from: loan.StatusActive, to: loan.StatusCompleted, release: true},
	EventDefaulted:       {from: loan.StatusActive, to: loan.StatusDefaulted},
	EventDefaultResolved: {from: loan.StatusDefaulted, to: loan.StatusCompleted, release: true},
	EventWrittenOff:      {from: loan.StatusDefaulted, to: loan.StatusWrittenOff, release: true},
}

// Transition applies a servicing event: the status move and any capital
// release commit together, then the accountability hook runs once for the
// transition this call won.
func (u *Usecase) Transition(ctx context.Context, loanID string, ev Event) (*TransitionResult, error) {
	tr, ok := transitions[ev]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidInput, ev)
	}
	if u.uow == nil {
		return nil, loan.ErrInvalidTransition
	}
	l0, err := u.repos.Loans.GetByLoanID(ctx, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var dto *LoanDTO
	err = u.uow.WithinLoanTx(ctx, l0.ID, func(r uow.Repos, l *loan.LoanRequest) error {
		// State guard
		if l.Status != tr.from {
			return fmt.Errorf("%w: %s loan cannot become %s", loan.ErrInvalidTransition, l.Status, tr.to)
		}
		won, err := r.Loans.TransitionStatus(ctx, l.ID, []loan.Status{tr.from}, tr.to)
		if err != nil {
			return err
		}
		if !won {
			return loan.ErrInvalidTransition
		}
		l.Status = tr.to
		if tr.release && u.tracker != nil {
			if err := u.tracker.ReleaseCapital(ctx, r.Lenders, l); err != nil {
				return err
			}
		}
		dto = toDTO(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("loan transitioned", "operation", "transition", "loan_id", loanID, "event", string(ev), "status", dto.Status)

	res := &TransitionResult{Loan: dto}
	if u.hooks == nil {
		return res, nil
	}
	var hook func(context.Context, string, string) (*accountability.Result, error)
	switch ev {
	case EventCompleted:
		hook = u.hooks.OnBorrowerLoanCompleted
	case EventDefaulted:
		hook = u.hooks.OnBorrowerLoanDefaulted
	case EventDefaultResolved:
		hook = u.hooks.OnBorrowerDefaultResolved
	default:
		return res, nil
	}
	out, err := hook(ctx, dto.BorrowerID, dto.LoanID)
	if err != nil {
		// the status change is committed; surface the hook failure with it
		return res, fmt.Errorf("accountability for loan %s: %w", loanID, err)
	}
	res.Accountability = out
	return res, nil
}

func toDTO(l *loan.LoanRequest) *LoanDTO {
	dto := &LoanDTO{
		LoanID:       l.LoanID,
		BorrowerID:   l.BorrowerID,
		BorrowerTier: l.BorrowerTier,
		Amount:       l.Amount,
		Currency:     l.Currency,
		TermMonths:   l.TermMonths,
		Purpose:      l.Purpose,
		Status:       string(l.Status),
		MatchedAt:    l.MatchedAt,
		CreatedAt:    l.CreatedAt,
	}
	if l.Assigned() {
		dto.LenderKind, dto.LenderRef = *l.LenderKind, *l.LenderRef
		rate, total, monthly := l.InterestRate, l.TotalRepayment, l.MonthlyPayment
		dto.InterestRate, dto.TotalRepayment, dto.MonthlyPayment = &rate, &total, &monthly
	}
	return dto
}
