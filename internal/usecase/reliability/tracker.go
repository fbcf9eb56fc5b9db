package reliability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
)

// Reasons a lender cannot take a given loan.
const (
	ReasonNoPreferences       = "no_lender_preferences"
	ReasonInsufficientCapital = "insufficient_capital"
	ReasonBelowMinimum        = "amount_below_minimum"
	ReasonAboveMaximum        = "amount_above_maximum"
)

// Tracker keeps lender capital and responsiveness statistics. Every method
// takes the repository to write through so callers can pass a tx-bound one.
type Tracker struct {
	log *slog.Logger
}

func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{log: log.With("module", "reliability")}
}

// Available is the unreserved part of the capital pool.
func Available(p *lender.Preference) decimal.Decimal { return p.Available() }

// Eligible returns "" when p can fund amount, else the reason it cannot.
func Eligible(p *lender.Preference, amount decimal.Decimal) string {
	switch {
	case p == nil:
		return ReasonNoPreferences
	case p.Available().LessThan(amount):
		return ReasonInsufficientCapital
	case p.MinLoanAmount.IsPositive() && amount.LessThan(p.MinLoanAmount):
		return ReasonBelowMinimum
	case p.MaxLoanAmount.IsPositive() && amount.GreaterThan(p.MaxLoanAmount):
		return ReasonAboveMaximum
	}
	return ""
}

// RecordAcceptance reserves amount and bumps the funded counters. The
// acceptance rate is not touched.
func (t *Tracker) RecordAcceptance(ctx context.Context, repo lender.Repository, prefID uint64, amount decimal.Decimal) error {
	if err := repo.RecordAcceptance(ctx, prefID, amount); err != nil {
		return fmt.Errorf("record acceptance for lender %d: %w", prefID, err)
	}
	return nil
}

func (t *Tracker) RecordDecline(ctx context.Context, repo lender.Repository, c offer.Candidate) error {
	return t.recordNonAcceptance(ctx, repo, c, lender.CounterDeclines)
}

// RecordMissedResponse treats an expired offer as a soft decline.
func (t *Tracker) RecordMissedResponse(ctx context.Context, repo lender.Repository, c offer.Candidate) error {
	return t.recordNonAcceptance(ctx, repo, c, lender.CounterMissedResponses)
}

func (t *Tracker) recordNonAcceptance(ctx context.Context, repo lender.Repository, c offer.Candidate, counter string) error {
	p, err := repo.GetByCandidate(ctx, c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// candidates without preferences have no statistic to dilute
		t.log.Debug("no lender preferences; skipping penalty", "candidate", offer.Key(c), "counter", counter)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lender %s: %w", offer.Key(c), err)
	}
	if err := repo.RecordNonAcceptance(ctx, p.ID, counter); err != nil {
		return fmt.Errorf("record %s for lender %s: %w", counter, offer.Key(c), err)
	}
	return nil
}

// ReleaseCapital gives back the reservation held for l by its lender. The
// caller owns idempotency by releasing only after winning the loan's status
// transition out of active.
func (t *Tracker) ReleaseCapital(ctx context.Context, repo lender.Repository, l *loan.LoanRequest) error {
	if !l.Assigned() {
		return nil
	}
	c, err := offer.NewCandidate(offer.CandidateKind(*l.LenderKind), *l.LenderRef)
	if err != nil {
		return fmt.Errorf("loan %s lender: %w", l.LoanID, err)
	}
	p, err := repo.GetByCandidate(ctx, c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t.log.Warn("lender preferences missing on release", "loan_id", l.LoanID, "candidate", offer.Key(c))
		return nil
	}
	if err != nil {
		return err
	}
	if err := repo.ReleaseCapital(ctx, p.ID, l.Amount); err != nil {
		return fmt.Errorf("release capital for loan %s: %w", l.LoanID, err)
	}
	t.log.Info("capital released", "loan_id", l.LoanID, "candidate", offer.Key(c), "amount", l.Amount.String())
	return nil
}
