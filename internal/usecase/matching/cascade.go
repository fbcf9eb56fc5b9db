package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/infrastructure/metrics"
	"peerlend-backend/internal/usecase/settings"
	"peerlend-backend/pkg/id"
)

const sweepLeaseKey = "cascade:sweep"

type step int

const (
	stepNone step = iota
	stepWaiting
	stepPresented
	stepAutoAccepted
	stepNoMatch
)

func (s step) String() string {
	switch s {
	case stepWaiting:
		return "waiting"
	case stepPresented:
		return "presented"
	case stepAutoAccepted:
		return "auto_accepted"
	case stepNoMatch:
		return "no_match"
	}
	return "none"
}

// StartMatching stores the ranked candidates for a pending loan and presents
// the first one. Ranks follow input order starting at 1.
func (e *Engine) StartMatching(ctx context.Context, loanID string, ranked []RankedCandidate) (*MatchingDTO, error) {
	if len(ranked) == 0 {
		return nil, invalid("no_candidates")
	}
	seen := make(map[string]struct{}, len(ranked))
	for _, rc := range ranked {
		if rc.Candidate == nil || rc.Candidate.Ref() == "" {
			return nil, invalid("invalid_candidate")
		}
		k := string(rc.Candidate.Kind()) + ":" + rc.Candidate.Ref()
		if _, dup := seen[k]; dup {
			return nil, invalid("duplicate_candidate")
		}
		seen[k] = struct{}{}
	}

	l0, err := e.repos.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, notFound(err)
	}

	var (
		dto *MatchingDTO
		box outbox
	)
	err = e.uow.WithinLoanTx(ctx, l0.ID, func(r uow.Repos, l *loan.LoanRequest) error {
		if l.Status != loan.StatusPending || l.Assigned() {
			return ineligible(ReasonLoanNotOpen)
		}
		existing, err := r.Offers.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ineligible(ReasonMatchingStarted)
		}

		batch := make([]*offer.Offer, 0, len(ranked))
		for i, rc := range ranked {
			o := &offer.Offer{
				OfferID: id.NewID32(),
				LoanID:  l.ID,
				Rank:    i + 1,
				Score:   rc.Score,
				Status:  offer.StatusPending,
				Source:  offer.SourceRanking,
			}
			o.SetCandidate(rc.Candidate)
			batch = append(batch, o)
		}
		if err := r.Offers.CreateBatch(ctx, batch); err != nil {
			return err
		}

		s, _, err := e.advanceLocked(ctx, r, l, e.settings.Current(ctx), &box)
		if err != nil {
			return err
		}
		offers, err := r.Offers.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		e.log.Info("matching started", "operation", "start_matching", "loan_id", l.LoanID, "candidates", len(batch), "outcome", s.String())
		dto = toMatchingDTO(l, offers)
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	e.flush(ctx, box)
	return dto, nil
}

// Advance runs one cascade step for the loan outside a sweep.
func (e *Engine) Advance(ctx context.Context, loanID string) (*MatchingDTO, error) {
	l0, err := e.repos.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, notFound(err)
	}
	var (
		dto *MatchingDTO
		box outbox
	)
	err = e.uow.WithinLoanTx(ctx, l0.ID, func(r uow.Repos, l *loan.LoanRequest) error {
		if _, _, err := e.advanceLocked(ctx, r, l, e.settings.Current(ctx), &box); err != nil {
			return err
		}
		offers, err := r.Offers.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		dto = toMatchingDTO(l, offers)
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	e.flush(ctx, box)
	return dto, nil
}

// Sweep expires every pending offer whose window elapsed and cascades the
// affected loans. Each loan runs in its own transaction; a failing loan is
// reported in the result and the batch continues.
func (e *Engine) Sweep(ctx context.Context) (*SweepResult, error) {
	started := time.Now()
	if e.lease != nil {
		release, ok, err := e.lease.Acquire(ctx, sweepLeaseKey, e.leaseTTL)
		if err != nil {
			metrics.Engine().Sweep("error", time.Since(started).Seconds())
			return nil, fmt.Errorf("acquire sweep lease: %w", err)
		}
		if !ok {
			metrics.Engine().Sweep("skipped", time.Since(started).Seconds())
			return nil, ErrSweepInProgress
		}
		defer release(context.WithoutCancel(ctx))
	}

	st := e.settings.Current(ctx)
	now := e.clock()
	due, err := e.repos.Offers.ListExpiredPending(ctx, now, st.SweepBatchSize)
	if err != nil {
		metrics.Engine().Sweep("error", time.Since(started).Seconds())
		return nil, fmt.Errorf("list expired offers: %w", err)
	}

	byLoan := make(map[uint64][]uint64)
	for _, o := range due {
		byLoan[o.LoanID] = append(byLoan[o.LoanID], o.ID)
	}
	loans := make([]uint64, 0, len(byLoan))
	for loanPK := range byLoan {
		loans = append(loans, loanPK)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i] < loans[j] })

	res := &SweepResult{Errors: []LoanError{}}
	for _, loanPK := range loans {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, LoanError{LoanID: strconv.FormatUint(loanPK, 10), Error: err.Error()})
			continue
		}
		e.sweepLoan(ctx, loanPK, byLoan[loanPK], now, st, res)
	}

	outcome := "ok"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	metrics.Engine().Sweep(outcome, time.Since(started).Seconds())
	e.log.Info("cascade sweep finished",
		"operation", "sweep",
		"outcome", outcome,
		"loans", len(loans),
		"offers_expired", res.OffersExpired,
		"cascades", res.Cascades,
		"unmatched", res.Unmatched,
		"auto_accepted", res.AutoAccepted,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (e *Engine) sweepLoan(ctx context.Context, loanPK uint64, offerIDs []uint64, now time.Time, st settings.Settings, res *SweepResult) {
	var (
		box      outbox
		expired  int
		result   step
		publicID string
	)
	err := e.uow.WithinLoanTx(ctx, loanPK, func(r uow.Repos, l *loan.LoanRequest) error {
		publicID = l.LoanID
		for _, offerPK := range offerIDs {
			o, err := r.Offers.GetByID(ctx, offerPK)
			if err != nil {
				return err
			}
			// a concurrent response may have resolved it since the listing
			if o.Status != offer.StatusPending || !o.ExpiredAt(now) {
				continue
			}
			won, err := e.expireLocked(ctx, r, o)
			if err != nil {
				return err
			}
			if won {
				expired++
			}
		}
		s, n, err := e.advanceLocked(ctx, r, l, st, &box)
		if err != nil {
			return err
		}
		expired += n
		result = s
		return nil
	})
	if err != nil {
		if publicID == "" {
			publicID = strconv.FormatUint(loanPK, 10)
		}
		e.log.Error("cascade failed for loan", "operation", "sweep", "loan_id", publicID, "error", err)
		res.Errors = append(res.Errors, LoanError{LoanID: publicID, Error: err.Error()})
		return
	}

	res.OffersExpired += expired
	switch result {
	case stepPresented:
		res.Cascades++
	case stepAutoAccepted:
		res.Cascades++
		res.AutoAccepted++
	case stepNoMatch:
		res.Unmatched++
	}
	e.flush(ctx, box)
}

// advanceLocked presents the loan's next surviving candidate, auto-accepting
// when the candidate's policy allows it, or marks the loan no_match when none
// is left. It is a no-op for loans that are not pending and for loans whose
// current offer is still inside its window. The returned count is offers
// expired on the way.
func (e *Engine) advanceLocked(ctx context.Context, r uow.Repos, l *loan.LoanRequest, st settings.Settings, box *outbox) (step, int, error) {
	expired := 0
	for {
		if l.Status != loan.StatusPending {
			return stepNone, expired, nil
		}
		now := e.clock()
		next, err := r.Offers.NextPending(ctx, l.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := e.markNoMatch(ctx, r, l, now, box); err != nil {
				return stepNone, expired, err
			}
			metrics.Engine().CascadeStep(stepNoMatch.String())
			return stepNoMatch, expired, nil
		}
		if err != nil {
			return stepNone, expired, err
		}

		if next.ExpiredAt(now) {
			won, err := e.expireLocked(ctx, r, next)
			if err != nil {
				return stepNone, expired, err
			}
			if won {
				expired++
			}
			continue
		}

		if next.ExpiresAt != nil {
			// already presented and still inside its window
			if l.CurrentOfferID == nil || *l.CurrentOfferID != next.ID {
				pk := next.ID
				l.CurrentOfferID = &pk
				if err := r.Loans.Save(ctx, l); err != nil {
					return stepNone, expired, err
				}
			}
			return stepWaiting, expired, nil
		}

		if st.AutoAcceptEnabled {
			c, err := next.Candidate()
			if err != nil {
				return stepNone, expired, err
			}
			pref, err := preference(ctx, r.Lenders, c)
			if err != nil {
				return stepNone, expired, err
			}
			if pref != nil && pref.AutoAccept {
				err := e.acceptLocked(ctx, r, l, next, true, box)
				if err == nil {
					metrics.Engine().CascadeStep(stepAutoAccepted.String())
					e.log.Info("offer auto-accepted", "operation", "advance", "loan_id", l.LoanID, "offer_id", next.OfferID)
					return stepAutoAccepted, expired, nil
				}
				var me *Error
				if !errors.As(err, &me) || me.Code != CodeIneligible {
					return stepNone, expired, err
				}
				e.log.Info("auto-accept lender ineligible; presenting manually",
					"loan_id", l.LoanID, "offer_id", next.OfferID, "reason", me.Reason)
			}
		}

		if err := e.present(ctx, r, l, next, now.Add(st.OfferResponseWindow), box); err != nil {
			return stepNone, expired, err
		}
		metrics.Engine().CascadeStep(stepPresented.String())
		return stepPresented, expired, nil
	}
}

func (e *Engine) present(ctx context.Context, r uow.Repos, l *loan.LoanRequest, o *offer.Offer, expiresAt time.Time, box *outbox) error {
	ok, err := r.Offers.Present(ctx, o.ID, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		return e.lostRace(ctx, r, o.ID)
	}
	o.ExpiresAt = &expiresAt
	pk := o.ID
	l.CurrentOfferID = &pk
	if err := r.Loans.Save(ctx, l); err != nil {
		return err
	}
	c, err := o.Candidate()
	if err != nil {
		return err
	}
	box.add(notify.New(offer.Key(c), notify.KindOfferPresented, notify.UrgencyNormal,
		"A loan request is waiting for you",
		fmt.Sprintf("Loan %s for %s %s is offered to you until %s.",
			l.LoanID, l.Amount.StringFixed(2), l.Currency, expiresAt.Format(time.RFC3339)),
	).WithEmail().With("loan_id", l.LoanID).With("offer_id", o.OfferID).With("expires_at", expiresAt.Format(time.RFC3339)))
	return nil
}

func (e *Engine) markNoMatch(ctx context.Context, r uow.Repos, l *loan.LoanRequest, now time.Time, box *outbox) error {
	l.Status = loan.StatusNoMatch
	l.CurrentOfferID = nil
	l.StatusUpdatedAt = now
	if err := r.Loans.Save(ctx, l); err != nil {
		return err
	}
	box.add(notify.New(l.BorrowerID, notify.KindLoanNoMatch, notify.UrgencyNormal,
		"No lender matched your request",
		fmt.Sprintf("None of the candidate lenders took loan %s. It stays open for lenders to claim.", l.LoanID),
	).WithEmail().With("loan_id", l.LoanID))
	e.log.Info("loan left unmatched", "operation", "advance", "loan_id", l.LoanID)
	return nil
}
