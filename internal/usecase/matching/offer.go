package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/usecase/reliability"
	"peerlend-backend/pkg/id"
)

const maxDeclineReason = 500

// Accept binds the offer's candidate to the loan. Refusals are *Error values:
// not_found, forbidden, already_resolved (with State), expired, ineligible.
// An offer found past its expiry is committed as expired before ErrExpired
// is returned.
func (e *Engine) Accept(ctx context.Context, offerID, actorID string) (*OfferDTO, error) {
	var dto *OfferDTO
	err := e.respond(ctx, offerID, actorID, func(r uow.Repos, l *loan.LoanRequest, o *offer.Offer, box *outbox) error {
		if err := e.acceptLocked(ctx, r, l, o, false, box); err != nil {
			return err
		}
		e.log.Info("offer accepted", "operation", "accept", "offer_id", o.OfferID, "loan_id", l.LoanID, "actor", actorID)
		dto = ToOfferDTO(o, l.LoanID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// Decline records the candidate's refusal and advances the loan to the next
// ranked candidate in the same transaction.
func (e *Engine) Decline(ctx context.Context, offerID, actorID, reason string) (*OfferDTO, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxDeclineReason {
		return nil, invalid("reason_too_long")
	}
	var dto *OfferDTO
	err := e.respond(ctx, offerID, actorID, func(r uow.Repos, l *loan.LoanRequest, o *offer.Offer, box *outbox) error {
		now := e.clock()
		won, err := r.Offers.TransitionFromPending(ctx, o.ID, offer.Resolution{
			Status:        offer.StatusDeclined,
			RespondedAt:   now,
			DeclineReason: reason,
		})
		if err != nil {
			return err
		}
		if !won {
			return e.lostRace(ctx, r, o.ID)
		}
		o.Status, o.RespondedAt, o.DeclineReason = offer.StatusDeclined, &now, reason
		observeResolved(offer.StatusDeclined)

		c, err := o.Candidate()
		if err != nil {
			return err
		}
		if err := e.tracker.RecordDecline(ctx, r.Lenders, c); err != nil {
			return err
		}
		if _, _, err := e.advanceLocked(ctx, r, l, e.settings.Current(ctx), box); err != nil {
			return fmt.Errorf("advance after decline: %w", err)
		}
		e.log.Info("offer declined", "operation", "decline", "offer_id", o.OfferID, "loan_id", l.LoanID, "actor", actorID)
		dto = ToOfferDTO(o, l.LoanID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// respond runs the shared guard sequence for a candidate's response:
// not found, forbidden, already resolved, expired.
func (e *Engine) respond(ctx context.Context, offerID, actorID string, fn func(r uow.Repos, l *loan.LoanRequest, o *offer.Offer, box *outbox) error) error {
	o, err := e.repos.Offers.GetByOfferID(ctx, offerID)
	if err != nil {
		return notFound(err)
	}
	c, err := o.Candidate()
	if err != nil {
		return err
	}
	if err := authorize(ctx, e.repos.Lenders, c, actorID); err != nil {
		return err
	}

	var box outbox
	expired := false
	err = e.uow.WithinLoanTx(ctx, o.LoanID, func(r uow.Repos, l *loan.LoanRequest) error {
		// re-read under the loan lock; the first read may be stale
		cur, err := r.Offers.GetByID(ctx, o.ID)
		if err != nil {
			return notFound(err)
		}
		if cur.Status.Terminal() {
			return alreadyResolved(cur.Status)
		}
		if cur.ExpiredAt(e.clock()) {
			expired = true
			if _, err := e.expireLocked(ctx, r, cur); err != nil {
				return err
			}
			_, _, err := e.advanceLocked(ctx, r, l, e.settings.Current(ctx), &box)
			return err
		}
		return fn(r, l, cur, &box)
	})
	if err != nil {
		return notFound(err)
	}
	e.flush(ctx, box)
	if expired {
		return ErrExpired
	}
	return nil
}

// ClaimOpenLoan lets a lender self-select an open loan. The candidate's row
// is reused when it is still pending, otherwise one is synthesized after the
// loan's last rank, and it then goes through the regular accept path.
func (e *Engine) ClaimOpenLoan(ctx context.Context, loanID, actorID string, c offer.Candidate) (*OfferDTO, error) {
	if c == nil || c.Ref() == "" {
		return nil, invalid("candidate_required")
	}
	l0, err := e.repos.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := authorize(ctx, e.repos.Lenders, c, actorID); err != nil {
		return nil, err
	}

	var (
		dto *OfferDTO
		box outbox
	)
	err = e.uow.WithinLoanTx(ctx, l0.ID, func(r uow.Repos, l *loan.LoanRequest) error {
		if !l.Status.Open() || l.Assigned() {
			return ineligible(ReasonLoanNotOpen)
		}
		pref, err := preference(ctx, r.Lenders, c)
		if err != nil {
			return err
		}
		if reason := reliability.Eligible(pref, l.Amount); reason != "" {
			return ineligible(reason)
		}

		now := e.clock()
		var target *offer.Offer
		existing, err := r.Offers.FindByCandidate(ctx, l.ID, c)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case existing.Status == offer.StatusDeclined:
			return ineligible(ReasonPreviouslyDeclined)
		case existing.Status.Accepting():
			return alreadyResolved(existing.Status)
		case existing.Status == offer.StatusPending && !existing.ExpiredAt(now):
			target = existing
		case existing.Status == offer.StatusPending:
			// their presented window lapsed; count it before claiming anew
			if _, err := e.expireLocked(ctx, r, existing); err != nil {
				return err
			}
		}

		if target == nil {
			maxRank, err := r.Offers.MaxRank(ctx, l.ID)
			if err != nil {
				return err
			}
			target = &offer.Offer{
				OfferID: id.NewID32(),
				LoanID:  l.ID,
				Rank:    maxRank + 1,
				Status:  offer.StatusPending,
				Source:  offer.SourceSelfSelected,
			}
			target.SetCandidate(c)
			if err := r.Offers.CreateBatch(ctx, []*offer.Offer{target}); err != nil {
				return err
			}
		}

		if err := e.acceptLocked(ctx, r, l, target, false, &box); err != nil {
			return err
		}
		e.log.Info("open loan claimed", "operation", "claim", "offer_id", target.OfferID, "loan_id", l.LoanID, "actor", actorID)
		dto = ToOfferDTO(target, l.LoanID)
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	e.flush(ctx, box)
	return dto, nil
}

// acceptLocked is the only acceptance path. It must run inside the loan's
// unit of work; every check happens before the first write.
func (e *Engine) acceptLocked(ctx context.Context, r uow.Repos, l *loan.LoanRequest, o *offer.Offer, auto bool, box *outbox) error {
	if !l.Status.Open() || l.Assigned() {
		return ineligible(ReasonLoanNotOpen)
	}
	c, err := o.Candidate()
	if err != nil {
		return err
	}
	pref, err := preference(ctx, r.Lenders, c)
	if err != nil {
		return err
	}
	if reason := reliability.Eligible(pref, l.Amount); reason != "" {
		return ineligible(reason)
	}

	now := e.clock()
	status := offer.StatusAccepted
	if auto {
		status = offer.StatusAutoAccepted
	}
	won, err := r.Offers.TransitionFromPending(ctx, o.ID, offer.Resolution{
		Status:       status,
		RespondedAt:  now,
		AutoAccepted: auto,
	})
	if err != nil {
		return err
	}
	if !won {
		return e.lostRace(ctx, r, o.ID)
	}
	o.Status, o.RespondedAt, o.AutoAccepted = status, &now, auto

	skipped, err := r.Offers.SkipPendingSiblings(ctx, l.ID, o.ID, now)
	if err != nil {
		return fmt.Errorf("skip siblings: %w", err)
	}

	rate := pref.RateFor(l.BorrowerTier)
	total, monthly := Terms(l.Amount, rate, l.TermMonths)
	kind, ref := string(c.Kind()), c.Ref()
	offerPK := o.ID
	l.Status = loan.StatusActive
	l.LenderKind, l.LenderRef = &kind, &ref
	l.InterestRate, l.TotalRepayment, l.MonthlyPayment = rate, total, monthly
	l.MatchedAt = &now
	l.CurrentOfferID = &offerPK
	l.StatusUpdatedAt = now
	if err := r.Loans.Save(ctx, l); err != nil {
		return err
	}

	if err := e.tracker.RecordAcceptance(ctx, r.Lenders, pref.ID, l.Amount); err != nil {
		return err
	}
	if _, err := r.Backings.IncrementActiveForBorrower(ctx, l.BorrowerID); err != nil {
		return fmt.Errorf("bump backings: %w", err)
	}

	subject := offer.Key(c)
	loanRef := l.LoanID
	if err := r.TrustEvents.Append(ctx, &backing.TrustEvent{
		SubjectID:   subject,
		Delta:       1,
		Category:    backing.CategoryOfferAccepted,
		Description: fmt.Sprintf("Funded loan %s (%s %s)", l.LoanID, l.Amount.StringFixed(2), l.Currency),
		LoanID:      &loanRef,
	}); err != nil {
		return err
	}
	if ind, ok := c.(offer.IndividualCandidate); ok {
		if err := r.Profiles.AdjustTrustScore(ctx, ind.UserID, 1); err != nil {
			return err
		}
	}

	box.add(notify.New(l.BorrowerID, notify.KindLoanMatched, notify.UrgencyNormal,
		"Your loan has been matched",
		fmt.Sprintf("A lender accepted your request for %s %s at %s%% (total %s).",
			l.Amount.StringFixed(2), l.Currency, rate.String(), total.StringFixed(2)),
	).WithEmail().With("loan_id", l.LoanID).With("offer_id", o.OfferID))
	box.add(notify.New(subject, notify.KindOfferAccepted, notify.UrgencyNormal,
		"Offer accepted",
		fmt.Sprintf("You are now funding loan %s for %s %s.", l.LoanID, l.Amount.StringFixed(2), l.Currency),
	).With("loan_id", l.LoanID).With("offer_id", o.OfferID).With("auto_accepted", fmt.Sprint(auto)))

	observeResolved(status)
	e.log.Debug("acceptance applied", "loan_id", l.LoanID, "offer_id", o.OfferID, "status", status, "skipped", skipped)
	return nil
}

// expireLocked closes a pending offer as expired and penalizes the lender.
// It reports whether this caller performed the transition.
func (e *Engine) expireLocked(ctx context.Context, r uow.Repos, o *offer.Offer) (bool, error) {
	won, err := r.Offers.TransitionFromPending(ctx, o.ID, offer.Resolution{Status: offer.StatusExpired})
	if err != nil || !won {
		return false, err
	}
	o.Status = offer.StatusExpired
	observeResolved(offer.StatusExpired)
	c, err := o.Candidate()
	if err != nil {
		return true, err
	}
	if err := e.tracker.RecordMissedResponse(ctx, r.Lenders, c); err != nil {
		return true, err
	}
	return true, nil
}

func (e *Engine) lostRace(ctx context.Context, r uow.Repos, offerPK uint64) error {
	cur, err := r.Offers.GetByID(ctx, offerPK)
	if err != nil {
		return err
	}
	return alreadyResolved(cur.Status)
}
