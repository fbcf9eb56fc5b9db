package accountability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/pkg/id"
)

type CreateBackingInput struct {
	BackerID   string
	BorrowerID string
	// BaseStrength overrides the configured base when non-zero.
	BaseStrength int
}

type BackingDTO struct {
	BackingID      string     `json:"backing_id"`
	BackerID       string     `json:"backer_id"`
	BorrowerID     string     `json:"borrower_id"`
	Status         string     `json:"status"`
	Strength       int        `json:"strength"`
	LoansCompleted int        `json:"loans_completed"`
	LoansDefaulted int        `json:"loans_defaulted"`
	LoansActive    int        `json:"loans_active"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toBackingDTO(b *backing.Backing) *BackingDTO {
	return &BackingDTO{
		BackingID:      b.BackingID,
		BackerID:       b.BackerID,
		BorrowerID:     b.BorrowerID,
		Status:         string(b.Status),
		Strength:       b.Strength,
		LoansCompleted: b.LoansCompleted,
		LoansDefaulted: b.LoansDefaulted,
		LoansActive:    b.LoansActive,
		RevokedAt:      b.RevokedAt,
		CreatedAt:      b.CreatedAt,
	}
}

type EligibilityDTO struct {
	BackerID           string   `json:"backer_id"`
	Eligible           bool     `json:"eligible"`
	Reasons            []string `json:"reasons"`
	SuccessRate        float64  `json:"success_rate"`
	ActiveDefaultCount int      `json:"active_default_count"`
	Locked             bool     `json:"locked"`
	LockedReason       string   `json:"locked_reason,omitempty"`
	// StartingStrength is what a new backing would start at.
	StartingStrength int `json:"starting_strength"`
}

// Eligibility reports every reason the backer cannot create a backing now.
func (e *Engine) Eligibility(ctx context.Context, backerID string) (*EligibilityDTO, error) {
	p, err := e.profile(ctx, backerID)
	if err != nil {
		return nil, err
	}
	st := e.settings.Current(ctx)
	reasons := gateReasons(p, e.now().UTC(), st.MinAccountAge)
	return &EligibilityDTO{
		BackerID:           p.UserID,
		Eligible:           len(reasons) == 0,
		Reasons:            reasons,
		SuccessRate:        p.SuccessRate,
		ActiveDefaultCount: p.ActiveDefaultCount,
		Locked:             p.Locked,
		LockedReason:       p.LockedReason,
		StartingStrength:   ApplyMultiplier(st.BaseStrength, p.SuccessRate),
	}, nil
}

// CreateBacking opens a backing after the eligibility gate. The starting
// strength is the base scaled by the backer's current success rate.
func (e *Engine) CreateBacking(ctx context.Context, in CreateBackingInput) (*BackingDTO, error) {
	in.BackerID, in.BorrowerID = strings.TrimSpace(in.BackerID), strings.TrimSpace(in.BorrowerID)
	if in.BackerID == "" || in.BorrowerID == "" {
		return nil, errors.New("backer and borrower are required")
	}
	if in.BackerID == in.BorrowerID {
		return nil, &IneligibleError{Code: CodeSelfBacking}
	}
	st := e.settings.Current(ctx)
	base := st.BaseStrength
	if in.BaseStrength != 0 {
		base = in.BaseStrength
	}
	if base < backing.MinStrength || base > backing.MaxStrength {
		return nil, &IneligibleError{Code: CodeInvalidStrength}
	}

	p, err := e.profile(ctx, in.BackerID)
	if err != nil {
		return nil, err
	}
	if reasons := gateReasons(p, e.now().UTC(), st.MinAccountAge); len(reasons) > 0 {
		return nil, &IneligibleError{Code: reasons[0]}
	}
	if _, err := e.profile(ctx, in.BorrowerID); err != nil {
		return nil, fmt.Errorf("borrower %s: %w", in.BorrowerID, err)
	}

	var created *backing.Backing
	err = e.uow.WithinTx(ctx, func(r uow.Repos) error {
		// the lock also serializes against outcome processing for this backer
		p, err := r.Profiles.GetByUserIDForUpdate(ctx, in.BackerID)
		if err != nil {
			return err
		}
		if p.Locked {
			return &IneligibleError{Code: CodeBackerLocked}
		}
		_, err = r.Backings.FindActive(ctx, in.BackerID, in.BorrowerID)
		switch {
		case err == nil:
			return &IneligibleError{Code: CodeAlreadyBacking}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		completed, defaulted, err := r.Backings.OutcomeTotals(ctx, in.BackerID)
		if err != nil {
			return err
		}
		b := &backing.Backing{
			BackingID:  id.NewID32(),
			BackerID:   in.BackerID,
			BorrowerID: in.BorrowerID,
			Status:     backing.StatusActive,
			Strength:   ApplyMultiplier(base, SuccessRate(completed, defaulted)),
		}
		if err := r.Backings.Create(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("backing created", "operation", "create_backing", "backing_id", created.BackingID,
		"backer_id", created.BackerID, "borrower_id", created.BorrowerID, "strength", created.Strength)
	e.project(ctx, *created)
	return toBackingDTO(created), nil
}

// RevokeBacking ends a backing at the backer's request. The row and its
// counters stay for audit.
func (e *Engine) RevokeBacking(ctx context.Context, backingID, actorID string) (*BackingDTO, error) {
	b, err := e.repos.Backings.GetByBackingID(ctx, backingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if actorID == "" || b.BackerID != actorID {
		return nil, ErrForbidden
	}
	now := e.now().UTC()
	ok, err := e.repos.Backings.Revoke(ctx, b.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRevoked
	}
	b.Status, b.RevokedAt, b.UpdatedAt = backing.StatusRevoked, &now, now

	e.dispatch(ctx, []notify.Notification{
		notify.New(b.BorrowerID, notify.KindBackingRevoked, notify.UrgencyLow,
			"A backer withdrew their backing",
			"One of the people backing you has withdrawn. Your existing loans are not affected.",
		).With("backing_id", b.BackingID),
	})
	e.project(ctx, *b)
	e.log.Info("backing revoked", "operation", "revoke_backing", "backing_id", b.BackingID, "backer_id", b.BackerID)
	return toBackingDTO(b), nil
}

type TrustEventDTO struct {
	EventID     string    `json:"event_id"`
	Delta       int       `json:"delta"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	LoanID      *string   `json:"loan_id,omitempty"`
	BackingID   *string   `json:"backing_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrustHistory lists the newest ledger rows explaining the subject's score.
func (e *Engine) TrustHistory(ctx context.Context, subjectID string, limit int) ([]TrustEventDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := e.repos.TrustEvents.ListBySubject(ctx, subjectID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TrustEventDTO, 0, len(rows))
	for _, ev := range rows {
		out = append(out, TrustEventDTO{
			EventID:     ev.EventID.String(),
			Delta:       ev.Delta,
			Category:    ev.Category,
			Description: ev.Description,
			LoanID:      ev.LoanID,
			BackingID:   ev.BackingID,
			CreatedAt:   ev.CreatedAt,
		})
	}
	return out, nil
}

func (e *Engine) profile(ctx context.Context, userID string) (*backing.Profile, error) {
	p, err := e.repos.Profiles.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backing.ErrProfileNotFound
	}
	return p, err
}

// gateReasons returns the failing gate codes in a fixed order.
func gateReasons(p *backing.Profile, now time.Time, minAge time.Duration) []string {
	reasons := []string{}
	if now.Sub(p.CreatedAt) < minAge {
		reasons = append(reasons, CodeAccountTooNew)
	}
	if len(strings.TrimSpace(p.DisplayName)) < 2 {
		reasons = append(reasons, CodeDisplayNameRequired)
	}
	if p.Locked {
		reasons = append(reasons, CodeBackerLocked)
	}
	return reasons
}
