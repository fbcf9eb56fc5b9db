package accountability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/infrastructure/metrics"
	"peerlend-backend/internal/usecase/settings"
)

const (
	deltaCompleted = 2
	deltaDefaulted = -10
)

// Projector mirrors backing edges into the accountability graph. It is
// best-effort and must not block.
type Projector interface {
	Project(ctx context.Context, b backing.Backing)
}

type Engine struct {
	repos     uow.Repos
	uow       uow.UnitOfWork
	settings  settings.Provider
	notifier  notify.Notifier
	projector Projector
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(e *Engine) { e.log = l } }
func WithProjector(p Projector) Option      { return func(e *Engine) { e.projector = p } }

func NewEngine(repos uow.Repos, tx uow.UnitOfWork, s settings.Provider, n notify.Notifier, opts ...Option) *Engine {
	e := &Engine{repos: repos, uow: tx, settings: s, notifier: n, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("module", "accountability")
	return e
}

// Failure is one backing whose outcome could not be applied.
type Failure struct {
	BackingID string `json:"backing_id"`
	BackerID  string `json:"backer_id"`
	Error     string `json:"error"`
}

type Result struct {
	LoanID     string          `json:"loan_id"`
	Outcome    backing.Outcome `json:"outcome"`
	Processed  int             `json:"processed"`
	Duplicates int             `json:"duplicates"`
	Failures   []Failure       `json:"failures"`
}

// Err joins every per-backing failure, nil when all succeeded.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("backing %s: %s", f.BackingID, f.Error))
	}
	return errors.Join(errs...)
}

func (e *Engine) OnBorrowerLoanCompleted(ctx context.Context, borrowerID, loanID string) (*Result, error) {
	return e.propagate(ctx, borrowerID, loanID, backing.OutcomeCompleted)
}

func (e *Engine) OnBorrowerLoanDefaulted(ctx context.Context, borrowerID, loanID string) (*Result, error) {
	return e.propagate(ctx, borrowerID, loanID, backing.OutcomeDefaulted)
}

func (e *Engine) OnBorrowerDefaultResolved(ctx context.Context, borrowerID, loanID string) (*Result, error) {
	return e.propagate(ctx, borrowerID, loanID, backing.OutcomeDefaultResolved)
}

// propagate applies the outcome to every active backing of the borrower,
// each in its own transaction. A failing backing is recorded and the rest
// still run. Only a failure to list the backings is returned as an error.
func (e *Engine) propagate(ctx context.Context, borrowerID, loanID string, outcome backing.Outcome) (*Result, error) {
	if borrowerID == "" || loanID == "" {
		return nil, errors.New("borrower id and loan id are required")
	}
	backings, err := e.repos.Backings.ListActiveByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list backings of %s: %w", borrowerID, err)
	}

	st := e.settings.Current(ctx)
	res := &Result{LoanID: loanID, Outcome: outcome, Failures: []Failure{}}
	for _, b := range backings {
		applied, err := e.processBacking(ctx, b.ID, loanID, outcome, st)
		switch {
		case err != nil:
			res.Failures = append(res.Failures, Failure{BackingID: b.BackingID, BackerID: b.BackerID, Error: err.Error()})
			metrics.Engine().Accountability(string(outcome), "failed")
			e.log.Error("backing outcome failed",
				"operation", string(outcome), "loan_id", loanID, "backing_id", b.BackingID, "backer_id", b.BackerID, "error", err)
		case applied:
			res.Processed++
			metrics.Engine().Accountability(string(outcome), "processed")
		default:
			res.Duplicates++
			metrics.Engine().Accountability(string(outcome), "duplicate")
		}
	}
	e.log.Info("loan outcome propagated",
		"operation", string(outcome), "borrower_id", borrowerID, "loan_id", loanID,
		"processed", res.Processed, "duplicates", res.Duplicates, "failures", len(res.Failures))
	return res, nil
}

// processBacking reports false when the outcome was already applied to this
// backing or the backing is no longer active.
func (e *Engine) processBacking(ctx context.Context, backingPK uint64, loanID string, outcome backing.Outcome, st settings.Settings) (bool, error) {
	var (
		notes    []notify.Notification
		snapshot backing.Backing
	)
	applied := false
	err := e.uow.WithinTx(ctx, func(r uow.Repos) error {
		b, err := r.Backings.GetByIDForUpdate(ctx, backingPK)
		if err != nil {
			return err
		}
		if b.Status != backing.StatusActive {
			return nil
		}
		inserted, err := r.Backings.RecordOutcome(ctx, &backing.OutcomeRecord{BackingID: b.ID, LoanID: loanID, Outcome: outcome})
		if err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		if !inserted {
			return nil
		}
		p, err := r.Profiles.GetByUserIDForUpdate(ctx, b.BackerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return backing.ErrProfileNotFound
		}
		if err != nil {
			return err
		}

		switch outcome {
		case backing.OutcomeCompleted:
			notes, err = e.applyCompleted(ctx, r, b, loanID)
		case backing.OutcomeDefaulted:
			notes, err = e.applyDefaulted(ctx, r, b, p, loanID, st.LockThreshold)
		case backing.OutcomeDefaultResolved:
			notes, err = e.applyDefaultResolved(ctx, r, b, p, loanID, st.LockThreshold)
		default:
			err = fmt.Errorf("unknown outcome %q", outcome)
		}
		if err != nil {
			return err
		}
		applied = true
		snapshot = *b
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		e.dispatch(ctx, notes)
		e.project(ctx, snapshot)
	}
	return applied, nil
}

func (e *Engine) applyCompleted(ctx context.Context, r uow.Repos, b *backing.Backing, loanID string) ([]notify.Notification, error) {
	if err := r.Backings.ApplyOutcomeCounters(ctx, b.ID, backing.OutcomeCompleted); err != nil {
		return nil, err
	}
	b.LoansCompleted++
	b.LoansActive = max(b.LoansActive-1, 0)

	rate, err := e.refreshSuccessRate(ctx, r, b.BackerID)
	if err != nil {
		return nil, err
	}
	if err := e.appendTrust(ctx, r, b, loanID, deltaCompleted, backing.CategoryBackedLoanCompleted,
		fmt.Sprintf("A loan you backed (%s) was repaid in full", loanID)); err != nil {
		return nil, err
	}

	n := notify.New(b.BackerID, notify.KindBackedCompleted, notify.UrgencyLow,
		"A loan you backed was repaid",
		fmt.Sprintf("Loan %s was completed. Your success rate is now %.0f%%.", loanID, rate),
	).With("loan_id", loanID).With("backing_id", b.BackingID)
	return []notify.Notification{n}, nil
}

func (e *Engine) applyDefaulted(ctx context.Context, r uow.Repos, b *backing.Backing, p *backing.Profile, loanID string, threshold int) ([]notify.Notification, error) {
	if err := r.Backings.ApplyOutcomeCounters(ctx, b.ID, backing.OutcomeDefaulted); err != nil {
		return nil, err
	}
	b.LoansDefaulted++
	b.LoansActive = max(b.LoansActive-1, 0)

	rate, err := e.refreshSuccessRate(ctx, r, b.BackerID)
	if err != nil {
		return nil, err
	}
	strength := ApplyMultiplier(b.Strength, rate)
	if err := r.Backings.UpdateStrength(ctx, b.ID, strength); err != nil {
		return nil, err
	}
	b.Strength = strength

	if err := e.appendTrust(ctx, r, b, loanID, deltaDefaulted, backing.CategoryBackedLoanDefaulted,
		fmt.Sprintf("A loan you backed (%s) defaulted", loanID)); err != nil {
		return nil, err
	}
	if err := r.Profiles.AdjustActiveDefaults(ctx, b.BackerID, 1); err != nil {
		return nil, err
	}
	count := p.ActiveDefaultCount + 1

	notes := []notify.Notification{
		notify.New(b.BackerID, notify.KindBackedDefaulted, notify.UrgencyUrgent,
			"A loan you backed has defaulted",
			fmt.Sprintf("Loan %s defaulted. Your backing strength is now %d and your success rate %.0f%%.", loanID, strength, rate),
		).WithEmail().With("loan_id", loanID).With("backing_id", b.BackingID),
	}

	if count >= threshold && !p.Locked {
		reason := fmt.Sprintf("%d loans you backed are in active default", count)
		locked, err := r.Profiles.Lock(ctx, b.BackerID, reason, e.now().UTC())
		if err != nil {
			return nil, err
		}
		if locked {
			p.Locked = true
			notes = append(notes, notify.New(b.BackerID, notify.KindBackerLocked, notify.UrgencyUrgent,
				"You can no longer back new borrowers",
				reason+". Backing is paused until the defaults are resolved.",
			).WithEmail().With("active_defaults", fmt.Sprint(count)))
			e.log.Warn("backer locked", "backer_id", b.BackerID, "active_defaults", count, "loan_id", loanID)
		}
	}
	return notes, nil
}

func (e *Engine) applyDefaultResolved(ctx context.Context, r uow.Repos, b *backing.Backing, p *backing.Profile, loanID string, threshold int) ([]notify.Notification, error) {
	if err := r.Profiles.AdjustActiveDefaults(ctx, b.BackerID, -1); err != nil {
		return nil, err
	}
	count := max(p.ActiveDefaultCount-1, 0)
	if !p.Locked || count >= threshold {
		return nil, nil
	}
	unlocked, err := r.Profiles.Unlock(ctx, b.BackerID)
	if err != nil || !unlocked {
		return nil, err
	}
	p.Locked = false
	e.log.Info("backer unlocked", "backer_id", b.BackerID, "active_defaults", count, "loan_id", loanID)
	return []notify.Notification{
		notify.New(b.BackerID, notify.KindBackerUnlocked, notify.UrgencyNormal,
			"You can back borrowers again",
			fmt.Sprintf("A default on loan %s was resolved. Your backing privileges are restored.", loanID),
		).WithEmail().With("loan_id", loanID),
	}, nil
}

func (e *Engine) refreshSuccessRate(ctx context.Context, r uow.Repos, backerID string) (float64, error) {
	completed, defaulted, err := r.Backings.OutcomeTotals(ctx, backerID)
	if err != nil {
		return 0, err
	}
	rate := SuccessRate(completed, defaulted)
	if err := r.Profiles.SetSuccessRate(ctx, backerID, roundRate(rate)); err != nil {
		return 0, err
	}
	return rate, nil
}

func (e *Engine) appendTrust(ctx context.Context, r uow.Repos, b *backing.Backing, loanID string, delta int, category, description string) error {
	loanRef, backingRef := loanID, b.BackingID
	if err := r.TrustEvents.Append(ctx, &backing.TrustEvent{
		SubjectID:   b.BackerID,
		Delta:       delta,
		Category:    category,
		Description: description,
		LoanID:      &loanRef,
		BackingID:   &backingRef,
	}); err != nil {
		return err
	}
	return r.Profiles.AdjustTrustScore(ctx, b.BackerID, delta)
}

func (e *Engine) dispatch(ctx context.Context, notes []notify.Notification) {
	if e.notifier == nil {
		return
	}
	for _, n := range notes {
		e.notifier.Notify(ctx, n)
	}
}

func (e *Engine) project(ctx context.Context, b backing.Backing) {
	if e.projector != nil {
		e.projector.Project(ctx, b)
	}
}
