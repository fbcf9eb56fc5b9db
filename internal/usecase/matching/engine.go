package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/infrastructure/metrics"
	"peerlend-backend/internal/usecase/reliability"
	"peerlend-backend/internal/usecase/settings"
)

// SystemActor resolves offers on behalf of auto-accept lenders.
const SystemActor = "system"

// Lease guards the sweep against overlapping runs on other instances.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

var ErrSweepInProgress = errors.New("cascade sweep already running")

// Engine drives offers through their lifecycle and cascades loans through
// their ranked candidates. All offer and loan writes for one loan happen
// inside a unit of work holding that loan's row lock.
type Engine struct {
	repos    uow.Repos
	uow      uow.UnitOfWork
	settings settings.Provider
	tracker  *reliability.Tracker
	notifier notify.Notifier
	lease    Lease
	leaseTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(e *Engine) { e.log = l } }

// WithLease enables cross-instance sweep exclusion.
func WithLease(l Lease, ttl time.Duration) Option {
	return func(e *Engine) {
		e.lease = l
		e.leaseTTL = ttl
	}
}

// NewEngine: repos serve reads outside transactions, tx runs the write flows.
func NewEngine(repos uow.Repos, tx uow.UnitOfWork, s settings.Provider, tracker *reliability.Tracker, n notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		repos:    repos,
		uow:      tx,
		settings: s,
		tracker:  tracker,
		notifier: n,
		leaseTTL: 10 * time.Minute,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = reliability.NewTracker(e.log)
	}
	e.log = e.log.With("module", "matching")
	return e
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// outbox collects notifications inside a transaction; they are sent only
// after commit.
type outbox []notify.Notification

func (o *outbox) add(n notify.Notification) { *o = append(*o, n) }

func (e *Engine) flush(ctx context.Context, box outbox) {
	if e.notifier == nil {
		return
	}
	for _, n := range box {
		e.notifier.Notify(ctx, n)
	}
}

// authorize checks that actor may respond for c.
func authorize(ctx context.Context, lenders lender.Repository, c offer.Candidate, actor string) error {
	if actor == "" {
		return ErrForbidden
	}
	switch v := c.(type) {
	case offer.IndividualCandidate:
		if v.UserID == actor {
			return nil
		}
	case offer.OrganizationCandidate:
		ok, err := lenders.IsOrganizationMember(ctx, v.OrganizationID, actor)
		if err != nil {
			return fmt.Errorf("check organization membership: %w", err)
		}
		if ok {
			return nil
		}
	}
	return ErrForbidden
}

// preference returns nil, nil when the candidate has no lender preferences.
func preference(ctx context.Context, lenders lender.Repository, c offer.Candidate) (*lender.Preference, error) {
	p, err := lenders.GetByCandidate(ctx, c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load lender preferences: %w", err)
	}
	return p, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func observeResolved(s offer.Status) { metrics.Engine().OfferResolved(string(s)) }
