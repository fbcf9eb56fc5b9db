package matching

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"peerlend-backend/internal/adapter/repository/mysql"
	"peerlend-backend/internal/domain/lender"
	"peerlend-backend/internal/domain/loan"
	"peerlend-backend/internal/domain/offer"
	"peerlend-backend/internal/domain/uow"
	"peerlend-backend/internal/infrastructure/logging"
	"peerlend-backend/internal/testutil/notifymock"
	"peerlend-backend/internal/testutil/testdb"
	"peerlend-backend/internal/usecase/reliability"
	"peerlend-backend/internal/usecase/settings"
	"peerlend-backend/pkg/id"
)

type fixture struct {
	t     *testing.T
	repos uow.Repos
	eng   *Engine
	notes *notifymock.Recorder
	now   time.Time
}

func newFixture(t *testing.T, mutate ...func(*settings.Settings)) *fixture {
	t.Helper()
	db := testdb.Open(t)
	st := settings.Defaults()
	for _, m := range mutate {
		m(&st)
	}
	f := &fixture{
		t:     t,
		repos: mysql.NewRepos(db),
		notes: &notifymock.Recorder{},
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.eng = NewEngine(f.repos, mysql.NewGormUoW(db), settings.Static(st),
		reliability.NewTracker(logging.Discard()), f.notes,
		WithClock(func() time.Time { return f.now }),
		WithLogger(logging.Discard()),
	)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) newLoan(borrower, amount string) *loan.LoanRequest {
	f.t.Helper()
	l := &loan.LoanRequest{
		LoanID:          id.NewID32(),
		BorrowerID:      borrower,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		TermMonths:      12,
		Status:          loan.StatusPending,
		StatusUpdatedAt: f.now,
	}
	require.NoError(f.t, f.repos.Loans.Create(context.Background(), l))
	return l
}

type lenderOpt func(*lender.Preference)

func autoAccept(p *lender.Preference) { p.AutoAccept = true }

func pool(amount string) lenderOpt {
	return func(p *lender.Preference) { p.CapitalPool = decimal.RequireFromString(amount) }
}

func funded(n int64) lenderOpt { return func(p *lender.Preference) { p.LoansFunded = n } }

func (f *fixture) newLender(c offer.Candidate, opts ...lenderOpt) *lender.Preference {
	f.t.Helper()
	p := &lender.Preference{
		CapitalPool:    decimal.NewFromInt(10_000),
		DefaultRate:    decimal.NewFromInt(10),
		AcceptanceRate: 100,
	}
	p.CandidateKind, p.CandidateRef = c.Kind(), c.Ref()
	for _, o := range opts {
		o(p)
	}
	require.NoError(f.t, f.repos.Lenders.Upsert(context.Background(), p))
	got, err := f.repos.Lenders.GetByCandidate(context.Background(), c)
	require.NoError(f.t, err)
	return got
}

func (f *fixture) pref(c offer.Candidate) *lender.Preference {
	f.t.Helper()
	p, err := f.repos.Lenders.GetByCandidate(context.Background(), c)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) reload(l *loan.LoanRequest) *loan.LoanRequest {
	f.t.Helper()
	got, err := f.repos.Loans.GetByID(context.Background(), l.ID)
	require.NoError(f.t, err)
	return got
}

func (f *fixture) offers(l *loan.LoanRequest) []*offer.Offer {
	f.t.Helper()
	out, err := f.repos.Offers.ListByLoan(context.Background(), l.ID)
	require.NoError(f.t, err)
	return out
}

// offerFor returns the latest offer of the loan for candidate c.
func (f *fixture) offerFor(l *loan.LoanRequest, c offer.Candidate) *offer.Offer {
	f.t.Helper()
	o, err := f.repos.Offers.FindByCandidate(context.Background(), l.ID, c)
	require.NoError(f.t, err)
	return o
}

func (f *fixture) start(l *loan.LoanRequest, cs ...offer.Candidate) *MatchingDTO {
	f.t.Helper()
	ranked := make([]RankedCandidate, 0, len(cs))
	for i, c := range cs {
		ranked = append(ranked, RankedCandidate{Candidate: c, Score: float64(100 - i)})
	}
	dto, err := f.eng.StartMatching(context.Background(), l.LoanID, ranked)
	require.NoError(f.t, err)
	return dto
}

func countAccepting(offers []*offer.Offer) int {
	n := 0
	for _, o := range offers {
		if o.Status.Accepting() {
			n++
		}
	}
	return n
}

func ind(id string) offer.Candidate { return offer.IndividualCandidate{UserID: id} }
func org(id string) offer.Candidate { return offer.OrganizationCandidate{OrganizationID: id} }
