package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"peerlend-backend/internal/domain/backing"
	"peerlend-backend/internal/infrastructure/dispatch"
)

const upsertBackingCypher = `
MERGE (backer:User {id: $backer_id})
MERGE (borrower:User {id: $borrower_id})
MERGE (backer)-[r:BACKS {backing_id: $backing_id}]->(borrower)
SET r.status = $status,
    r.strength = $strength,
    r.loans_completed = $loans_completed,
    r.loans_defaulted = $loans_defaulted,
    r.updated_at = $updated_at
`

const activeBackersCypher = `
MATCH (backer:User)-[r:BACKS {status: 'active'}]->(:User {id: $borrower_id})
RETURN backer.id AS backer_id, r.backing_id AS backing_id, r.strength AS strength
ORDER BY r.strength DESC, backer.id ASC
`

type Submitter interface {
	Submit(t dispatch.Task) bool
}

// Projector mirrors backing rows as BACKS edges. Writes run on the dispatch
// queue; a nil queue writes inline.
//
// Queued writes for one backing go through a lane: a task always writes the
// newest snapshot seen so far, under the lane's write lock, so workers
// finishing out of order cannot leave an older status on the edge.
type Projector struct {
	client Client
	queue  Submitter
	log    *slog.Logger

	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	write   sync.Mutex
	latest  backing.Backing
	seq     uint64
	written uint64
	pending int
}

func NewProjector(c Client, q Submitter, log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{client: c, queue: q, log: log.With("module", "graph"), lanes: make(map[string]*lane)}
}

// Project never fails the caller; the relational row stays authoritative.
func (p *Projector) Project(ctx context.Context, b backing.Backing) {
	if p.queue == nil {
		if err := p.Upsert(ctx, b); err != nil {
			p.log.Warn("graph projection failed", "backing_id", b.BackingID, "error", err)
		}
		return
	}

	p.mu.Lock()
	l, ok := p.lanes[b.BackingID]
	if !ok {
		l = &lane{}
		p.lanes[b.BackingID] = l
	}
	l.latest = b
	l.seq++
	l.pending++
	p.mu.Unlock()

	submitted := p.queue.Submit(dispatch.Task{
		Kind: "graph",
		Run:  func(ctx context.Context) error { return p.drain(ctx, b.BackingID, l) },
	})
	if !submitted {
		p.done(b.BackingID, l)
	}
}

// drain writes the lane's newest snapshot unless it is already on the edge.
func (p *Projector) drain(ctx context.Context, backingID string, l *lane) error {
	defer p.done(backingID, l)
	l.write.Lock()
	defer l.write.Unlock()

	p.mu.Lock()
	snap, seq, written := l.latest, l.seq, l.written
	p.mu.Unlock()
	if seq == written {
		return nil
	}
	if err := p.Upsert(ctx, snap); err != nil {
		return err
	}
	p.mu.Lock()
	l.written = seq
	p.mu.Unlock()
	return nil
}

func (p *Projector) done(backingID string, l *lane) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.pending--
	if l.pending == 0 && p.lanes[backingID] == l {
		delete(p.lanes, backingID)
	}
}

func (p *Projector) Upsert(ctx context.Context, b backing.Backing) error {
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := p.client.ExecuteWrite(ctx, upsertBackingCypher, map[string]any{
		"backer_id":       b.BackerID,
		"borrower_id":     b.BorrowerID,
		"backing_id":      b.BackingID,
		"status":          string(b.Status),
		"strength":        int64(b.Strength),
		"loans_completed": int64(b.LoansCompleted),
		"loans_defaulted": int64(b.LoansDefaulted),
		"updated_at":      updated.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("upsert backing edge %s: %w", b.BackingID, err)
	}
	return nil
}

type Edge struct {
	BackerID  string `json:"backer_id"`
	BackingID string `json:"backing_id"`
	Strength  int    `json:"strength"`
}

// ActiveBackers reads the borrower's active backers from the graph.
func (p *Projector) ActiveBackers(ctx context.Context, borrowerID string) ([]Edge, error) {
	res, err := p.client.ExecuteRead(ctx, activeBackersCypher, map[string]any{"borrower_id": borrowerID})
	if err != nil {
		return nil, fmt.Errorf("read backers of %s: %w", borrowerID, err)
	}
	out := make([]Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		e := Edge{}
		e.BackerID, _ = rec["backer_id"].(string)
		e.BackingID, _ = rec["backing_id"].(string)
		e.Strength = toInt(rec["strength"])
		out = append(out, e)
	}
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
