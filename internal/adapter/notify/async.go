// Package notify delivers engine notifications off the request path.
package notify

import (
	"context"
	"errors"
	"log/slog"

	domain "peerlend-backend/internal/domain/notify"
	"peerlend-backend/internal/infrastructure/dispatch"
)

// Submitter is the subset of dispatch.Queue used here.
type Submitter interface {
	Submit(t dispatch.Task) bool
}

// Async hands every notification to a background worker. Delivery failures
// are logged by the queue and never reach the engine.
type Async struct {
	queue Submitter
	sink  domain.Sink
	log   *slog.Logger
}

var _ domain.Notifier = (*Async)(nil)

func NewAsync(q Submitter, sink domain.Sink, log *slog.Logger) *Async {
	if log == nil {
		log = slog.Default()
	}
	return &Async{queue: q, sink: sink, log: log.With("module", "notify")}
}

func (a *Async) Notify(_ context.Context, n domain.Notification) {
	if a.sink == nil {
		return
	}
	ok := a.queue.Submit(dispatch.Task{
		Kind: "notify",
		Run:  func(ctx context.Context) error { return a.sink.Deliver(ctx, n) },
	})
	if !ok {
		a.log.Warn("notification dropped", "kind", n.Kind, "recipient", n.Recipient, "id", n.ID.String())
	}
}

// Fanout delivers to every sink and joins their errors.
type Fanout []domain.Sink

func (f Fanout) Deliver(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range f {
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
