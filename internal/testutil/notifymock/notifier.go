package notifymock

import (
	"context"
	"sync"

	"peerlend-backend/internal/domain/notify"
)

var _ notify.Notifier = (*Recorder)(nil)

// Recorder captures notifications synchronously for assertions.
type Recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *Recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

// Kinds returns the kind of every recorded notification, oldest first.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

// For returns notifications addressed to recipient.
func (r *Recorder) For(recipient string) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.got {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.got = nil
	r.mu.Unlock()
}
