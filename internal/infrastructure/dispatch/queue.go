package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"peerlend-backend/internal/infrastructure/metrics"
)

var ErrClosed = errors.New("dispatch queue closed")

// Task is a unit of best-effort work. Errors are logged, never returned to
// the submitter.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Queue runs tasks on a fixed pool of workers behind a bounded buffer.
// Submit never blocks: when the buffer is full the task is dropped.
type Queue struct {
	tasks   chan Task
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Options struct {
	Workers  int
	Capacity int
	// Timeout bounds a single task run. Zero means 10s.
	Timeout time.Duration
}

func NewQueue(opts Options, log *slog.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		tasks:   make(chan Task, opts.Capacity),
		log:     log,
		timeout: opts.Timeout,
	}
	q.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues t. It returns false when the task was dropped.
func (q *Queue) Submit(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.Warn("dispatch task dropped", "kind", t.Kind, "error", ErrClosed)
		metrics.Engine().Dispatch(t.Kind, "dropped")
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		q.log.Warn("dispatch queue full; task dropped", "kind", t.Kind)
		metrics.Engine().Dispatch(t.Kind, "dropped")
		return false
	}
}

// Close stops accepting tasks and waits for the buffer to drain or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Run(ctx)
	}()
	if err != nil {
		q.log.Error("dispatch task failed", "kind", t.Kind, "error", err)
		metrics.Engine().Dispatch(t.Kind, "failed")
		return
	}
	metrics.Engine().Dispatch(t.Kind, "delivered")
}
