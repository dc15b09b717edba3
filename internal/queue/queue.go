// Package queue implements the generic retrying work queue (C3) shared by the
// imaging, processing and upload stages. It is grounded on the worker-pool /
// exponential-backoff / poison-pill shape of citrascope's Python
// base_work_queue.py, reimplemented with goroutines and channels in the
// teacher's style (internal/task's mutex-guarded, context-cancelled loops).
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrStopped is returned by Enqueue once the queue has been stopped.
var ErrStopped = errors.New("queue: stopped")

// ErrFull is returned by Enqueue when the queue is at capacity.
var ErrFull = errors.New("queue: full")

// Handler processes a single work item's payload. A non-nil error triggers a
// retry (with backoff) until MaxRetries is exhausted, at which point the item
// is reported as a permanent failure.
type Handler[T any] func(ctx context.Context, item *Item[T]) error

// Item wraps a payload with queue bookkeeping. The ID is stable across
// retries of the same logical unit of work.
type Item[T any] struct {
	ID       string
	Payload  T
	Attempts int
	// EnqueuedAt is when the item first entered the queue.
	EnqueuedAt time.Time
}

// Config configures retry/backoff/concurrency behaviour.
type Config struct {
	Workers       int
	MaxRetries    int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	QueueCapacity int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Enqueued          int64
	Succeeded         int64
	PermanentFailures int64
	Retries           int64
	InFlight          int64
	Depth             int
}

// Queue is a generic, bounded work queue with a fixed worker pool, retrying
// each item with exponential backoff up to Config.MaxRetries before reporting
// it as a permanent failure. Every item reaches exactly one terminal outcome:
// OnSuccess or OnPermanentFailure fires exactly once per item ID, never both,
// never zero times for an item that was actually processed to completion.
type Queue[T any] struct {
	cfg     Config
	handler Handler[T]
	name    string

	items chan *retryItem[T]
	wg    sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}

	enqueued, succeeded, permFailed, retries, inFlightCount atomic.Int64

	onSuccess          func(item *Item[T])
	onPermanentFailure func(item *Item[T], err error)
}

type retryItem[T any] struct {
	item  *Item[T]
	ready time.Time
}

// Option configures optional callbacks on a Queue.
type Option[T any] func(*Queue[T])

// WithOnSuccess registers a callback invoked once an item's handler succeeds.
func WithOnSuccess[T any](fn func(item *Item[T])) Option[T] {
	return func(q *Queue[T]) { q.onSuccess = fn }
}

// WithOnPermanentFailure registers a callback invoked once an item exhausts
// its retry budget.
func WithOnPermanentFailure[T any](fn func(item *Item[T], err error)) Option[T] {
	return func(q *Queue[T]) { q.onPermanentFailure = fn }
}

// New constructs a Queue. name is used only for log correlation.
func New[T any](name string, cfg Config, handler Handler[T], opts ...Option[T]) *Queue[T] {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin * 30
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 64
	}
	q := &Queue[T]{
		cfg:      cfg,
		handler:  handler,
		name:     name,
		items:    make(chan *retryItem[T], capacity),
		stopCh:   make(chan struct{}),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker pool. It returns immediately; workers run until
// Stop is called or ctx is cancelled.
func (q *Queue[T]) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Enqueue admits a new logical work item, minting a fresh ID.
func (q *Queue[T]) Enqueue(payload T) (string, error) {
	id := uuid.NewString()
	return id, q.enqueue(&Item[T]{ID: id, Payload: payload, EnqueuedAt: time.Now()})
}

func (q *Queue[T]) enqueue(item *Item[T]) error {
	select {
	case <-q.stopCh:
		return ErrStopped
	default:
	}

	select {
	case q.items <- &retryItem[T]{item: item}:
		q.enqueued.Add(1)
		return nil
	default:
		return ErrFull
	}
}

// Stop signals all workers to drain in-flight retries and exit, then waits
// for them. It is the "poison pill": no more items are accepted after Stop is
// called, but items already admitted still run to a terminal outcome.
func (q *Queue[T]) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	q.wg.Wait()
}

// Stats returns a point-in-time snapshot of counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Enqueued:          q.enqueued.Load(),
		Succeeded:         q.succeeded.Load(),
		PermanentFailures: q.permFailed.Load(),
		Retries:           q.retries.Load(),
		InFlight:          q.inFlightCount.Load(),
		Depth:             len(q.items),
	}
}

func (q *Queue[T]) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log := slog.With("queue", q.name, "worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		case ri, ok := <-q.items:
			if !ok {
				return
			}
			q.process(ctx, log, ri)
		case <-q.stopCh:
			// Drain remaining buffered items before exiting so every admitted
			// item still reaches a terminal outcome.
			select {
			case ri, ok := <-q.items:
				if !ok {
					return
				}
				q.process(ctx, log, ri)
			default:
				return
			}
		}
	}
}

func (q *Queue[T]) process(ctx context.Context, log *slog.Logger, ri *retryItem[T]) {
	if !ri.ready.IsZero() {
		if d := time.Until(ri.ready); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
	}

	item := ri.item
	q.inFlightCount.Add(1)
	defer q.inFlightCount.Add(-1)

	item.Attempts++
	err := q.handler(ctx, item)
	if err == nil {
		q.succeeded.Add(1)
		log.Debug("item succeeded", "id", item.ID, "attempts", item.Attempts)
		if q.onSuccess != nil {
			q.onSuccess(item)
		}
		return
	}

	if item.Attempts > q.cfg.MaxRetries {
		q.permFailed.Add(1)
		log.Warn("item permanently failed", "id", item.ID, "attempts", item.Attempts, "error", err)
		if q.onPermanentFailure != nil {
			q.onPermanentFailure(item, err)
		}
		return
	}

	q.retries.Add(1)
	backoff := q.backoffFor(item.Attempts)
	log.Info("item failed, retrying", "id", item.ID, "attempts", item.Attempts, "backoff", backoff, "error", err)

	select {
	case <-q.stopCh:
		// Stopping: still deliver a terminal outcome rather than drop the item silently.
		q.permFailed.Add(1)
		if q.onPermanentFailure != nil {
			q.onPermanentFailure(item, fmt.Errorf("queue stopped before retry budget exhausted: %w", err))
		}
		return
	default:
	}

	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		if enqErr := q.enqueue(item); enqErr != nil {
			q.permFailed.Add(1)
			log.Warn("failed to requeue after backoff", "id", item.ID, "error", enqErr)
			if q.onPermanentFailure != nil {
				q.onPermanentFailure(item, fmt.Errorf("requeue after backoff: %w", enqErr))
			}
		}
	}()
}

// backoffFor returns an exponential backoff, capped at BackoffMax, for the
// given attempt number (1-indexed), jittered uniformly within [base/2, base].
func (q *Queue[T]) backoffFor(attempt int) time.Duration {
	base := q.cfg.BackoffMin
	for i := 1; i < attempt && base < q.cfg.BackoffMax; i++ {
		base *= 2
	}
	if base > q.cfg.BackoffMax {
		base = q.cfg.BackoffMax
	}
	jittered := time.Duration(rand.Int63n(int64(base)/2+1)) + base/2
	return jittered
}
