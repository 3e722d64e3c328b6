package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/autoreader/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by Submit once the worker has been asked to stop.
	ErrStopped = errors.New("ingest worker stopped")
	// ErrShutdownTimeout is returned by Stop when the in-flight event did not
	// finish before the deadline.
	ErrShutdownTimeout = errors.New("ingest worker did not stop in time")
)

// Handler processes one event.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) (store.Message, error)
}

// Worker is the single consumer of the event queue. Events are handled
// strictly one at a time in submission order.
type Worker struct {
	handler Handler
	queue   chan Event
	logger  *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a worker with a queue of the given capacity.
func NewWorker(h Handler, queueSize int, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		handler: h,
		queue:   make(chan Event, queueSize),
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Submit enqueues evt, blocking while the queue is full.
func (w *Worker) Submit(ctx context.Context, evt Event) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	select {
	case w.queue <- evt:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the consumer goroutine. Calling it twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		// Stop is only observed between events.
		select {
		case <-w.stop:
			w.discardQueued()
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case evt := <-w.queue:
			w.process(ctx, evt)
		case <-w.stop:
			w.discardQueued()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, evt Event) {
	msg, err := w.handler.HandleEvent(ctx, evt)
	if err != nil && msg.ReceivedAt == "" {
		w.failed.Add(1)
		w.logger.Error("failed to persist event, dropping it",
			zap.String("from_id", evt.SenderID), zap.Error(err))
		return
	}
	w.processed.Add(1)
	if err != nil {
		w.logger.Error("failed to update contacts",
			zap.String("from_id", evt.SenderID), zap.Error(err))
	}
}

func (w *Worker) discardQueued() {
	if n := len(w.queue); n > 0 {
		w.logger.Warn("discarding queued events at shutdown", zap.Int("count", n))
	}
}

// Stop asks the worker to exit and waits for the in-flight event until
// ctx is done. On timeout the in-flight event's context is cancelled and
// ErrShutdownTimeout is returned.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	w.mu.Lock()
	started, cancel := w.started, w.cancel
	w.mu.Unlock()
	if !started {
		return nil
	}
	defer cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}

// Processed returns how many events were persisted.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Failed returns how many events were dropped because the log write failed.
func (w *Worker) Failed() int64 { return w.failed.Load() }

// Pending returns the queue depth.
func (w *Worker) Pending() int { return len(w.queue) }
