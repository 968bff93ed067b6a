package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/tracker"
)

// ErrClosed is returned by Do once the queue has stopped.
var ErrClosed = errors.New(errors.PhaseDispatch, errors.KindClosed).Detail("dispatch queue closed").Build()

// Options configures a Queue.
type Options struct {
	// Logger for the queue. Defaults to the package logger.
	Logger *zap.Logger
	// QueueSize is the size of the submission buffer.
	QueueSize int
}

// Queue funnels calls from any number of goroutines onto one worker that
// owns the tracker, so the tracker itself never sees concurrent access.
type Queue struct {
	tracker *tracker.Tracker
	logger  *zap.Logger
	work    chan *job
	done    chan struct{}
	stopped chan struct{}
	start   sync.Once
	stop    sync.Once
}

type job struct {
	fn   func(*tracker.Tracker)
	done chan struct{}
}

// New creates a queue for t. Call Start before submitting work.
func New(t *tracker.Tracker, opts Options) *Queue {
	if opts.Logger == nil {
		opts.Logger = Logger()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	return &Queue{
		tracker: t,
		logger:  opts.Logger,
		work:    make(chan *job, opts.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start runs the worker until ctx is done or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.start.Do(func() {
		go q.run(ctx)
	})
}

// Do runs fn on the worker and waits for it to finish. If ctx ends first,
// Do returns ctx.Err(); fn may still run later if it was already queued.
func (q *Queue) Do(ctx context.Context, fn func(*tracker.Tracker)) error {
	j := &job{fn: fn, done: make(chan struct{})}

	select {
	case <-q.done:
		return ErrClosed
	case <-q.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.work <- j:
	}

	select {
	case <-j.done:
		return nil
	case <-q.stopped:
		select {
		case <-j.done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker and waits for it to exit. Queued but unstarted
// work fails with ErrClosed.
func (q *Queue) Close() {
	q.stop.Do(func() {
		close(q.done)
	})
	q.start.Do(func() {
		close(q.stopped)
	})
	<-q.stopped
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.stopped)

	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("dispatch queue stopping", zap.Error(ctx.Err()))
			return
		case <-q.done:
			q.logger.Debug("dispatch queue closed")
			return
		case j := <-q.work:
			q.exec(j)
		}
	}
}

// exec does not recover panics: a panic inside the tracker is a broken
// contract (such as handle exhaustion) and must take the process down.
func (q *Queue) exec(j *job) {
	defer close(j.done)
	j.fn(q.tracker)
}

// Call runs fn on q's worker and returns its result.
func Call[T any](ctx context.Context, q *Queue, fn func(*tracker.Tracker) T) (T, error) {
	var result T
	err := q.Do(ctx, func(t *tracker.Tracker) {
		result = fn(t)
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("dispatch: %w", err)
	}
	return result, nil
}
