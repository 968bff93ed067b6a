package dispatch

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/plugin-tracker/handle"
	"github.com/wippyai/plugin-tracker/tracker"
)

func newQueue(t *testing.T) (*Queue, handle.Instance) {
	t.Helper()
	tr := tracker.NewWithDefaults()
	mod := tr.AddModule("mod")
	inst, err := tr.AddInstance(mod)
	if err != nil {
		t.Fatal(err)
	}

	q := New(tr, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		q.Close()
		cancel()
	})
	return q, inst
}

func TestQueue_Do(t *testing.T) {
	q, inst := newQueue(t)
	ctx := context.Background()

	var h handle.Resource
	err := q.Do(ctx, func(tr *tracker.Tracker) {
		h, _ = tr.CreateResource("x", inst)
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if h == handle.Invalid {
		t.Fatal("expected a resource handle")
	}

	ok, err := Call(ctx, q, func(tr *tracker.Tracker) bool {
		return tr.UnrefResource(h)
	})
	if err != nil || !ok {
		t.Fatalf("Call returned %v %v", ok, err)
	}
}

func TestQueue_ConcurrentCallers(t *testing.T) {
	q, inst := newQueue(t)
	ctx := context.Background()

	const workers = 16
	const perWorker = 50

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				var h handle.Resource
				if err := q.Do(gctx, func(tr *tracker.Tracker) {
					h, _ = tr.CreateResource(i, inst)
					tr.AddRefResource(h)
				}); err != nil {
					return err
				}
				if err := q.Do(gctx, func(tr *tracker.Tracker) {
					tr.UnrefResource(h)
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("workers failed: %v", err)
	}

	live, err := Call(ctx, q, func(tr *tracker.Tracker) int {
		return tr.LiveObjectCount(inst)
	})
	if err != nil {
		t.Fatal(err)
	}
	if live != workers*perWorker {
		t.Fatalf("expected %d live objects, got %d", workers*perWorker, live)
	}
}

func TestQueue_Closed(t *testing.T) {
	tr := tracker.NewWithDefaults()
	q := New(tr, Options{QueueSize: 1})
	q.Start(context.Background())
	q.Close()

	err := q.Do(context.Background(), func(*tracker.Tracker) {
		t.Error("closed queue must not run work")
	})
	if !stderrors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	// Close is idempotent.
	q.Close()
}

func TestQueue_CloseWithoutStart(t *testing.T) {
	q := New(tracker.NewWithDefaults(), Options{})
	q.Close()

	if err := q.Do(context.Background(), func(*tracker.Tracker) {}); !stderrors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_ContextCanceled(t *testing.T) {
	// Never started, so submissions sit in the buffer.
	q := New(tracker.NewWithDefaults(), Options{QueueSize: 1})
	t.Cleanup(q.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Do(ctx, func(*tracker.Tracker) {})
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestQueue_StopsWithContext(t *testing.T) {
	q := New(tracker.NewWithDefaults(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	select {
	case <-q.stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}

	if err := q.Do(context.Background(), func(*tracker.Tracker) {}); !stderrors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
