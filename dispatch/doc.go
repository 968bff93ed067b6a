// Package dispatch serializes tracker access.
//
// The tracker does no locking of its own. When several goroutines need it,
// route every call through one Queue; a single worker goroutine owns the
// tracker and runs submitted functions in order:
//
//	q := dispatch.New(t, dispatch.Options{})
//	q.Start(ctx)
//	defer q.Close()
//
//	live, err := dispatch.Call(ctx, q, func(t *tracker.Tracker) int {
//	    return t.LiveObjectCount(inst)
//	})
package dispatch
