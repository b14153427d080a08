package txn

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group runs one call per key for all concurrent callers. The call gets
// its own context, cancelled only once every caller waiting on it has
// left, so one caller giving up does not fail the others.
type Group struct {
	group singleflight.Group

	mu   sync.Mutex
	runs map[string]*sharedRun
}

type sharedRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Do runs fn under key, or joins the run in flight for key. It returns
// when the run finishes or ctx ends. shared reports whether the result
// went to more than one caller.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (v interface{}, err error, shared bool) {
	g.mu.Lock()
	if g.runs == nil {
		g.runs = make(map[string]*sharedRun)
	}
	run, ok := g.runs[key]
	if !ok {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		run = &sharedRun{ctx: runCtx, cancel: cancel}
		g.runs[key] = run
	}
	run.waiters++
	ch := g.group.DoChan(key, func() (interface{}, error) {
		defer g.finish(key, run)
		return fn(run.ctx)
	})
	g.mu.Unlock()

	select {
	case res := <-ch:
		g.leave(key, run)
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		g.leave(key, run)
		return nil, ctx.Err(), false
	}
}

// finish drops a completed run so the next caller starts a fresh one.
func (g *Group) finish(key string, run *sharedRun) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runs[key] == run {
		delete(g.runs, key)
		g.group.Forget(key)
	}
}

// leave releases one waiter and cancels the run when none remain.
func (g *Group) leave(key string, run *sharedRun) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run.waiters--
	if run.waiters > 0 {
		return
	}
	run.cancel()
	if g.runs[key] == run {
		delete(g.runs, key)
		g.group.Forget(key)
	}
}

// Waiters returns the number of callers waiting on key.
func (g *Group) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if run, ok := g.runs[key]; ok {
		return run.waiters
	}
	return 0
}
