// Package workerpool runs a fixed number of goroutines that share one stop
// flag.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Group is a set of workers started with Go. Workers poll Stopped between
// units of work; there is no queue.
type Group struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
	release func() bool
}

type Worker func(ctx context.Context, id int)

// New returns an empty group whose stop flag is raised when ctx is done or
// Cancel is called.
func New(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	g := &Group{ctx: ctx, cancel: cancel}
	g.release = context.AfterFunc(ctx, func() { g.stopped.Store(true) })
	return g
}

// Go starts n workers numbered from 0.
func (g *Group) Go(n int, w Worker) {
	g.wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer g.wg.Done()
			w(g.ctx, id)
		}(i)
	}
}

// Stopped is a single atomic load, cheap enough to call before every unit
// of work.
func (g *Group) Stopped() bool { return g.stopped.Load() }

// Cancel raises the stop flag and cancels the workers' context. It does not
// wait for them.
func (g *Group) Cancel() {
	g.stopped.Store(true)
	g.cancel()
}

// Wait blocks until every worker has returned and releases the group's
// context.
func (g *Group) Wait() {
	g.wg.Wait()
	g.release()
	g.cancel()
}
