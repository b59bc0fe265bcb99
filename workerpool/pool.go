// Package workerpool provides the engine's explicit, fixed-size
// parallelism handle (spec's "thread pool is an explicit per-engine
// handle, not a hidden global"). A Pool is created once when an
// engine/session is configured from num_threads and passed down to
// every call site that fans work out across GEMM row bands or
// attention heads — there is no package-level pool.
package workerpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many kernel goroutines may run at once, regardless
// of how many independent parallel sections are in flight against it
// concurrently (e.g. two GEMMs in different layers racing ahead under
// pipelined decode).
type Pool struct {
	size int
	sem  chan struct{}
}

// New builds a pool sized to numThreads; 0 resolves to runtime.NumCPU().
func New(numThreads int) *Pool {
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	return &Pool{size: numThreads, sem: make(chan struct{}, numThreads)}
}

// Size returns the pool's configured worker count.
func (p *Pool) Size() int { return p.size }

// Group starts a new bounded-fan-out section against this pool. Every
// Group drawn from the same Pool shares its concurrency budget.
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Group is one parallel section: a set of goroutines whose concurrent
// count is capped by the parent Pool's size.
type Group struct {
	pool *Pool
	g    errgroup.Group
}

// Go runs fn as part of this section, blocking until a pool slot is
// free before starting.
func (g *Group) Go(fn func() error) {
	g.g.Go(func() error {
		g.pool.sem <- struct{}{}
		defer func() { <-g.pool.sem }()
		return fn()
	})
}

// Wait blocks until every Go call in this section has finished,
// returning the first non-nil error if any.
func (g *Group) Wait() error {
	return g.g.Wait()
}
