// Package execute implements the scope-agnostic building blocks of a
// compiled resolver tree: a per-slot cache cell with build-once
// locking, and a LIFO cleanup stack. It is deliberately typed over
// `any` rather than the root weave package's Descriptor/Key, the same
// import-cycle-avoidance shape internal/planner uses for its own
// key-string-based specs: the root package wires these primitives to
// real constructors and Keys, execute never needs to know what either
// looks like.
//
// Grounded on the teacher's cache.go (singleton/scoped instance cache)
// and scope.go's atomic disposed-flag pattern, generalized to the
// spec's three lock modes (thread, async, none) and to slot-indexed
// storage instead of a type-keyed map.
package execute

import (
	"context"
	"sync"
)

// LockMode selects how a SlotCell serializes concurrent first builds.
type LockMode int

const (
	LockThread LockMode = iota
	LockAsync
	LockNone
)

// BuildFunc produces a slot's value plus an optional cleanup callback.
// cleanup is nil when the provider needs no teardown.
type BuildFunc func(ctx context.Context) (value any, cleanup func(context.Context) error, err error)

// SlotCell is the cache entry for one Scoped provider at one scope
// resolver. Transient providers never allocate a SlotCell; the
// resolver calls BuildFunc directly on every resolve.
type SlotCell struct {
	mode LockMode

	mu    sync.Mutex    // LockThread
	sema  chan struct{} // LockAsync: capacity-1 semaphore
	built bool
	value any
	err   error

	// constReturn is not set or read anywhere in this package; every
	// Get after the first build still goes through the cell's lock
	// mode.
	constReturn bool
}

// NewSlotCell creates a cell using the given lock mode.
func NewSlotCell(mode LockMode) *SlotCell {
	c := &SlotCell{mode: mode}
	if mode == LockAsync {
		c.sema = make(chan struct{}, 1)
	}
	return c
}

// Get returns the cell's built value, building it via build on first
// call. Concurrent callers block on the configured lock until the
// first build completes, then all observe the same (value, cleanup
// already registered, err).
func (c *SlotCell) Get(ctx context.Context, build BuildFunc, registerCleanup func(func(context.Context) error)) (any, error) {
	switch c.mode {
	case LockNone:
		return c.getUnlocked(ctx, build, registerCleanup)
	case LockAsync:
		return c.getAsync(ctx, build, registerCleanup)
	default:
		return c.getThread(ctx, build, registerCleanup)
	}
}

func (c *SlotCell) getUnlocked(ctx context.Context, build BuildFunc, registerCleanup func(func(context.Context) error)) (any, error) {
	if c.built {
		return c.value, c.err
	}
	v, cleanup, err := build(ctx)
	c.built, c.value, c.err = true, v, err
	if err == nil && cleanup != nil && registerCleanup != nil {
		registerCleanup(cleanup)
	}
	return v, err
}

func (c *SlotCell) getThread(ctx context.Context, build BuildFunc, registerCleanup func(func(context.Context) error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getUnlocked(ctx, build, registerCleanup)
}

func (c *SlotCell) getAsync(ctx context.Context, build BuildFunc, registerCleanup func(func(context.Context) error)) (any, error) {
	select {
	case c.sema <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sema }()
	return c.getUnlocked(ctx, build, registerCleanup)
}

// CleanupStack is a LIFO of teardown callbacks owned by one scope
// resolver, drained on scope exit (spec.md §3.2: "exceptions during
// cleanup are captured and the first... is re-raised after draining").
type CleanupStack struct {
	mu    sync.Mutex
	funcs []func(context.Context) error
}

// Push appends fn to the stack. Push is safe to call concurrently with
// other Pushes; it must never be called after Drain has started.
func (s *CleanupStack) Push(fn func(context.Context) error) {
	s.mu.Lock()
	s.funcs = append(s.funcs, fn)
	s.mu.Unlock()
}

// Drain runs every pushed cleanup in reverse (LIFO) registration
// order, continuing past individual failures, and returns the first
// error encountered (if any).
func (s *CleanupStack) Drain(ctx context.Context) error {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
