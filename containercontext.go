package weave

import "sync"

// ContainerContext is a deferred-registration recorder: the same
// Add*/Decorate/AddModules calls a Container exposes can be made
// against it before any Container exists, and are replayed in
// recording order once SetCurrent binds one (spec.md §6's
// ContainerContext / set_current). Generalizes the teacher's
// ModuleOption recording pattern (module.go) from "a slice of
// registration closures applied in AddModules" to "a slice of
// registration closures replayed against a bound container on
// SetCurrent".
//
// Each instance is independent, ordinary process state scoped to
// itself, not a package-level singleton: create as many recorders as
// needed.
type ContainerContext struct {
	mu        sync.Mutex
	container *Container
	pending   []func(*Container) error
}

// NewContainerContext returns an unbound recorder.
func NewContainerContext() *ContainerContext {
	return &ContainerContext{}
}

// SetCurrent binds c and replays every recorded action against it in
// recording order, stopping at the first error (the container is left
// unbound in that case, so the caller can fix the failing call and
// retry SetCurrent). Calls made after a successful SetCurrent apply
// directly to c instead of being recorded.
func (cc *ContainerContext) SetCurrent(c *Container) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for _, action := range cc.pending {
		if err := action(c); err != nil {
			return err
		}
	}
	cc.container = c
	cc.pending = nil
	return nil
}

// Current returns the bound Container, or nil if SetCurrent has not
// been called yet.
func (cc *ContainerContext) Current() *Container {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.container
}

// Bound reports whether SetCurrent has bound a Container yet.
func (cc *ContainerContext) Bound() bool {
	return cc.Current() != nil
}

func (cc *ContainerContext) record(action func(*Container) error) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.container != nil {
		return action(cc.container)
	}
	cc.pending = append(cc.pending, action)
	return nil
}

// AddInstance mirrors Container.AddInstance.
func (cc *ContainerContext) AddInstance(value any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddInstance(value, opts...) })
}

// AddConcrete mirrors Container.AddConcrete.
func (cc *ContainerContext) AddConcrete(scope ScopeLevel, lifetime Lifetime, zeroPtr any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddConcrete(scope, lifetime, zeroPtr, opts...) })
}

// AddFactory mirrors Container.AddFactory.
func (cc *ContainerContext) AddFactory(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddFactory(scope, lifetime, constructor, opts...) })
}

// AddGenerator mirrors Container.AddGenerator.
func (cc *ContainerContext) AddGenerator(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddGenerator(scope, lifetime, constructor, opts...) })
}

// AddContextManager mirrors Container.AddContextManager.
func (cc *ContainerContext) AddContextManager(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddContextManager(scope, lifetime, constructor, opts...) })
}

// AddAsyncFactory mirrors Container.AddAsyncFactory.
func (cc *ContainerContext) AddAsyncFactory(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddAsyncFactory(scope, lifetime, constructor, opts...) })
}

// AddAsyncGenerator mirrors Container.AddAsyncGenerator.
func (cc *ContainerContext) AddAsyncGenerator(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return cc.record(func(c *Container) error { return c.AddAsyncGenerator(scope, lifetime, constructor, opts...) })
}

// Decorate mirrors Container.Decorate.
func (cc *ContainerContext) Decorate(target Key, decorator any) error {
	return cc.record(func(c *Container) error { return c.Decorate(target, decorator) })
}

// AddModules mirrors Container.AddModules.
func (cc *ContainerContext) AddModules(modules ...ModuleOption) error {
	return cc.record(func(c *Container) error { return c.AddModules(modules...) })
}
