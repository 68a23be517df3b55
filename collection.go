package weave

import (
	"fmt"
	"reflect"

	"weave/internal/reflectx"
)

// AddOption customizes a single registration call: which component
// qualifies it, what lock mode it uses, and any diagnostic metadata
// carried alongside it. Generalizes the teacher's AddOption/
// ProvideOption variadic pattern (provider.go) to weave's
// component-qualified key model.
type AddOption func(*addConfig)

type addConfig struct {
	component    Component
	hasComponent bool
	lockMode     LockMode
	metadata     []any
}

// WithComponent qualifies the registration with component, letting
// multiple providers share a type (spec.md §3.1 annotated key).
func WithComponent(component Component) AddOption {
	return func(c *addConfig) { c.component, c.hasComponent = component, true }
}

// WithLock overrides the provider's lock mode instead of letting the
// planner pick LockAuto.
func WithLock(mode LockMode) AddOption {
	return func(c *addConfig) { c.lockMode = mode }
}

// WithMetadata attaches diagnostic metadata to the key, surfaced in
// error messages and the dependency graph visualizer. The metadata is
// kept only when WithComponent is also given; without a component the
// key is a plain concrete key and the metadata is dropped.
func WithMetadata(metadata ...any) AddOption {
	return func(c *addConfig) { c.metadata = append(c.metadata, metadata...) }
}

func resolveAddConfig(opts []AddOption) *addConfig {
	cfg := &addConfig{lockMode: LockAuto}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// AddInstance registers a pre-built value as scoped-at-root with no
// construction cost and no cleanup (spec.md §3.2 Instance semantics).
func (c *Container) AddInstance(value any, opts ...AddOption) error {
	if value == nil {
		return &InvalidRegistrationError{Reason: "instance cannot be nil"}
	}
	cfg := resolveAddConfig(opts)
	typ := reflect.TypeOf(value)
	key := keyFor(typ, cfg)

	d := &Descriptor{
		Key:             key,
		Kind:            KindInstance,
		Scope:           ScopeRoot,
		Lifetime:        Scoped,
		LockMode:        LockNone,
		Instance:        value,
		ConstructorType: typ,
	}
	return c.insert(d)
}

// AddConcrete registers structType (pass a nil pointer, e.g.
// (*Widget)(nil)) as a provider whose dependencies are its own
// exported fields, per spec.md §4.2 step 3's "concrete type" path.
func (c *Container) AddConcrete(scope ScopeLevel, lifetime Lifetime, zeroPtr any, opts ...AddOption) error {
	ptrType := reflect.TypeOf(zeroPtr)
	if ptrType == nil || ptrType.Kind() != reflect.Pointer {
		return &InvalidRegistrationError{Reason: "AddConcrete requires a nil pointer of the target type, e.g. (*Widget)(nil)"}
	}
	structType := ptrType.Elem()
	if structType.Kind() != reflect.Struct {
		return &InvalidRegistrationError{Reason: fmt.Sprintf("AddConcrete target must be a struct, got %v", structType.Kind())}
	}
	cfg := resolveAddConfig(opts)
	key := keyFor(ptrType, cfg)

	deps, err := c.fieldDependencies(structType)
	if err != nil {
		return &InvalidRegistrationError{Key: key, Reason: err.Error(), Cause: err}
	}

	d := &Descriptor{
		Key:             key,
		Kind:            KindConcreteType,
		Scope:           scope,
		Lifetime:        lifetime,
		LockMode:        cfg.lockMode,
		ConstructorType: structType,
		Dependencies:    deps,
	}
	return c.insert(d)
}

// AddFactory registers constructor (func(deps...) (T) or (T, error))
// as a Factory provider: called once per cache slot, no cleanup.
func (c *Container) AddFactory(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return c.addCallable(KindFactory, scope, lifetime, constructor, opts)
}

// AddGenerator registers constructor shaped func(deps...) (T, func() error)
// or func(deps...) (T, func() error, error): the returned cleanup is
// pushed onto the owning scope resolver's cleanup stack.
func (c *Container) AddGenerator(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return c.addCallable(KindGenerator, scope, lifetime, constructor, opts)
}

// AddContextManager registers constructor whose produced value
// implements Disposable or DisposableWithContext; Close is pushed onto
// the cleanup stack when the built value satisfies either interface.
func (c *Container) AddContextManager(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return c.addCallable(KindContextManager, scope, lifetime, constructor, opts)
}

// AddAsyncFactory is AddFactory for a constructor whose first
// parameter is context.Context, reachable only from AResolve.
func (c *Container) AddAsyncFactory(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return c.addAsyncCallable(KindFactory, scope, lifetime, constructor, opts)
}

// AddAsyncGenerator is AddGenerator for a context.Context-first
// constructor, reachable only from AResolve.
func (c *Container) AddAsyncGenerator(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) error {
	return c.addAsyncCallable(KindGenerator, scope, lifetime, constructor, opts)
}

func (c *Container) addAsyncCallable(kind ProviderKind, scope ScopeLevel, lifetime Lifetime, constructor any, opts []AddOption) error {
	info, err := c.analyzer.Analyze(constructor)
	if err != nil {
		return &InvalidRegistrationError{Reason: err.Error(), Cause: err}
	}
	if !info.IsAsync {
		return &InvalidRegistrationError{Reason: "AddAsyncFactory/AddAsyncGenerator requires a constructor whose first parameter is context.Context"}
	}
	return c.addCallableFromInfo(kind, scope, lifetime, constructor, info, resolveAddConfig(opts))
}

func (c *Container) addCallable(kind ProviderKind, scope ScopeLevel, lifetime Lifetime, constructor any, opts []AddOption) error {
	if constructor == nil {
		return &InvalidRegistrationError{Reason: "constructor cannot be nil"}
	}
	info, err := c.analyzer.Analyze(constructor)
	if err != nil {
		return &InvalidRegistrationError{Reason: err.Error(), Cause: err}
	}
	return c.addCallableFromInfo(kind, scope, lifetime, constructor, info, resolveAddConfig(opts))
}

func (c *Container) addCallableFromInfo(kind ProviderKind, scope ScopeLevel, lifetime Lifetime, constructor any, info *reflectx.ConstructorInfo, cfg *addConfig) error {
	serviceType, err := c.analyzer.GetServiceType(constructor)
	if err != nil {
		return &InvalidRegistrationError{Reason: err.Error(), Cause: err}
	}

	switch kind {
	case KindGenerator:
		if !hasCleanupReturn(info) {
			return &InvalidRegistrationError{Reason: "AddGenerator constructor must return a func() error cleanup alongside its value"}
		}
	}

	key := keyFor(serviceType, cfg)
	deps, err := c.dependenciesFromParams(info.Parameters)
	if err != nil {
		return &InvalidRegistrationError{Key: key, Reason: err.Error(), Cause: err}
	}

	d := &Descriptor{
		Key:             key,
		Kind:            kind,
		Scope:           scope,
		Lifetime:        lifetime,
		LockMode:        cfg.lockMode,
		Constructor:     info.Value,
		ConstructorType: info.Type,
		Dependencies:    deps,
		IsAsync:         info.IsAsync,
		NeedsCleanup:    kind == KindGenerator || kind == KindContextManager,
	}
	return c.insert(d)
}

// Decorate registers decorator to run around every value produced for
// target, outermost-last in registration order (spec.md §3.1
// Decoration Chain).
func (c *Container) Decorate(target Key, decorator any) error {
	if c.isClosed() {
		return ErrContainerDisposed
	}
	if decorator == nil {
		return ErrNilDecorator
	}
	fnVal := reflect.ValueOf(decorator)
	if fnVal.Kind() != reflect.Func {
		return &InvalidRegistrationError{Key: target, Reason: "decorator must be a function"}
	}
	if err := validateDecoratorShape(fnVal.Type()); err != nil {
		return &InvalidRegistrationError{Key: target, Reason: err.Error(), Cause: err}
	}

	info, err := c.analyzer.Analyze(decorator)
	if err != nil {
		return &InvalidRegistrationError{Key: target, Reason: err.Error(), Cause: err}
	}

	// parameter 0 is the wrapped value; the rest are ordinary deps.
	extraParams := info.Parameters
	if len(extraParams) > 0 {
		extraParams = extraParams[1:]
	}
	deps, err := c.dependenciesFromParams(shiftIndexes(extraParams))
	if err != nil {
		return &InvalidRegistrationError{Key: target, Reason: err.Error(), Cause: err}
	}

	rule := Decorator{Constructor: fnVal, Dependencies: deps, WrappedIndex: 0}
	return c.reg.Mutate(func(tx *registryTx) error {
		tx.AddDecorationRule(target, rule)
		return nil
	})
}

// shiftIndexes re-zeroes parameter indexes after the wrapped-value
// parameter has been sliced off, so Dependency.Index lines up with the
// decorator's own argument positions starting at 1 (index 0 is the
// wrapped value, spliced in by invokeDecorator).
func shiftIndexes(params []reflectx.ParameterInfo) []reflectx.ParameterInfo {
	out := make([]reflectx.ParameterInfo, len(params))
	for i, p := range params {
		p.Index = i + 1
		out[i] = p
	}
	return out
}

func hasCleanupReturn(info *reflectx.ConstructorInfo) bool {
	cleanupType := reflect.TypeOf((func() error)(nil))
	for _, r := range info.Returns {
		if r.Type == cleanupType {
			return true
		}
	}
	return false
}

func keyFor(t reflect.Type, cfg *addConfig) Key {
	var k Key = Concrete(t)
	if cfg.hasComponent {
		k = Annotated(k, cfg.component, cfg.metadata...)
	}
	return k
}

// dependenciesFromParams maps analyzer parameter info into
// Descriptor.Dependency entries, wrapping each key in the matching
// wrapper-key form when the parameter used one of the five markers.
func (c *Container) dependenciesFromParams(params []reflectx.ParameterInfo) ([]Dependency, error) {
	deps := make([]Dependency, 0, len(params))
	seen := make(map[string]bool, len(params))

	for _, p := range params {
		if isReservedInjectType(p.Type) {
			return nil, fmt.Errorf("parameter type %s is reserved for Inject and cannot be used as an ordinary dependency", p.Type)
		}

		var base Key
		innerType := p.Type
		if p.Wrapper != reflectx.WrapperNone {
			innerType = p.InnerType
		}
		base = Concrete(innerType)
		if name, ok := p.Key.(string); ok && name != "" {
			base = Annotated(base, Component(name))
		}

		var key Key
		switch p.Wrapper {
		case reflectx.WrapperMaybe:
			key = MaybeKey(base)
		case reflectx.WrapperProvider:
			key = ProviderKey(base)
		case reflectx.WrapperAsyncProvider:
			key = AsyncProviderKey(base)
		case reflectx.WrapperFromContext:
			key = FromContextKey(base)
		case reflectx.WrapperAll:
			key = AllKey(base)
		default:
			key = base
		}

		if p.Name != "" {
			if seen[p.Name] {
				return nil, fmt.Errorf("duplicate dependency field %q", p.Name)
			}
			seen[p.Name] = true
		}

		deps = append(deps, Dependency{Key: key, Optional: p.Optional, Index: p.Index})
	}
	return deps, nil
}

// fieldDependencies reads structType's exported fields as an implicit
// dependency list, the AddConcrete equivalent of
// dependenciesFromParams (spec.md §4.2 step 3).
func (c *Container) fieldDependencies(structType reflect.Type) ([]Dependency, error) {
	var deps []Dependency
	for i := 0; i < structType.NumField(); i++ {
		f := structType.Field(i)
		if !f.IsExported() {
			continue
		}
		if isReservedInjectType(f.Type) {
			return nil, fmt.Errorf("field %s has type %s, which is reserved for Inject and cannot be used as an ordinary dependency", f.Name, f.Type)
		}
		deps = append(deps, Dependency{Key: Concrete(f.Type), Index: i})
	}
	return deps, nil
}

// insert runs d through transactional registry mutation, scope
// contract revalidation, and compile invalidation.
func (c *Container) insert(d *Descriptor) error {
	if c.isClosed() {
		return ErrContainerDisposed
	}
	err := c.reg.Mutate(func(tx *registryTx) error {
		tx.Insert(d)
		return c.revalidateScopeContracts(tx)
	})
	if err != nil {
		return err
	}
	c.invalidateCompiled()
	return nil
}

// revalidateScopeContracts enforces spec.md §4.2's "required scope
// levels are recomputed... any contract whose required level now
// exceeds its declared scope level fails InvalidRegistration": a
// provider declared at a shallower scope cannot depend (other than
// through Provider[T]/AsyncProvider[T], whose laziness defers the
// lookup to when that deeper scope actually exists) on a provider
// declared at a strictly deeper one, because the shallower resolver is
// never guaranteed that deeper resolver exists yet.
func (c *Container) revalidateScopeContracts(tx *registryTx) error {
	for _, d := range tx.r.bySlot {
		if d == nil {
			continue
		}
		for _, dep := range d.Dependencies {
			wk, isWrapper := asWrapper(dep.Key)
			if isWrapper && (wk.wrapperKind() == wrapperProvider || wk.wrapperKind() == wrapperAsyncProvider) {
				continue
			}
			depKey := dep.Key
			if isWrapper {
				depKey = wk.Inner()
			}
			target, ok := tx.Lookup(depKey)
			if !ok {
				continue // unregistered dependency reported at Compile, not here
			}
			if target.Scope > d.Scope {
				return &InvalidRegistrationError{
					Key: d.Key,
					Reason: fmt.Sprintf("depends on %s declared at deeper scope level %d than its own level %d",
						target.Key, target.Scope, d.Scope),
				}
			}
		}
	}
	return nil
}
