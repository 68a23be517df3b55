package weave

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"weave/internal/execute"
	"weave/internal/generics"
)

// scopeHandle is the concrete Resolver returned by Compile/EnterScope.
// It owns one execute.ScopeResolver (caching/locking/cleanup) and
// knows how to turn a Key into a built value by walking the
// Container's registry and compiled Plan — the part execute
// deliberately knows nothing about.
type scopeHandle struct {
	c      *Container
	exec   *execute.ScopeResolver
	parent *scopeHandle
	level  ScopeLevel

	// id uniquely identifies this scope instance for log correlation,
	// one per EnterScope hop (generalizes the teacher's per-scope
	// uuid.NewString() identity, scope.go's scopeID).
	id string

	// owned lists the scopeHandles this handle is responsible for
	// draining on Close: itself plus every intermediate level a single
	// multi-hop EnterScope call built on the way here. A handle
	// returned directly by Compile (the root) has no owned set and
	// Close falls back to draining just itself.
	owned []*scopeHandle

	// ctxValues holds values placed for FromContext[K] lookups at this
	// scope level (spec.md §6's Context entity), checked outward
	// (child scope first) on lookup.
	ctxValues map[string]any
}

// Level reports this resolver's scope level.
func (h *scopeHandle) Level() ScopeLevel { return h.level }

// ID returns the unique identity of this scope instance, generated
// fresh for every EnterScope hop (and for the root handle at Compile).
func (h *scopeHandle) ID() string { return h.id }

// WithContextValue returns a child-free copy of h carrying value bound
// to key for FromContext[T] dependency sites, the EnterScope-time
// analogue of placing a value on a context.Context.
func (h *scopeHandle) WithContextValue(key Key, value any) *scopeHandle {
	clone := *h
	clone.ctxValues = make(map[string]any, len(h.ctxValues)+1)
	for k, v := range h.ctxValues {
		clone.ctxValues[k] = v
	}
	clone.ctxValues[key.identity()] = value
	return &clone
}

// EnterScope transitions to target, building any skipped intermediate
// resolvers along the way (spec.md §4.1 transition plan). Every
// intermediate built during this single call is recorded as owned by
// the returned (deepest) handle, so Close can drain them in the
// reverse order they were entered instead of leaking the ones short of
// the final level (spec.md §4.4.5 item 2, Testable Property 6).
func (h *scopeHandle) EnterScope(ctx context.Context, target ScopeLevel) (Resolver, error) {
	plan, err := h.c.scopes.TransitionPlan(h.level, target)
	if err != nil {
		return nil, &ScopeMismatchError{TransitionFrom: h.level, TransitionTo: target, Reason: err.Error()}
	}

	cur := h
	created := make([]*scopeHandle, 0, len(plan))
	for _, level := range plan {
		child := &scopeHandle{
			c:         cur.c,
			exec:      cur.exec.Enter(int(level)),
			parent:    cur,
			level:     level,
			id:        uuid.NewString(),
			ctxValues: make(map[string]any),
		}
		cur.c.registerScopedSlots(child.exec, level)
		created = append(created, child)
		cur = child
	}
	cur.owned = created
	return cur, nil
}

// registerScopedSlots installs a SlotCell for every Scoped-lifetime
// slot owned by level, per the compiled Plan.
func (c *Container) registerScopedSlots(exec *execute.ScopeResolver, level ScopeLevel) {
	c.planMu.RLock()
	plan := c.plan
	c.planMu.RUnlock()
	if plan == nil {
		return
	}
	for _, sp := range plan.ScopePlans {
		if ScopeLevel(sp.Level) != level {
			continue
		}
		for _, slot := range sp.Slots {
			wf := plan.Workflows[slot]
			if wf.Lifetime == int(Scoped) {
				exec.RegisterSlot(slot, lockModeToExecute(wf.EffectiveLock))
			}
		}
	}
}

// Close drains this resolver's cleanup stack, and the cleanup stacks
// of every intermediate level a multi-hop EnterScope built on the way
// here, deepest first. It does not recurse into scopes entered before
// this one; callers should Close the deepest scope first.
func (h *scopeHandle) Close(ctx context.Context) error {
	if len(h.owned) == 0 {
		return h.exec.Close(ctx)
	}
	var firstErr error
	for i := len(h.owned) - 1; i >= 0; i-- {
		if err := h.owned[i].exec.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Resolve builds the value addressed by key on the synchronous path.
func (h *scopeHandle) Resolve(ctx context.Context, key Key) (any, error) {
	v, err := h.resolveKey(ctx, key, false)
	return v, err
}

// AResolve builds the value addressed by key on the declared-async
// path, usable for providers registered via AddAsyncFactory/
// AddAsyncGenerator.
func (h *scopeHandle) AResolve(ctx context.Context, key Key) (any, error) {
	return h.resolveKey(ctx, key, true)
}

func (h *scopeHandle) resolveKey(ctx context.Context, key Key, async bool) (any, error) {
	if wk, ok := asWrapper(key); ok {
		return h.resolveWrapper(ctx, wk, async)
	}
	return h.resolveConcrete(ctx, key, async)
}

func (h *scopeHandle) resolveWrapper(ctx context.Context, wk wrapperKey, async bool) (any, error) {
	switch wk.wrapperKind() {
	case wrapperMaybe:
		v, err := h.resolveKey(ctx, wk.Inner(), async)
		if err != nil {
			if IsNotFound(err) {
				return zeroMaybe(), nil
			}
			return nil, err
		}
		return maybeOf(v), nil

	case wrapperProvider:
		inner := wk.Inner()
		return providerFunc(func() (any, error) { return h.Resolve(context.Background(), inner) }), nil

	case wrapperAsyncProvider:
		inner := wk.Inner()
		return asyncProviderFunc(func(ctx context.Context) (any, error) { return h.AResolve(ctx, inner) }), nil

	case wrapperFromContext:
		for frame := h; frame != nil; frame = frame.parent {
			if v, ok := frame.ctxValues[wk.Inner().identity()]; ok {
				return v, nil
			}
		}
		return nil, &DependencyNotRegisteredError{Key: wk}

	case wrapperAll:
		return h.resolveAll(ctx, wk.Inner(), async)

	default:
		return nil, fmt.Errorf("weave: unknown wrapper kind %v", wk.wrapperKind())
	}
}

func (h *scopeHandle) resolveAll(ctx context.Context, inner Key, async bool) (any, error) {
	base := BaseKey(inner)
	h.c.planMu.RLock()
	plan := h.c.plan
	var slots []int
	if plan != nil {
		slots = append([]int(nil), plan.AllSlotsByKey[base.identity()]...)
	}
	h.c.planMu.RUnlock()
	if plan == nil {
		return nil, ErrNotCompiled
	}

	results := make([]any, 0, len(slots))
	for _, slot := range slots {
		d, ok := h.c.reg.descriptorBySlot(slot)
		if !ok {
			continue
		}
		v, err := h.resolveDescriptor(ctx, d, async)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

func (h *scopeHandle) resolveConcrete(ctx context.Context, key Key, async bool) (any, error) {
	d, ok := h.c.reg.lookup(key)
	if !ok {
		if d, ok = h.matchOpenGeneric(key); !ok {
			return nil, &DependencyNotRegisteredError{Key: key}
		}
	}
	return h.resolveDescriptor(ctx, d, async)
}

// matchOpenGeneric structurally matches a concrete key's type against
// every registered open-generic template (spec.md §4.5), returning a
// synthesized Descriptor closed over the matched type if found.
func (h *scopeHandle) matchOpenGeneric(key Key) (*Descriptor, bool) {
	ck, ok := key.(concreteKey)
	if !ok {
		return nil, false
	}
	d, found := h.c.reg.matchOpenGeneric(ck.typ, generics.Match)
	return d, found
}

func (h *scopeHandle) resolveDescriptor(ctx context.Context, d *Descriptor, async bool) (any, error) {
	if d.IsAsync && !async {
		return nil, &AsyncInSyncContextError{Key: d.Key}
	}

	owner, err := h.ownerFor(d.Scope)
	if err != nil {
		return nil, err
	}

	// construct runs through owner, not h: d's dependencies (including
	// any Provider[T]/AsyncProvider[T] wrapper closures) must be bound
	// to the resolver that actually owns d's cache slot, not whichever
	// caller happened to trigger the first build. A Scoped/Instance
	// descriptor's build closure runs exactly once per cache slot, so
	// capturing h here would permanently wire a lazy wrapper to one
	// arbitrary caller's scope instead of "resolve(K) at the moment of
	// invocation" (spec.md §8 point 7) — including one that later
	// closes out from under it.
	build := func(ctx context.Context) (any, func(context.Context) error, error) {
		v, cleanup, err := owner.construct(ctx, d, async)
		if err != nil {
			owner.c.options.Logger.Error(ctx, "weave: provider build failed", "key", d.Key.String(), "scope", owner.id, "err", err)
		} else {
			owner.c.options.Logger.Debug(ctx, "weave: provider built", "key", d.Key.String(), "scope", owner.id)
		}
		return v, cleanup, err
	}

	transient := d.Lifetime == Transient
	v, err := owner.exec.Resolve(ctx, d.Slot, transient, build)
	if err != nil {
		if errors.Is(err, execute.ErrClosed) {
			if owner.level == ScopeRoot {
				return nil, ErrContainerDisposed
			}
			return nil, ErrScopeDisposed
		}
		return nil, err
	}
	return applyDecoratorsTo(ctx, owner, d, v)
}

func applyDecoratorsTo(ctx context.Context, h *scopeHandle, d *Descriptor, v any) (any, error) {
	if len(d.Decorators) == 0 {
		return v, nil
	}
	resolvedDeps := make([][]reflect.Value, len(d.Decorators))
	for i, dec := range d.Decorators {
		fnType := dec.Constructor.Type()
		args := make([]reflect.Value, 0, len(dec.Dependencies))
		for _, dep := range dec.Dependencies {
			paramIdx := len(args)
			if paramIdx >= dec.WrappedIndex {
				paramIdx++ // skip over the wrapped-value parameter, filled separately
			}
			fv, err := h.resolveArgValue(ctx, dep, fnType.In(paramIdx), false)
			if err != nil {
				return nil, err
			}
			args = append(args, fv)
		}
		resolvedDeps[i] = args
	}
	return applyDecorators(v, d.Decorators, resolvedDeps)
}

// ownerFor walks up from h to the resolver whose level equals scope,
// failing if no such ancestor has been entered yet.
func (h *scopeHandle) ownerFor(scope ScopeLevel) (*scopeHandle, error) {
	for frame := h; frame != nil; frame = frame.parent {
		if frame.level == scope {
			return frame, nil
		}
	}
	return nil, &ScopeMismatchError{
		CurrentLevel:  h.level,
		RequiredLevel: scope,
		Reason:        fmt.Sprintf("required scope level %d has not been entered from current level %d", scope, h.level),
	}
}

// construct builds d's value by resolving its dependencies and
// invoking its constructor per its Kind.
func (h *scopeHandle) construct(ctx context.Context, d *Descriptor, async bool) (any, func(context.Context) error, error) {
	switch d.Kind {
	case KindInstance:
		return d.Instance, nil, nil

	case KindConcreteType:
		return h.constructConcrete(ctx, d)

	case KindFactory:
		return h.constructCallable(ctx, d, async, false)

	case KindGenerator:
		return h.constructCallable(ctx, d, async, true)

	case KindContextManager:
		v, _, err := h.constructCallable(ctx, d, async, false)
		if err != nil {
			return nil, nil, err
		}
		if cleanup, ok := asCleanup(v); ok {
			return v, cleanup, nil
		}
		return v, nil, nil

	default:
		return nil, nil, fmt.Errorf("weave: unknown provider kind %v", d.Kind)
	}
}

func (h *scopeHandle) constructConcrete(ctx context.Context, d *Descriptor) (any, func(context.Context) error, error) {
	structPtr := reflect.New(d.ConstructorType)
	structVal := structPtr.Elem()

	for _, dep := range d.Dependencies {
		field := structVal.Field(dep.Index)
		if !field.CanSet() {
			continue
		}
		fv, err := h.resolveArgValue(ctx, dep, field.Type(), false)
		if err != nil {
			return nil, nil, err
		}
		field.Set(fv)
	}

	return structPtr.Interface(), nil, nil
}

func (h *scopeHandle) constructCallable(ctx context.Context, d *Descriptor, async, wantsCleanup bool) (any, func(context.Context) error, error) {
	fnType := d.Constructor.Type()
	args := make([]reflect.Value, 0, fnType.NumIn())

	if d.IsAsync {
		args = append(args, reflect.ValueOf(ctx))
	}

	for _, dep := range d.Dependencies {
		fv, err := h.resolveArgValue(ctx, dep, fnType.In(len(args)), async)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, fv)
	}

	results := d.Constructor.Call(args)
	return unpackResults(results, wantsCleanup)
}

// resolveArgValue resolves dep and coerces the result into a
// reflect.Value assignable to targetType, reconstructing one of the
// five wrapper marker structs/funcs when dep.Key is a wrapper key
// (the boundary between resolveKey's any-typed internal representation
// and the concrete markers.Maybe[T]/Provider[T]/... shape a
// constructor actually declares).
func (h *scopeHandle) resolveArgValue(ctx context.Context, dep Dependency, targetType reflect.Type, async bool) (reflect.Value, error) {
	raw, err := h.resolveKey(ctx, dep.Key, async)
	if err != nil {
		if dep.Optional && IsNotFound(err) {
			return reflect.Zero(targetType), nil
		}
		return reflect.Value{}, err
	}

	if wk, ok := asWrapper(dep.Key); ok {
		return buildWrapperValue(wk, targetType, raw)
	}

	if raw == nil {
		return reflect.Zero(targetType), nil
	}
	v := reflect.ValueOf(raw)
	if v.Type().AssignableTo(targetType) {
		return v, nil
	}
	if v.Type().ConvertibleTo(targetType) {
		return v.Convert(targetType), nil
	}
	return reflect.Value{}, fmt.Errorf("weave: resolved value of type %s is not assignable to %s", v.Type(), targetType)
}

func buildWrapperValue(wk wrapperKey, targetType reflect.Type, raw any) (reflect.Value, error) {
	switch wk.wrapperKind() {
	case wrapperMaybe:
		box := raw.(maybeBox)
		out := reflect.New(targetType).Elem()
		foundField := out.FieldByName("Found")
		valueField := out.FieldByName("Value")
		foundField.SetBool(box.found)
		if box.found && box.value != nil {
			v := reflect.ValueOf(box.value)
			if v.Type().AssignableTo(valueField.Type()) {
				valueField.Set(v)
			} else if v.Type().ConvertibleTo(valueField.Type()) {
				valueField.Set(v.Convert(valueField.Type()))
			}
		}
		return out, nil

	case wrapperProvider:
		fn := raw.(providerFunc)
		innerType := targetType.Out(0)
		made := reflect.MakeFunc(targetType, func(args []reflect.Value) []reflect.Value {
			v, err := fn()
			return providerResults(innerType, v, err)
		})
		return made, nil

	case wrapperAsyncProvider:
		fn := raw.(asyncProviderFunc)
		innerType := targetType.Out(0)
		made := reflect.MakeFunc(targetType, func(args []reflect.Value) []reflect.Value {
			ctx, _ := args[0].Interface().(context.Context)
			v, err := fn(ctx)
			return providerResults(innerType, v, err)
		})
		return made, nil

	case wrapperFromContext:
		out := reflect.New(targetType).Elem()
		valueField := out.FieldByName("Value")
		if raw != nil {
			v := reflect.ValueOf(raw)
			if v.Type().AssignableTo(valueField.Type()) {
				valueField.Set(v)
			} else if v.Type().ConvertibleTo(valueField.Type()) {
				valueField.Set(v.Convert(valueField.Type()))
			}
		}
		return out, nil

	case wrapperAll:
		items, _ := raw.([]any)
		out := reflect.New(targetType).Elem()
		valuesField := out.FieldByName("Values")
		elemType := valuesField.Type().Elem()
		slice := reflect.MakeSlice(valuesField.Type(), 0, len(items))
		for _, item := range items {
			v := reflect.ValueOf(item)
			if v.Type().AssignableTo(elemType) {
				slice = reflect.Append(slice, v)
			} else if v.Type().ConvertibleTo(elemType) {
				slice = reflect.Append(slice, v.Convert(elemType))
			}
		}
		valuesField.Set(slice)
		return out, nil

	default:
		return reflect.Value{}, fmt.Errorf("weave: unknown wrapper kind %v", wk.wrapperKind())
	}
}

func providerResults(innerType reflect.Type, v any, err error) []reflect.Value {
	valOut := reflect.Zero(innerType)
	if v != nil {
		rv := reflect.ValueOf(v)
		if rv.Type().AssignableTo(innerType) {
			valOut = rv
		} else if rv.Type().ConvertibleTo(innerType) {
			valOut = rv.Convert(innerType)
		}
	}
	errOut := reflect.Zero(errType)
	if err != nil {
		errOut = reflect.ValueOf(err)
	}
	return []reflect.Value{valOut, errOut}
}

func unpackResults(results []reflect.Value, wantsCleanup bool) (any, func(context.Context) error, error) {
	if len(results) == 0 {
		return nil, nil, fmt.Errorf("weave: constructor returned no values")
	}

	var value any
	var cleanup func(context.Context) error
	var buildErr error

	idx := 0
	value = results[idx].Interface()
	idx++

	if wantsCleanup && idx < len(results) {
		if fn, ok := results[idx].Interface().(func() error); ok {
			cleanup = func(context.Context) error { return fn() }
			idx++
		}
	}

	if idx < len(results) {
		last := results[idx]
		if last.Type().Implements(errType) && !last.IsNil() {
			buildErr = last.Interface().(error)
		}
	}

	if buildErr != nil {
		return nil, nil, buildErr
	}
	return value, cleanup, nil
}

// --- wrapper value helpers ---
//
// These mirror internal/markers' generic shapes at the any-typed
// boundary where reflection builds constructor arguments; the
// generic aliases in wrappers.go are what user code actually sees.

type providerFunc func() (any, error)
type asyncProviderFunc func(context.Context) (any, error)

func maybeOf(v any) any { return maybeBox{value: v, found: true} }
func zeroMaybe() any    { return maybeBox{found: false} }

type maybeBox struct {
	value any
	found bool
}
