package weave

import (
	"context"
	"reflect"

	"weave/internal/reflectx"
)

// WeaveResolver is Inject's reserved resolver-injection type (spec.md
// §4.6's diwire_resolver, renamed to a Go type since function
// parameters carry no names to reserve at the language level). A
// parameter of this type on an injected callable receives the
// Resolver bound to the current call instead of appearing in the
// wrapped function's signature. Declaring it as an ordinary
// constructor dependency is rejected at registration time.
type WeaveResolver struct{ Resolver }

// WeaveContext is WeaveResolver's context.Context counterpart
// (spec.md §4.6's diwire_context).
type WeaveContext struct{ context.Context }

var (
	weaveResolverType = reflect.TypeOf(WeaveResolver{})
	weaveContextType  = reflect.TypeOf(WeaveContext{})
	ctxContextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// isReservedInjectType reports whether t is one of Inject's reserved
// parameter types, used by collection.go to reject them on ordinary
// registrations.
func isReservedInjectType(t reflect.Type) bool {
	return t == weaveResolverType || t == weaveContextType
}

// InjectOption customizes one Inject call.
type InjectOption func(*injectConfig)

type injectConfig struct {
	scope         ScopeLevel
	hasScope      bool
	autoOpenScope *bool
}

// WithInjectScope pins the scope Inject resolves dependencies at,
// instead of inferring it from the deepest scope among them.
func WithInjectScope(level ScopeLevel) InjectOption {
	return func(c *injectConfig) { c.scope, c.hasScope = level, true }
}

// WithAutoOpenScope overrides ContainerOptions.AutoOpenScope for a
// single Inject call.
func WithAutoOpenScope(enabled bool) InjectOption {
	return func(c *injectConfig) { c.autoOpenScope = &enabled }
}

// injectParam classifies one parameter position of the wrapped
// callable's original signature.
type injectParam struct {
	isResolver bool
	isContext  bool
	wrapped    bool // true for WeaveContext, false for plain context.Context
	dep        Dependency
	paramType  reflect.Type
}

// Inject wraps fn (any func value) into a new func of narrower arity:
// every WeaveResolver/WeaveContext/context.Context parameter is
// dropped from the returned signature and filled automatically: the
// remaining parameters stay in the signature but are resolved from c
// whenever the caller passes their zero value, so an explicit
// argument always overrides the injected one (spec.md §4.6, "explicit
// caller arguments always override injected ones").
//
// The scope Inject resolves at is inferred from the deepest scope
// level among fn's dependencies, unless overridden with
// WithInjectScope. If that level is deeper than root and
// AutoOpenScope (ContainerOptions or WithAutoOpenScope) is disabled,
// calling the wrapped function returns ErrNoResolverBound.
//
// Generalizes the teacher's Resolve[T]/ResolveKeyed[T]/ResolveGroup[T]
// generic helpers (container_helpers.go) from "resolve one value" to
// "resolve a whole callable's parameter list".
func Inject(c *Container, fn any, opts ...InjectOption) (any, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return nil, &InvalidRegistrationError{Reason: "Inject target must be a function"}
	}
	fnType := fnVal.Type()

	cfg := &injectConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	info, err := c.analyzer.Analyze(fn)
	if err != nil {
		return nil, &InvalidRegistrationError{Reason: err.Error(), Cause: err}
	}

	params := make([]injectParam, fnType.NumIn())
	var keepIdx []int
	for i := 0; i < fnType.NumIn(); i++ {
		switch fnType.In(i) {
		case weaveResolverType:
			params[i] = injectParam{isResolver: true}
		case weaveContextType:
			params[i] = injectParam{isContext: true, wrapped: true}
		case ctxContextType:
			params[i] = injectParam{isContext: true, wrapped: false}
		default:
			keepIdx = append(keepIdx, i)
		}
	}

	// info.Parameters already excludes whichever leading parameter the
	// analyzer treated as the async context.Context convention; filter
	// out anything else reserved so depParams lines up 1:1 with keepIdx.
	depParams := make([]reflectx.ParameterInfo, 0, len(keepIdx))
	for _, p := range info.Parameters {
		if p.Index < len(params) && (params[p.Index].isResolver || params[p.Index].isContext) {
			continue
		}
		depParams = append(depParams, p)
	}
	deps, err := c.dependenciesFromParams(depParams)
	if err != nil {
		return nil, &InvalidRegistrationError{Reason: err.Error(), Cause: err}
	}
	if len(deps) != len(keepIdx) {
		return nil, &InvalidRegistrationError{Reason: "Inject could not match every non-reserved parameter to a dependency"}
	}

	maxScope := ScopeRoot
	for i, dep := range deps {
		idx := keepIdx[i]
		params[idx] = injectParam{dep: dep, paramType: fnType.In(idx)}
		lookupKey := dep.Key
		if wk, ok := asWrapper(lookupKey); ok && wk.wrapperKind() != wrapperProvider && wk.wrapperKind() != wrapperAsyncProvider {
			lookupKey = wk.Inner()
		}
		if d, ok := c.reg.lookup(lookupKey); ok && d.Scope > maxScope {
			maxScope = d.Scope
		}
	}

	targetScope := maxScope
	if cfg.hasScope {
		targetScope = cfg.scope
	}
	autoOpen := c.options.AutoOpenScope
	if cfg.autoOpenScope != nil {
		autoOpen = *cfg.autoOpenScope
	}

	wrappedIn := make([]reflect.Type, len(keepIdx))
	for i, idx := range keepIdx {
		wrappedIn[i] = fnType.In(idx)
	}
	wrappedOut := make([]reflect.Type, fnType.NumOut())
	for i := range wrappedOut {
		wrappedOut[i] = fnType.Out(i)
	}
	variadic := false
	if fnType.IsVariadic() && len(keepIdx) > 0 && keepIdx[len(keepIdx)-1] == fnType.NumIn()-1 {
		variadic = true
	}
	wrappedType := reflect.FuncOf(wrappedIn, wrappedOut, variadic)

	made := reflect.MakeFunc(wrappedType, func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		for i, idx := range keepIdx {
			if fnType.In(idx) == ctxContextType && !args[i].IsNil() {
				ctx = args[i].Interface().(context.Context)
			}
		}

		resolver, err := c.resolverOrCompile()
		if err != nil {
			return injectErrorResults(wrappedOut, err)
		}
		if targetScope > ScopeRoot {
			if !autoOpen {
				return injectErrorResults(wrappedOut, ErrNoResolverBound)
			}
			scoped, err := resolver.EnterScope(ctx, targetScope)
			if err != nil {
				return injectErrorResults(wrappedOut, err)
			}
			defer scoped.Close(ctx)
			resolver = scoped
		}
		h, ok := resolver.(*scopeHandle)
		if !ok {
			return injectErrorResults(wrappedOut, ErrNoResolverBound)
		}

		full := make([]reflect.Value, fnType.NumIn())
		for i, p := range params {
			switch {
			case p.isResolver:
				full[i] = reflect.ValueOf(WeaveResolver{Resolver: resolver})
			case p.isContext && p.wrapped:
				full[i] = reflect.ValueOf(WeaveContext{Context: ctx})
			case p.isContext:
				full[i] = reflect.ValueOf(ctx)
			}
		}
		for i, idx := range keepIdx {
			if params[idx].isResolver || params[idx].isContext {
				continue
			}
			arg := args[i]
			if !arg.IsZero() {
				full[idx] = arg
				continue
			}
			fv, err := h.resolveArgValue(ctx, params[idx].dep, params[idx].paramType, false)
			if err != nil {
				return injectErrorResults(wrappedOut, err)
			}
			full[idx] = fv
		}

		return fnVal.Call(full)
	})

	return made.Interface(), nil
}

func injectErrorResults(outTypes []reflect.Type, err error) []reflect.Value {
	out := make([]reflect.Value, len(outTypes))
	for i, t := range outTypes {
		if t.Implements(errType) {
			out[i] = reflect.ValueOf(err)
		} else {
			out[i] = reflect.Zero(t)
		}
	}
	return out
}
