package weave

import (
	"fmt"
	"reflect"
	"strings"
)

// Key identifies one addressable slot in a registry: a concrete type,
// a type annotated with a qualifying component, an open-generic
// template, or one of the wrapper forms (Maybe, Provider,
// AsyncProvider, FromContext, All).
type Key interface {
	// identity is a canonical string used for map-keying and
	// equality; two keys with the same identity address the same
	// slot.
	identity() string

	String() string
}

// typeID renders a reflect.Type the way identity() wants it: including
// package path so two same-named types in different packages never
// collide.
func typeID(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.String()
	}
	return t.String()
}

// concreteKey addresses a plain Go type with no qualifier.
type concreteKey struct {
	typ reflect.Type
}

// Concrete builds the Key for an unqualified type, e.g. Concrete(reflect.TypeOf(Logger{})).
func Concrete(t reflect.Type) Key {
	return concreteKey{typ: t}
}

func (k concreteKey) identity() string { return "concrete:" + typeID(k.typ) }
func (k concreteKey) String() string   { return k.typ.String() }
func (k concreteKey) Type() reflect.Type { return k.typ }

// Component is an opaque qualifier distinguishing multiple providers
// of the same type, e.g. Component("primary") for two *sql.DB
// registrations.
type Component string

// annotatedKey is a concrete type qualified by a component marker and
// optional free-form metadata. Metadata participates in String() for
// diagnostics but not in identity(); only the component marker
// disambiguates slots, matching the spec's component-key identity
// rule (spec.md §3.1 Key invariant).
type annotatedKey struct {
	base      Key
	component Component
	metadata  []any
}

// Annotated builds a component-qualified key over base. metadata is
// carried for diagnostics only (String); it plays no part in identity()
// and so none in lookup or decoration matching.
func Annotated(base Key, component Component, metadata ...any) Key {
	return annotatedKey{base: base, component: component, metadata: metadata}
}

func (k annotatedKey) identity() string {
	return k.base.identity() + "#" + string(k.component)
}

func (k annotatedKey) String() string {
	if len(k.metadata) == 0 {
		return fmt.Sprintf("%s[%s]", k.base, k.component)
	}
	return fmt.Sprintf("%s[%s,%v]", k.base, k.component, k.metadata)
}

func (k annotatedKey) Component() Component { return k.component }
func (k annotatedKey) Metadata() []any       { return k.metadata }
func (k annotatedKey) Base() Key             { return k.base }

// BaseKey strips an annotatedKey down to its underlying type key,
// dropping both the component marker and metadata. Used by the All[K]
// wrapper to group every registration of a type regardless of which
// component qualifies it (spec.md §4.3.3).
func BaseKey(k Key) Key {
	if ak, ok := k.(annotatedKey); ok {
		return BaseKey(ak.base)
	}
	return k
}

// openGenericKey addresses a generic type template with one or more
// free type variables still unbound, e.g. Repository[generics.TypeVar].
// It is never resolved directly; at resolve time the registry matches
// it structurally against a closed candidate key that has no exact
// registration (see internal/generics).
type openGenericKey struct {
	template reflect.Type
}

// OpenGeneric builds the Key for a generic template type instantiated
// with sentinel type-variable markers in place of its free parameters.
func OpenGeneric(template reflect.Type) Key {
	return openGenericKey{template: template}
}

func (k openGenericKey) identity() string { return "opengeneric:" + typeID(k.template) }
func (k openGenericKey) String() string   { return k.template.String() }
func (k openGenericKey) Template() reflect.Type { return k.template }

// wrapperKind enumerates the dependency-site wrapper forms recognized
// by the extractor (spec.md §4.1 step 3).
type wrapperKind int

const (
	wrapperMaybe wrapperKind = iota
	wrapperProvider
	wrapperAsyncProvider
	wrapperFromContext
	wrapperAll
)

func (w wrapperKind) String() string {
	switch w {
	case wrapperMaybe:
		return "Maybe"
	case wrapperProvider:
		return "Provider"
	case wrapperAsyncProvider:
		return "AsyncProvider"
	case wrapperFromContext:
		return "FromContext"
	case wrapperAll:
		return "All"
	default:
		return "Unknown"
	}
}

// wrapperKey is implemented by every wrapper form so the extractor and
// executor can branch on kind/inner uniformly without a type switch
// per wrapper.
type wrapperKey interface {
	Key
	wrapperKind() wrapperKind
	Inner() Key
}

type maybeKey struct{ inner Key }

// MaybeKey wraps inner so resolution returns (T, bool) semantics
// instead of failing when inner is unregistered.
func MaybeKey(inner Key) Key { return maybeKey{inner: inner} }

func (k maybeKey) identity() string      { return "maybe:" + k.inner.identity() }
func (k maybeKey) String() string        { return fmt.Sprintf("Maybe[%s]", k.inner) }
func (k maybeKey) wrapperKind() wrapperKind { return wrapperMaybe }
func (k maybeKey) Inner() Key            { return k.inner }

type providerKey struct{ inner Key }

// ProviderKey wraps inner so resolution returns a lazy func() (T, error)
// instead of eagerly building T.
func ProviderKey(inner Key) Key { return providerKey{inner: inner} }

func (k providerKey) identity() string      { return "provider:" + k.inner.identity() }
func (k providerKey) String() string        { return fmt.Sprintf("Provider[%s]", k.inner) }
func (k providerKey) wrapperKind() wrapperKind { return wrapperProvider }
func (k providerKey) Inner() Key            { return k.inner }

type asyncProviderKey struct{ inner Key }

// AsyncProviderKey wraps inner so resolution returns a lazy
// func(context.Context) (T, error) usable from goroutines that want to
// defer the build.
func AsyncProviderKey(inner Key) Key { return asyncProviderKey{inner: inner} }

func (k asyncProviderKey) identity() string      { return "asyncprovider:" + k.inner.identity() }
func (k asyncProviderKey) String() string        { return fmt.Sprintf("AsyncProvider[%s]", k.inner) }
func (k asyncProviderKey) wrapperKind() wrapperKind { return wrapperAsyncProvider }
func (k asyncProviderKey) Inner() Key            { return k.inner }

type fromContextKey struct{ inner Key }

// FromContextKey wraps inner so resolution is satisfied by a value
// previously bound on the resolving scope handle (WithContextValue,
// searched from the current scope outward) rather than by a provider;
// the context.Context passed to Resolve is not consulted.
func FromContextKey(inner Key) Key { return fromContextKey{inner: inner} }

func (k fromContextKey) identity() string      { return "fromcontext:" + k.inner.identity() }
func (k fromContextKey) String() string        { return fmt.Sprintf("FromContext[%s]", k.inner) }
func (k fromContextKey) wrapperKind() wrapperKind { return wrapperFromContext }
func (k fromContextKey) Inner() Key            { return k.inner }

type allKey struct{ inner Key }

// AllKey wraps inner so resolution returns every provider registered
// for BaseKey(inner), in registration order, instead of just the most
// recent one.
func AllKey(inner Key) Key { return allKey{inner: inner} }

func (k allKey) identity() string      { return "all:" + BaseKey(k.inner).identity() }
func (k allKey) String() string        { return fmt.Sprintf("All[%s]", k.inner) }
func (k allKey) wrapperKind() wrapperKind { return wrapperAll }
func (k allKey) Inner() Key            { return k.inner }

// asWrapper returns k's wrapperKey view and true if k is one of the
// five wrapper forms.
func asWrapper(k Key) (wrapperKey, bool) {
	wk, ok := k.(wrapperKey)
	return wk, ok
}

// keyDescription joins a chain of keys for diagnostics, e.g. in cycle
// error messages.
func keyDescription(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, " -> ")
}
