package weave

import "reflect"

var errType = reflect.TypeOf((*error)(nil)).Elem()

// ProviderKind distinguishes the five ways a value can be produced.
type ProviderKind int

const (
	// KindInstance wraps an already-built value; never calls anything.
	KindInstance ProviderKind = iota

	// KindConcreteType constructs a Go struct by reflecting over its
	// exported fields as dependencies (no explicit constructor func).
	KindConcreteType

	// KindFactory calls a plain func(deps...) (T, error) once per
	// cache slot.
	KindFactory

	// KindGenerator calls a func(deps...) (T, cleanup func() error, error)
	// shaped constructor; cleanup is pushed onto the owning scope's
	// cleanup stack.
	KindGenerator

	// KindContextManager wraps a constructor returning a value that
	// implements Disposable; Close is pushed onto the cleanup stack.
	KindContextManager
)

func (k ProviderKind) String() string {
	switch k {
	case KindInstance:
		return "Instance"
	case KindConcreteType:
		return "ConcreteType"
	case KindFactory:
		return "Factory"
	case KindGenerator:
		return "Generator"
	case KindContextManager:
		return "ContextManager"
	default:
		return "Unknown"
	}
}

// Dependency is one parameter position of a provider's constructor,
// resolved against the registry before the provider itself runs.
type Dependency struct {
	Key      Key
	Optional bool // satisfied by Maybe(Key) semantics
	Index    int  // parameter position in the constructor signature
}

// Descriptor is the fully analyzed, not-yet-planned record of one
// registered provider: what it produces, how it is built, and what it
// needs. The planner consumes a registry of Descriptors and produces a
// ResolverGenerationPlan (internal/planner).
type Descriptor struct {
	Key   Key
	Kind  ProviderKind
	Scope ScopeLevel

	Lifetime Lifetime
	LockMode LockMode

	// Constructor is the reflect.Value of the func for Kind in
	// {Factory, Generator, ContextManager}, or the zero Value for
	// Instance/ConcreteType.
	Constructor reflect.Value

	// ConstructorType caches Constructor.Type() (or the struct type
	// for KindConcreteType) so the planner never calls reflect.Value
	// methods on a possibly-zero Value.
	ConstructorType reflect.Type

	// Instance holds the pre-built value for KindInstance.
	Instance any

	Dependencies []Dependency

	// IsAsync is true when Constructor's first parameter implements
	// context.Context, per the extractor's declared-async rule
	// (spec.md §4.1 step 4); such a provider is built only on the
	// AResolve path.
	IsAsync bool

	// NeedsCleanup is true for every KindGenerator and KindContextManager
	// descriptor, whether or not the value a context manager produces
	// turns out to implement Disposable.
	NeedsCleanup bool

	// Slot is the stable integer index this descriptor occupies in
	// the compiled resolver's per-scope cache array. Assigned by the
	// registry on insert; never reused after removal within the same
	// registry generation.
	Slot int

	// Decorators holds the ordered chain of decorator funcs applied
	// around this provider's built value, outermost last (spec.md §3.1
	// Decoration Chain / §4.2 step 7).
	Decorators []Decorator
}

// Decorator wraps a built value of the type it decorates, optionally
// taking extra dependencies resolved the same way constructor
// parameters are.
type Decorator struct {
	Constructor  reflect.Value
	Dependencies []Dependency // excludes the wrapped-value parameter itself
	WrappedIndex int          // parameter position receiving the previous value in the chain
}
