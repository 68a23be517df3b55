package weave

import (
	"context"
	"fmt"
	"reflect"
)

// typeOf returns the reflect.Type for T without needing a live value,
// letting ResolveAs/AResolveAs build the lookup Key purely from the
// type parameter.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ResolveAs resolves T's concrete key from r and type-asserts the
// result, the generic convenience wrapper around Resolver.Resolve
// spec.md §6 describes as the external entry point most callers use
// instead of building a Key by hand.
func ResolveAs[T any](ctx context.Context, r Resolver) (T, error) {
	var zero T
	v, err := r.Resolve(ctx, Concrete(typeOf[T]()))
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("weave: resolved value of type %T is not assignable to %T", v, zero)
	}
	return t, nil
}

// ResolveKeyed is ResolveAs qualified by a Component marker, for
// disambiguating multiple providers of the same type.
func ResolveKeyed[T any](ctx context.Context, r Resolver, component Component) (T, error) {
	var zero T
	v, err := r.Resolve(ctx, Annotated(Concrete(typeOf[T]()), component))
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("weave: resolved value of type %T is not assignable to %T", v, zero)
	}
	return t, nil
}

// AResolveAs is ResolveAs on the declared-async path.
func AResolveAs[T any](ctx context.Context, r Resolver) (T, error) {
	var zero T
	v, err := r.AResolve(ctx, Concrete(typeOf[T]()))
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("weave: resolved value of type %T is not assignable to %T", v, zero)
	}
	return t, nil
}

// ResolveAll resolves every provider registered for T's base key, in
// registration order, the generic form of the All[T] wrapper for
// callers with a live Resolver instead of a constructor parameter.
func ResolveAll[T any](ctx context.Context, r Resolver) ([]T, error) {
	v, err := r.Resolve(ctx, AllKey(Concrete(typeOf[T]())))
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("weave: All[%T] returned unexpected type %T", *new(T), v)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		t, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("weave: element of type %T is not assignable to %T", item, *new(T))
		}
		out = append(out, t)
	}
	return out, nil
}
