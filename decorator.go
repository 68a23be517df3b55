package weave

import (
	"fmt"
	"reflect"
)

// applyDecorators runs every decorator registered for typ over
// instance, outermost-last, returning the fully decorated value.
// Grounded on the teacher's scope.applyDecorators, generalized to take
// an already-resolved dependency slice per decorator instead of
// re-resolving through a *scope receiver (the compiled resolver
// supplies resolved values; applyDecorators only wires them in).
func applyDecorators(instance any, decorators []Decorator, resolvedDeps [][]reflect.Value) (any, error) {
	if len(decorators) != len(resolvedDeps) {
		return nil, fmt.Errorf("weave: %d decorators but %d resolved dependency sets", len(decorators), len(resolvedDeps))
	}

	current := instance
	for i, dec := range decorators {
		decorated, err := invokeDecorator(dec, current, resolvedDeps[i])
		if err != nil {
			return nil, fmt.Errorf("weave: decorator %d failed: %w", i, err)
		}
		current = decorated
	}
	return current, nil
}

// invokeDecorator calls dec.Constructor with the previous value spliced
// into WrappedIndex and extraDeps filling every other parameter.
func invokeDecorator(dec Decorator, wrapped any, extraDeps []reflect.Value) (any, error) {
	fnType := dec.Constructor.Type()
	args := make([]reflect.Value, fnType.NumIn())

	if dec.WrappedIndex < 0 || dec.WrappedIndex >= len(args) {
		return nil, fmt.Errorf("wrapped-value index %d out of range for %d parameters", dec.WrappedIndex, len(args))
	}

	wrappedVal := reflect.ValueOf(wrapped)
	if !wrappedVal.IsValid() {
		wrappedVal = reflect.Zero(fnType.In(dec.WrappedIndex))
	}
	args[dec.WrappedIndex] = wrappedVal

	extraIdx := 0
	for i := range args {
		if i == dec.WrappedIndex {
			continue
		}
		if extraIdx >= len(extraDeps) {
			return nil, fmt.Errorf("decorator missing resolved value for parameter %d", i)
		}
		args[i] = extraDeps[extraIdx]
		extraIdx++
	}

	results := dec.Constructor.Call(args)
	if len(results) == 0 {
		return nil, fmt.Errorf("decorator returned no value")
	}

	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	return results[0].Interface(), nil
}

// validateDecoratorShape enforces spec.md §4.2 step 8's decorator
// rule: a decorator must not be a generator or async generator (it
// must return exactly (T) or (T, error); cleanup-producing shapes are
// rejected).
func validateDecoratorShape(fnType reflect.Type) error {
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("decorator must be a function, got %v", fnType.Kind())
	}
	if fnType.NumIn() == 0 {
		return fmt.Errorf("decorator must take the wrapped value as a parameter")
	}
	switch fnType.NumOut() {
	case 1:
		return nil
	case 2:
		if fnType.Out(1).Implements(errType) {
			return nil
		}
		return fmt.Errorf("decorator's second return must be error")
	default:
		return fmt.Errorf("decorator must return (T) or (T, error), not %d values", fnType.NumOut())
	}
}
