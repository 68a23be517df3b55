package weave

import "context"

// Disposable is implemented by values produced through
// AddContextManager that need deterministic cleanup when their owning
// scope resolver exits. Close runs without a context; use
// DisposableWithContext when cleanup should observe cancellation.
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware form of Disposable.
// When both are implemented, the compiled resolver prefers this one.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// cleanupFunc is the uniform shape every cleanup source (a generator's
// returned teardown, a Disposable's Close, scope-transition bookkeeping)
// is normalized to before it is pushed onto a scope's LIFO stack.
type cleanupFunc func(ctx context.Context) error

// asCleanup adapts a produced value into a cleanupFunc if it satisfies
// either disposal interface, or returns (nil, false) otherwise.
func asCleanup(v any) (cleanupFunc, bool) {
	switch d := v.(type) {
	case DisposableWithContext:
		return d.Close, true
	case Disposable:
		return func(context.Context) error { return d.Close() }, true
	default:
		return nil, false
	}
}
