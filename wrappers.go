package weave

import "weave/internal/markers"

// Maybe, Provider, AsyncProvider, FromContext, and All are the wrapper
// shapes a constructor parameter can declare to get something other
// than a plain eager value for a dependency. The extractor
// (internal/reflectx) recognizes these structurally; see
// internal/markers for the underlying definitions shared with it.
type (
	Maybe[T any]         = markers.Maybe[T]
	Provider[T any]      = markers.Provider[T]
	AsyncProvider[T any] = markers.AsyncProvider[T]
	FromContext[T any]   = markers.FromContext[T]
	All[T any]           = markers.All[T]
)
