package weave

import "time"

// ContainerOptions configures a Container, generalizing the teacher's
// ServiceProviderOptions (container_options.go) to weave's scope and
// async model.
type ContainerOptions struct {
	// Logger receives registration/resolution lifecycle events.
	// Defaults to a slog-backed Logger over slog.Default().
	Logger Logger

	// ResolveTimeout is stored on the options but not read by Resolve,
	// AResolve or Compile; no call is bounded by it.
	ResolveTimeout time.Duration

	// RecoverPanics is stored on the options but not read; a panic
	// raised inside a constructor, decorator, or cleanup callback
	// propagates to the caller.
	RecoverPanics bool

	// DeferCycleVerification is stored on the options but not read;
	// Compile always runs the cycle check eagerly.
	DeferCycleVerification bool

	// AutoOpenScope lets a function wrapped by Inject enter its target
	// scope (the deepest scope its dependencies need, or the one set
	// with WithInjectScope) when that scope is deeper than root. When
	// disabled, such a call fails with ErrNoResolverBound.
	AutoOpenScope bool
}

// defaultContainerOptions returns the zero-value-safe baseline every
// NewContainer call starts from.
func defaultContainerOptions() *ContainerOptions {
	return &ContainerOptions{
		Logger: NewSlogLogger(nil),
	}
}

// orDefault returns a copy of o with a nil Logger replaced by the
// default one, or the defaults themselves when o is nil.
func (o *ContainerOptions) orDefault() *ContainerOptions {
	d := defaultContainerOptions()
	if o == nil {
		return d
	}
	merged := *o
	if merged.Logger == nil {
		merged.Logger = d.Logger
	}
	return &merged
}
