package weave

// ModuleOption is one registration action applied to a Container.
// Modules group related registrations so they can be composed and
// reused across containers, generalizing the teacher's
// ModuleBuilder/Module pattern (module.go) from a fixed set of
// lifetime-specific helpers to weave's Add*/Decorate surface.
type ModuleOption func(*Container) error

// Module bundles builders under name so a failure anywhere in the
// bundle is reported with that name attached.
//
//	var DatabaseModule = weave.Module("database",
//	    weave.WithFactory(weave.ScopeRoot, weave.Scoped, NewDatabaseConnection),
//	    weave.WithFactory(weave.ScopeRoot, weave.Scoped, NewUserRepository),
//	)
func Module(name string, opts ...ModuleOption) ModuleOption {
	return func(c *Container) error {
		for _, opt := range opts {
			if opt == nil {
				continue
			}
			if err := opt(c); err != nil {
				return &ModuleError{Module: name, Cause: err}
			}
		}
		return nil
	}
}

// WithModule nests another module's options inside the current one.
func WithModule(module ModuleOption) ModuleOption {
	return func(c *Container) error {
		if module == nil {
			return nil
		}
		return module(c)
	}
}

// WithFactory returns a ModuleOption that calls AddFactory.
func WithFactory(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) ModuleOption {
	return func(c *Container) error { return c.AddFactory(scope, lifetime, constructor, opts...) }
}

// WithGenerator returns a ModuleOption that calls AddGenerator.
func WithGenerator(scope ScopeLevel, lifetime Lifetime, constructor any, opts ...AddOption) ModuleOption {
	return func(c *Container) error { return c.AddGenerator(scope, lifetime, constructor, opts...) }
}

// WithInstance returns a ModuleOption that calls AddInstance.
func WithInstance(value any, opts ...AddOption) ModuleOption {
	return func(c *Container) error { return c.AddInstance(value, opts...) }
}

// WithDecorator returns a ModuleOption that calls Decorate.
func WithDecorator(target Key, decorator any) ModuleOption {
	return func(c *Container) error { return c.Decorate(target, decorator) }
}
