// Package weave is a dependency-injection runtime. It plans a
// resolution graph from registered providers and compiles it into a
// resolver tree that performs Resolve/AResolve, EnterScope, and
// deterministic cleanup.
//
// A minimal container:
//
//	c := weave.NewContainer(weave.DefaultScopeSet())
//	c.AddFactory(weave.ScopeRoot, weave.Scoped, NewLogger)
//	c.AddFactory(weave.ScopeRoot, weave.Scoped, NewSession)
//
//	r, err := c.Compile()
//	logger, err := weave.ResolveAs[*Logger](context.Background(), r)
package weave
