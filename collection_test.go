package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctLogger struct{ prefix string }
type ctRepository struct{ Logger *ctLogger }

func newCTLogger() *ctLogger { return &ctLogger{prefix: "log"} }

func TestContainer_AddInstance_RejectsNil(t *testing.T) {
	c := NewContainer(nil)
	err := c.AddInstance(nil)
	assert.Error(t, err)
}

func TestContainer_AddInstance_RegistersAtRootScoped(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.AddInstance(&ctLogger{prefix: "x"}))

	d, ok := c.reg.lookup(Concrete(typeOf[*ctLogger]()))
	require.True(t, ok)
	assert.Equal(t, KindInstance, d.Kind)
	assert.Equal(t, ScopeRoot, d.Scope)
	assert.Equal(t, Scoped, d.Lifetime)
}

func TestContainer_AddConcrete_RequiresNilPointer(t *testing.T) {
	c := NewContainer(nil)
	err := c.AddConcrete(ScopeRoot, Scoped, ctRepository{})
	assert.Error(t, err)
}

func TestContainer_AddConcrete_DerivesFieldDependencies(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, newCTLogger))
	require.NoError(t, c.AddConcrete(ScopeRoot, Scoped, (*ctRepository)(nil)))

	d, ok := c.reg.lookup(Concrete(typeOf[*ctRepository]()))
	require.True(t, ok)
	require.Len(t, d.Dependencies, 1)
	assert.Equal(t, Concrete(typeOf[*ctLogger]()).identity(), d.Dependencies[0].Key.identity())
}

func TestContainer_AddFactory_RejectsReservedParamTypes(t *testing.T) {
	c := NewContainer(nil)
	err := c.AddFactory(ScopeRoot, Scoped, func(wr WeaveResolver) *ctLogger { return nil })
	assert.Error(t, err, "WeaveResolver must be rejected as an ordinary dependency")
}

func TestContainer_AddGenerator_RequiresCleanupReturn(t *testing.T) {
	c := NewContainer(nil)
	err := c.AddGenerator(ScopeRoot, Scoped, func() *ctLogger { return nil })
	assert.Error(t, err)

	err = c.AddGenerator(ScopeRoot, Scoped, func() (*ctLogger, func() error) {
		return &ctLogger{}, func() error { return nil }
	})
	assert.NoError(t, err)
}

func TestContainer_AddAsyncFactory_RequiresContextFirstParam(t *testing.T) {
	c := NewContainer(nil)
	err := c.AddAsyncFactory(ScopeRoot, Scoped, newCTLogger)
	assert.Error(t, err, "a non-context-first constructor must be rejected by AddAsyncFactory")
}

func TestContainer_Insert_RevalidatesScopeContracts(t *testing.T) {
	scopes := NewScopeSetBuilder().Add("root", false).Add("request", false).Build()
	c := NewContainer(scopes)

	require.NoError(t, c.AddFactory(ScopeLevel(1), Scoped, newCTLogger))
	err := c.AddConcrete(ScopeRoot, Scoped, (*ctRepository)(nil))
	assert.Error(t, err, "a root-scoped provider cannot eagerly depend on a deeper-scoped one")
}

func TestContainer_Insert_AllowsDeeperDependencyBehindProviderWrapper(t *testing.T) {
	scopes := NewScopeSetBuilder().Add("root", false).Add("request", false).Build()
	c := NewContainer(scopes)

	require.NoError(t, c.AddFactory(ScopeLevel(1), Scoped, newCTLogger))
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, func(p Provider[*ctLogger]) *ctRepository { return nil }))
}

func TestContainer_Decorate_RejectsNilAndNonFunc(t *testing.T) {
	c := NewContainer(nil)
	target := Concrete(typeOf[*ctLogger]())

	assert.ErrorIs(t, c.Decorate(target, nil), ErrNilDecorator)
	assert.Error(t, c.Decorate(target, "not a func"))
}

func TestContainer_Decorate_RejectsGeneratorShapedDecorator(t *testing.T) {
	c := NewContainer(nil)
	target := Concrete(typeOf[*ctLogger]())

	err := c.Decorate(target, func(l *ctLogger) (*ctLogger, func() error) { return l, nil })
	assert.Error(t, err)
}
