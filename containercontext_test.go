package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ccWidget struct{ id int }
type ccGizmo struct{}

func TestContainerContext_RecordsBeforeBoundAndReplaysInOrder(t *testing.T) {
	cc := NewContainerContext()
	assert.False(t, cc.Bound())
	assert.Nil(t, cc.Current())

	require.NoError(t, cc.AddFactory(ScopeRoot, Scoped, func() *ccWidget { return &ccWidget{id: 1} }))
	require.NoError(t, cc.AddFactory(ScopeRoot, Scoped, func() *ccGizmo { return &ccGizmo{} }))

	c := NewContainer(nil)
	require.NoError(t, cc.SetCurrent(c))

	assert.True(t, cc.Bound())
	assert.Same(t, c, cc.Current())

	_, ok := c.reg.lookup(Concrete(typeOf[*ccWidget]()))
	assert.True(t, ok, "actions recorded before SetCurrent must be replayed against the bound container")
	_, ok = c.reg.lookup(Concrete(typeOf[*ccGizmo]()))
	assert.True(t, ok)
}

func TestContainerContext_SetCurrentStopsAtFirstErrorAndLeavesUnbound(t *testing.T) {
	cc := NewContainerContext()

	require.NoError(t, cc.AddFactory(ScopeRoot, Scoped, func() *ccWidget { return &ccWidget{id: 1} }))
	require.NoError(t, cc.Decorate(Concrete(typeOf[*ccWidget]()), nil)) // will fail to replay: nil decorator

	c := NewContainer(nil)
	err := cc.SetCurrent(c)
	assert.ErrorIs(t, err, ErrNilDecorator)
	assert.False(t, cc.Bound(), "a failing replay must leave the context unbound")
	assert.Nil(t, cc.Current())
}

func TestContainerContext_CallsAfterBindingApplyDirectly(t *testing.T) {
	cc := NewContainerContext()
	c := NewContainer(nil)
	require.NoError(t, cc.SetCurrent(c))

	require.NoError(t, cc.AddFactory(ScopeRoot, Scoped, func() *ccWidget { return &ccWidget{id: 2} }))

	_, ok := c.reg.lookup(Concrete(typeOf[*ccWidget]()))
	assert.True(t, ok, "a call made after binding must apply directly to the bound container")
}

func TestContainerContext_DirectCallErrorPropagates(t *testing.T) {
	cc := NewContainerContext()
	c := NewContainer(nil)
	require.NoError(t, cc.SetCurrent(c))

	err := cc.Decorate(Concrete(typeOf[*ccWidget]()), nil)
	assert.ErrorIs(t, err, ErrNilDecorator)
}
