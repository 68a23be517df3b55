package weave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type injLogger struct{ prefix string }
type injRepo struct{ Logger *injLogger }

func TestInject_DropsReservedParamsFromWrappedSignature(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, func() *injLogger { return &injLogger{prefix: "x"} }))

	fn, err := Inject(c, func(wr WeaveResolver, wc WeaveContext, l *injLogger) *injLogger {
		return l
	})
	require.NoError(t, err)

	wrapped, ok := fn.(func(*injLogger) *injLogger)
	require.True(t, ok, "WeaveResolver and WeaveContext must be excluded from the wrapped signature")

	out := wrapped(nil)
	require.NotNil(t, out)
	assert.Equal(t, "x", out.prefix)
}

func TestInject_ZeroValueTriggersInjectionNonZeroWins(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, func() *injLogger { return &injLogger{prefix: "from-container"} }))

	fn, err := Inject(c, func(l *injLogger) string { return l.prefix })
	require.NoError(t, err)
	wrapped := fn.(func(*injLogger) string)

	assert.Equal(t, "from-container", wrapped(nil), "a zero-value argument must trigger injection")

	explicit := &injLogger{prefix: "caller-supplied"}
	assert.Equal(t, "caller-supplied", wrapped(explicit), "a non-zero caller argument must win over injection")
}

func TestInject_ContextParamIsDroppedFromWrappedSignature(t *testing.T) {
	c := NewContainer(nil)
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, func() *injLogger { return &injLogger{} }))

	fn, err := Inject(c, func(ctx context.Context, l *injLogger) context.Context {
		return ctx
	})
	require.NoError(t, err)
	wrapped, ok := fn.(func(*injLogger) context.Context)
	require.True(t, ok, "a plain context.Context parameter is excluded from the wrapped signature like WeaveContext")

	got := wrapped(nil)
	assert.NotNil(t, got)
}

func TestInject_DeeperScopeWithoutAutoOpenFails(t *testing.T) {
	scopes := NewScopeSetBuilder().Add("root", false).Add("request", false).Build()
	c := NewContainer(scopes)
	require.NoError(t, c.AddFactory(ScopeLevel(1), Scoped, func() *injLogger { return &injLogger{prefix: "req"} }))

	fn, err := Inject(c, func(l *injLogger) (*injLogger, error) { return l, nil }, WithAutoOpenScope(false))
	require.NoError(t, err)
	wrapped := fn.(func(*injLogger) (*injLogger, error))

	out, err := wrapped(nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNoResolverBound)
}

func TestInject_DeeperScopeWithAutoOpenSucceeds(t *testing.T) {
	scopes := NewScopeSetBuilder().Add("root", false).Add("request", false).Build()
	c := NewContainer(scopes)
	require.NoError(t, c.AddFactory(ScopeLevel(1), Scoped, func() *injLogger { return &injLogger{prefix: "req"} }))

	fn, err := Inject(c, func(l *injLogger) (*injLogger, error) { return l, nil }, WithAutoOpenScope(true))
	require.NoError(t, err)
	wrapped := fn.(func(*injLogger) (*injLogger, error))

	out, err := wrapped(nil)
	require.NoError(t, err)
	assert.Equal(t, "req", out.prefix)
}

func TestInject_ExplicitScopeOverridesInference(t *testing.T) {
	scopes := NewScopeSetBuilder().Add("root", false).Add("request", false).Build()
	c := NewContainer(scopes)
	require.NoError(t, c.AddFactory(ScopeRoot, Scoped, func() *injLogger { return &injLogger{prefix: "root"} }))

	fn, err := Inject(c, func(l *injLogger) (*injLogger, error) { return l, nil },
		WithInjectScope(ScopeLevel(1)), WithAutoOpenScope(true))
	require.NoError(t, err)
	wrapped := fn.(func(*injLogger) (*injLogger, error))

	out, err := wrapped(nil)
	require.NoError(t, err)
	assert.Equal(t, "root", out.prefix)
}

func TestInject_RejectsNonFuncTarget(t *testing.T) {
	c := NewContainer(nil)
	_, err := Inject(c, 42)
	assert.Error(t, err)
}
