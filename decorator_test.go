package weave

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDecoratorShape(t *testing.T) {
	ok1 := reflect.TypeOf(func(s string) string { return s })
	assert.NoError(t, validateDecoratorShape(ok1))

	ok2 := reflect.TypeOf(func(s string) (string, error) { return s, nil })
	assert.NoError(t, validateDecoratorShape(ok2))

	badKind := reflect.TypeOf(42)
	assert.Error(t, validateDecoratorShape(badKind))

	noParams := reflect.TypeOf(func() string { return "" })
	assert.Error(t, validateDecoratorShape(noParams))

	wrongSecondReturn := reflect.TypeOf(func(s string) (string, int) { return s, 0 })
	assert.Error(t, validateDecoratorShape(wrongSecondReturn))

	tooManyReturns := reflect.TypeOf(func(s string) (string, string, error) { return s, s, nil })
	assert.Error(t, validateDecoratorShape(tooManyReturns))
}

func TestApplyDecorators_ChainsInOrder(t *testing.T) {
	upper := Decorator{
		Constructor: reflect.ValueOf(func(s string) string { return s + "-upper" }),
	}
	bang := Decorator{
		Constructor: reflect.ValueOf(func(s string) string { return s + "!" }),
	}

	out, err := applyDecorators("base", []Decorator{upper, bang}, [][]reflect.Value{{}, {}})
	require.NoError(t, err)
	assert.Equal(t, "base-upper!", out, "decorators must apply outermost-last in registration order")
}

func TestApplyDecorators_PropagatesConstructorError(t *testing.T) {
	failing := Decorator{
		Constructor: reflect.ValueOf(func(s string) (string, error) {
			return "", assert.AnError
		}),
	}
	_, err := applyDecorators("base", []Decorator{failing}, [][]reflect.Value{{}})
	assert.Error(t, err)
}

func TestApplyDecorators_WiresExtraDependenciesAroundWrappedValue(t *testing.T) {
	dec := Decorator{
		Constructor:  reflect.ValueOf(func(prefix string, s string) string { return prefix + s }),
		WrappedIndex: 1,
	}
	out, err := applyDecorators("value", []Decorator{dec}, [][]reflect.Value{{reflect.ValueOf("pre-")}})
	require.NoError(t, err)
	assert.Equal(t, "pre-value", out)
}

func TestApplyDecorators_MismatchedDependencySetsErrors(t *testing.T) {
	dec := Decorator{Constructor: reflect.ValueOf(func(s string) string { return s })}
	_, err := applyDecorators("base", []Decorator{dec}, nil)
	assert.Error(t, err)
}
