package generics_test

import (
	"reflect"
	"testing"

	"weave/internal/generics"
)

type Repository[T any] struct {
	Items []T
}

type Pair[A any, B any] struct {
	First  A
	Second B
}

type User struct{ Name string }

func TestMatch_SingleTypeVar(t *testing.T) {
	template := reflect.TypeOf(Repository[generics.TypeVar]{})
	candidate := reflect.TypeOf(Repository[User]{})

	bindings, ok := generics.Match(template, candidate)
	if !ok {
		t.Fatal("expected Repository[TypeVar] to match Repository[User]")
	}
	tv := reflect.TypeOf(generics.TypeVar{})
	if bindings[tv] != reflect.TypeOf(User{}) {
		t.Errorf("expected TypeVar bound to User, got %v", bindings[tv])
	}
}

func TestMatch_MultipleDistinctVars(t *testing.T) {
	template := reflect.TypeOf(Pair[generics.Var0, generics.Var1]{})
	candidate := reflect.TypeOf(Pair[User, int]{})

	bindings, ok := generics.Match(template, candidate)
	if !ok {
		t.Fatal("expected Pair[Var0, Var1] to match Pair[User, int]")
	}
	if bindings[generics.VarType(0)] != reflect.TypeOf(User{}) {
		t.Errorf("expected Var0 bound to User, got %v", bindings[generics.VarType(0)])
	}
	if bindings[generics.VarType(1)] != reflect.TypeOf(0) {
		t.Errorf("expected Var1 bound to int, got %v", bindings[generics.VarType(1)])
	}
}

func TestMatch_RepeatedVarMustBindConsistently(t *testing.T) {
	template := reflect.TypeOf(Pair[generics.TypeVar, generics.TypeVar]{})

	ok1, got1 := generics.Match(template, reflect.TypeOf(Pair[User, User]{}))
	if !got1 {
		t.Fatal("expected Pair[TypeVar, TypeVar] to match Pair[User, User]")
	}
	_ = ok1

	_, got2 := generics.Match(template, reflect.TypeOf(Pair[User, int]{}))
	if got2 {
		t.Error("expected Pair[TypeVar, TypeVar] to reject Pair[User, int]: the same variable can't bind two different types")
	}
}

func TestMatch_DifferentKindsFail(t *testing.T) {
	template := reflect.TypeOf(Repository[generics.TypeVar]{})
	candidate := reflect.TypeOf(User{})

	if _, ok := generics.Match(template, candidate); ok {
		t.Error("expected a struct-shaped template to reject a differently-shaped candidate")
	}
}

func TestMatch_PointerAndSliceStructure(t *testing.T) {
	template := reflect.TypeOf((*[]generics.TypeVar)(nil))
	candidate := reflect.TypeOf((*[]User)(nil))

	bindings, ok := generics.Match(template, candidate)
	if !ok {
		t.Fatal("expected *[]TypeVar to match *[]User")
	}
	tv := reflect.TypeOf(generics.TypeVar{})
	if bindings[tv] != reflect.TypeOf(User{}) {
		t.Errorf("expected TypeVar bound to User through pointer+slice, got %v", bindings[tv])
	}
}

func TestMatch_ConcreteTemplateTypeMustEqualCandidate(t *testing.T) {
	template := reflect.TypeOf(Repository[int]{})
	if _, ok := generics.Match(template, reflect.TypeOf(Repository[User]{})); ok {
		t.Error("expected a fully concrete template to only match the identical type")
	}
	if _, ok := generics.Match(template, reflect.TypeOf(Repository[int]{})); !ok {
		t.Error("expected a fully concrete template to match its identical candidate")
	}
}

func TestSpecificity_FewerFreeVarsScoresHigher(t *testing.T) {
	fullyOpen := reflect.TypeOf(Pair[generics.Var0, generics.Var1]{})
	halfOpen := reflect.TypeOf(Pair[User, generics.Var0]{})

	if generics.Specificity(halfOpen) <= generics.Specificity(fullyOpen) {
		t.Errorf("expected a half-concrete template to score higher than a fully open one: half=%d full=%d",
			generics.Specificity(halfOpen), generics.Specificity(fullyOpen))
	}
}
