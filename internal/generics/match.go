// Package generics provides structural matching over reflect.Type
// values standing in for Go's missing runtime API to recover the type
// arguments of a generic instantiation. A template type is built by
// instantiating a generic type with TypeVar (or a distinct TypeVar-ish
// marker per free variable); Match then walks the template and a
// closed candidate type in lockstep, binding each TypeVar occurrence
// to whatever concrete type sits at the same structural position in
// the candidate.
package generics

import (
	"fmt"
	"reflect"
)

// TypeVar is the sentinel type substituted for a generic type
// parameter when building a template. Repository[TypeVar] becomes the
// template that matches any Repository[X] for concrete X.
type TypeVar struct{ _ [0]int }

var typeVarType = reflect.TypeOf(TypeVar{})

// Bindings maps a free variable's template type (always typeVarType
// for the single-variable case; see Var0..Var3 below for the
// multi-variable case) to the concrete type found in the candidate.
type Bindings map[reflect.Type]reflect.Type

// Var0, Var1, Var2, Var3 are distinct marker types for the free
// variables of a multi-parameter generic (Pair[Var0, Var1] etc.),
// since Go requires distinct type arguments to instantiate a
// multi-parameter generic and typeVarType alone cannot fill two slots
// independently.
type (
	Var0 struct{ _ [0]int }
	Var1 struct{ _ [0]int }
	Var2 struct{ _ [0]int }
	Var3 struct{ _ [0]int }
)

var varTypes = [4]reflect.Type{
	reflect.TypeOf(Var0{}),
	reflect.TypeOf(Var1{}),
	reflect.TypeOf(Var2{}),
	reflect.TypeOf(Var3{}),
}

// VarType returns the reflect.Type standing in for the nth free
// variable in a template. For n of 4 or more it returns TypeVar, so
// the fifth and later free variables of a template share one marker,
// which only matches when the candidate repeats the same type in all
// of those positions.
func VarType(n int) reflect.Type {
	if n >= 0 && n < len(varTypes) {
		return varTypes[n]
	}
	return typeVarType
}

func isVar(t reflect.Type) bool {
	if t == typeVarType {
		return true
	}
	for _, v := range varTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Match structurally compares template against candidate, returning
// the bindings for every Var/TypeVar occurrence found, or false if the
// shapes are incompatible (different kinds at a position, different
// struct layouts, a concrete template type that does not equal the
// candidate's type at that position).
func Match(template, candidate reflect.Type) (Bindings, bool) {
	b := make(Bindings)
	if !matchInto(template, candidate, b) {
		return nil, false
	}
	return b, true
}

func matchInto(template, candidate reflect.Type, b Bindings) bool {
	if template == nil || candidate == nil {
		return template == candidate
	}

	if isVar(template) {
		if existing, bound := b[template]; bound {
			return existing == candidate
		}
		b[template] = candidate
		return true
	}

	if template.Kind() != candidate.Kind() {
		return false
	}

	switch template.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan:
		if template.Kind() == reflect.Array && template.Len() != candidate.Len() {
			return false
		}
		return matchInto(template.Elem(), candidate.Elem(), b)

	case reflect.Map:
		if !matchInto(template.Key(), candidate.Key(), b) {
			return false
		}
		return matchInto(template.Elem(), candidate.Elem(), b)

	case reflect.Struct:
		if template.NumField() != candidate.NumField() {
			return false
		}
		for i := 0; i < template.NumField(); i++ {
			tf, cf := template.Field(i), candidate.Field(i)
			if tf.Name != cf.Name {
				return false
			}
			if !matchInto(tf.Type, cf.Type, b) {
				return false
			}
		}
		return true

	case reflect.Func:
		if template.NumIn() != candidate.NumIn() || template.NumOut() != candidate.NumOut() {
			return false
		}
		for i := 0; i < template.NumIn(); i++ {
			if !matchInto(template.In(i), candidate.In(i), b) {
				return false
			}
		}
		for i := 0; i < template.NumOut(); i++ {
			if !matchInto(template.Out(i), candidate.Out(i), b) {
				return false
			}
		}
		return true

	default:
		return template == candidate
	}
}

// Specificity scores how concrete a matched template is, used to
// break ties between multiple matching open-generic registrations
// when more than one structurally matches the same candidate: fewer
// free variables (deeper concrete structure) wins. Equal-specificity
// ties are broken by registration order elsewhere (later wins).
func Specificity(template reflect.Type) int {
	return countConcrete(template, make(map[reflect.Type]bool))
}

func countConcrete(t reflect.Type, seen map[reflect.Type]bool) int {
	if t == nil || isVar(t) {
		return 0
	}
	if seen[t] {
		return 0
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan:
		return 1 + countConcrete(t.Elem(), seen)
	case reflect.Map:
		return 1 + countConcrete(t.Key(), seen) + countConcrete(t.Elem(), seen)
	case reflect.Struct:
		n := 1
		for i := 0; i < t.NumField(); i++ {
			n += countConcrete(t.Field(i).Type, seen)
		}
		return n
	default:
		return 1
	}
}

// Describe renders a template/candidate pair for diagnostics.
func Describe(template, candidate reflect.Type) string {
	return fmt.Sprintf("%s ~ %s", template, candidate)
}
