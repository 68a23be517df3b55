package reflectx

import (
	"fmt"
	"reflect"
)

// ParamObjectBuilder assembles an In struct (or its pointer form) out
// of already-resolved field values, handed to it in parameter order by
// the caller, which owns the actual dependency resolution and only
// needs the struct assembled here.
type ParamObjectBuilder struct{}

func NewParamObjectBuilder() *ParamObjectBuilder { return &ParamObjectBuilder{} }

// Build populates paramType (a struct or *struct embedding In) with
// values, keyed by exported field index as produced by
// Analyzer.analyzeParamObject's Parameters list (so values[i]
// corresponds to the i-th entry of ConstructorInfo.Parameters).
func (b *ParamObjectBuilder) Build(paramType reflect.Type, params []ParameterInfo, values []reflect.Value) (reflect.Value, error) {
	if len(params) != len(values) {
		return reflect.Value{}, fmt.Errorf("reflectx: %d params but %d resolved values", len(params), len(values))
	}

	structType := paramType
	isPtr := structType.Kind() == reflect.Pointer
	if isPtr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("reflectx: param type must be struct, got %v", structType.Kind())
	}

	structPtr := reflect.New(structType)
	structValue := structPtr.Elem()

	for i, p := range params {
		if !values[i].IsValid() {
			continue
		}
		field := structValue.Field(p.Index)
		if field.CanSet() {
			field.Set(values[i])
		}
	}

	if isPtr {
		return structPtr, nil
	}
	return structValue, nil
}

// ResultField describes one field extracted from an Out result
// struct's built value.
type ResultField struct {
	Name  string
	Type  reflect.Type
	Key   any
	Group string
	Value reflect.Value
}

// ExtractResultFields reads every exported field off a built Out
// struct, skipping nil pointers/interfaces/slices/maps/chans/funcs
// (the convention the teacher uses to mean "this result slot was not
// populated by this constructor").
func ExtractResultFields(result reflect.Value, resultType reflect.Type) ([]ResultField, error) {
	if result.Kind() == reflect.Pointer {
		if result.IsNil() {
			return nil, fmt.Errorf("reflectx: result object is nil")
		}
		result = result.Elem()
	}
	if resultType.Kind() == reflect.Pointer {
		resultType = resultType.Elem()
	}
	if result.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflectx: result must be struct, got %v", result.Kind())
	}

	var fields []ResultField
	for i := 0; i < resultType.NumField(); i++ {
		field := resultType.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && isInOutType(field.Type, outType) {
			continue
		}

		tagInfo := parseFieldTags(field.Tag)
		if tagInfo.Ignore {
			continue
		}

		fv := result.Field(i)
		if !fv.IsValid() {
			continue
		}
		switch fv.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			if fv.IsNil() {
				continue
			}
		}

		rf := ResultField{Name: field.Name, Type: field.Type, Group: tagInfo.Group, Value: fv}
		if tagInfo.Name != "" {
			rf.Key = tagInfo.Name
		}
		fields = append(fields, rf)
	}

	return fields, nil
}
