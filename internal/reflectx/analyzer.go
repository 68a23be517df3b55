// Package reflectx is the dependency extractor: given a constructor
// value, it reflects over its signature (or over an In/Out parameter
// and result object) and produces the parameter/return/dependency
// shape the registry and planner need, including detection of the
// five wrapper markers (Maybe, Provider, AsyncProvider, FromContext,
// All) recognized at a dependency site.
package reflectx

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"weave/internal/generics"
	"weave/internal/markers"
)

type In struct{}
type Out struct{}

var (
	inType  = reflect.TypeOf((*In)(nil)).Elem()
	outType = reflect.TypeOf((*Out)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// WrapperKind mirrors the root package's wrapper-key taxonomy without
// importing it (reflectx sits below the root package; the root
// package imports reflectx, so the dependency must not run the other
// way).
type WrapperKind int

const (
	WrapperNone WrapperKind = iota
	WrapperMaybe
	WrapperProvider
	WrapperAsyncProvider
	WrapperFromContext
	WrapperAll
)

func (w WrapperKind) String() string {
	switch w {
	case WrapperMaybe:
		return "Maybe"
	case WrapperProvider:
		return "Provider"
	case WrapperAsyncProvider:
		return "AsyncProvider"
	case WrapperFromContext:
		return "FromContext"
	case WrapperAll:
		return "All"
	default:
		return "None"
	}
}

var wrapperTemplates = []struct {
	kind     WrapperKind
	template reflect.Type
}{
	{WrapperMaybe, reflect.TypeOf(markers.Maybe[generics.TypeVar]{})},
	{WrapperProvider, reflect.TypeOf(markers.Provider[generics.TypeVar](nil))},
	{WrapperAsyncProvider, reflect.TypeOf(markers.AsyncProvider[generics.TypeVar](nil))},
	{WrapperFromContext, reflect.TypeOf(markers.FromContext[generics.TypeVar]{})},
	{WrapperAll, reflect.TypeOf(markers.All[generics.TypeVar]{})},
}

// detectWrapper checks t against every known wrapper template and, on
// match, returns the wrapper kind and the concrete inner type bound to
// the template's TypeVar.
func detectWrapper(t reflect.Type) (WrapperKind, reflect.Type, bool) {
	for _, w := range wrapperTemplates {
		if bindings, ok := generics.Match(w.template, t); ok {
			for _, inner := range bindings {
				return w.kind, inner, true
			}
		}
	}
	return WrapperNone, nil, false
}

// Analyzer performs reflection-based analysis of constructors and
// caches results keyed by function pointer.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor
// function or instance.
type ConstructorInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Parameters     []ParameterInfo
	Returns        []ReturnInfo
	IsFunc         bool
	InstanceValue  any
	IsParamObject  bool
	IsResultObject bool
	HasErrorReturn bool

	// IsAsync is true when the first parameter is context.Context and
	// the constructor is intended for the async resolution path.
	IsAsync bool

	dependencies []*Dependency
}

// ParameterInfo describes a constructor parameter or In struct field.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string
	Tag      string
	Index    int
	Optional bool
	Group    string
	Key      any
	IsSlice  bool
	ElemType reflect.Type

	Wrapper   WrapperKind
	InnerType reflect.Type // set when Wrapper != WrapperNone
}

// ReturnInfo describes a constructor return value or Out struct field.
type ReturnInfo struct {
	Type    reflect.Type
	Name    string
	Tag     string
	Index   int
	Group   string
	Key     any
	IsError bool
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Optional bool
	Name     string
	Group    string
	Ignore   bool
}

// Dependency represents a single resolved dependency of a provider.
type Dependency struct {
	Type      reflect.Type
	Key       any
	Group     string
	Optional  bool
	Index     int
	FieldName string
	Wrapper   WrapperKind
	InnerType reflect.Type
}

func New() *Analyzer {
	return &Analyzer{cache: make(map[uintptr]*ConstructorInfo)}
}

// Analyze analyzes a constructor function and extracts its shape.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if !val.IsValid() || (val.Kind() == reflect.Func && val.IsNil()) {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	typ := reflect.TypeOf(constructor)

	var cacheKey uintptr
	if typ.Kind() == reflect.Func {
		cacheKey = val.Pointer()
	} else {
		cacheKey = reflect.ValueOf(typ).Pointer()
	}

	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	info := &ConstructorInfo{Type: typ, Value: val}

	if typ.Kind() != reflect.Func {
		info.InstanceValue = constructor
		info.Parameters = []ParameterInfo{}
		info.dependencies = []*Dependency{}
		return a.cacheAndReturn(cacheKey, info)
	}

	info.IsFunc = true

	if typ.NumIn() > 0 && typ.In(0).Implements(ctxType) {
		info.IsAsync = true
	}

	if err := a.analyzeParameters(info); err != nil {
		return nil, fmt.Errorf("failed to analyze parameters: %w", err)
	}
	if err := a.analyzeReturns(info); err != nil {
		return nil, fmt.Errorf("failed to analyze returns: %w", err)
	}

	info.dependencies = a.buildDependencies(info)

	return a.cacheAndReturn(cacheKey, info)
}

func (a *Analyzer) analyzeParameters(info *ConstructorInfo) error {
	fnType := info.Type

	start := 0
	if info.IsAsync {
		start = 1 // context.Context is not a dependency
	}

	if fnType.NumIn()-start == 1 {
		paramType := fnType.In(start)
		if hasEmbeddedType(paramType, inType) {
			info.IsParamObject = true
			return a.analyzeParamObject(info, paramType, start)
		}
	}

	info.Parameters = make([]ParameterInfo, 0, fnType.NumIn()-start)
	for i := start; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		p := ParameterInfo{
			Type:     paramType,
			Index:    i,
			IsSlice:  paramType.Kind() == reflect.Slice,
			ElemType: getSliceElemType(paramType),
		}
		if kind, inner, ok := detectWrapper(paramType); ok {
			p.Wrapper = kind
			p.InnerType = inner
		}
		info.Parameters = append(info.Parameters, p)
	}

	return nil
}

func (a *Analyzer) analyzeParamObject(info *ConstructorInfo, structType reflect.Type, index int) error {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("In parameter must be a struct, got %v", structType.Kind())
	}

	params := make([]ParameterInfo, 0)

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && isInOutType(field.Type, inType) {
			continue
		}

		tagInfo := parseFieldTags(field.Tag)
		if tagInfo.Ignore {
			continue
		}

		p := ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Tag:      string(field.Tag),
			Index:    i,
			Optional: tagInfo.Optional,
			Group:    tagInfo.Group,
			IsSlice:  field.Type.Kind() == reflect.Slice,
			ElemType: getSliceElemType(field.Type),
		}
		if tagInfo.Name != "" {
			p.Key = tagInfo.Name
		}
		if kind, inner, ok := detectWrapper(field.Type); ok {
			p.Wrapper = kind
			p.InnerType = inner
		}

		params = append(params, p)
	}

	info.Parameters = params
	return nil
}

func (a *Analyzer) analyzeReturns(info *ConstructorInfo) error {
	fnType := info.Type
	if fnType.NumOut() == 0 {
		return nil
	}

	firstReturn := fnType.Out(0)
	if hasEmbeddedType(firstReturn, outType) {
		info.IsResultObject = true
		return a.analyzeResultObject(info, firstReturn)
	}

	info.Returns = make([]ReturnInfo, 0, fnType.NumOut())
	for i := 0; i < fnType.NumOut(); i++ {
		retType := fnType.Out(i)
		isError := implementsError(retType) && i == fnType.NumOut()-1
		if isError {
			info.HasErrorReturn = true
		}
		info.Returns = append(info.Returns, ReturnInfo{Type: retType, Index: i, IsError: isError})
	}

	return nil
}

func (a *Analyzer) analyzeResultObject(info *ConstructorInfo, structType reflect.Type) error {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("Out result must be a struct, got %v", structType.Kind())
	}

	returns := make([]ReturnInfo, 0)
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
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

		r := ReturnInfo{Type: field.Type, Name: field.Name, Tag: string(field.Tag), Index: i, Group: tagInfo.Group}
		if tagInfo.Name != "" {
			r.Key = tagInfo.Name
		}
		returns = append(returns, r)
	}

	info.Returns = returns

	if info.Type.NumOut() == 2 && implementsError(info.Type.Out(1)) {
		info.HasErrorReturn = true
	}

	return nil
}

func (a *Analyzer) buildDependencies(info *ConstructorInfo) []*Dependency {
	deps := make([]*Dependency, 0, len(info.Parameters))
	for _, p := range info.Parameters {
		dep := &Dependency{
			Type:      p.Type,
			Key:       p.Key,
			Group:     p.Group,
			Optional:  p.Optional,
			Index:     p.Index,
			FieldName: p.Name,
			Wrapper:   p.Wrapper,
			InnerType: p.InnerType,
		}
		if p.IsSlice && p.Group != "" && p.ElemType != nil {
			dep.Type = p.ElemType
		}
		deps = append(deps, dep)
	}
	return deps
}

// GetDependencies returns the analyzed dependencies for a constructor.
func (a *Analyzer) GetDependencies(constructor any) ([]*Dependency, error) {
	info, err := a.Analyze(constructor)
	if err != nil {
		return nil, err
	}
	return info.dependencies, nil
}

// GetServiceType determines the primary service type from a
// constructor or instance.
func (a *Analyzer) GetServiceType(constructor any) (reflect.Type, error) {
	info, err := a.Analyze(constructor)
	if err != nil {
		return nil, err
	}

	if !info.IsFunc {
		return info.Type, nil
	}
	if len(info.Returns) == 0 {
		return nil, fmt.Errorf("constructor has no return values")
	}
	if info.IsResultObject {
		return info.Type.Out(0), nil
	}
	for _, ret := range info.Returns {
		if !ret.IsError {
			return ret.Type, nil
		}
	}
	return nil, fmt.Errorf("constructor only returns error")
}

// GetResultTypes returns all produced (non-error) types.
func (a *Analyzer) GetResultTypes(constructor any) ([]reflect.Type, error) {
	info, err := a.Analyze(constructor)
	if err != nil {
		return nil, err
	}

	types := make([]reflect.Type, 0, len(info.Returns))
	for _, ret := range info.Returns {
		if !ret.IsError {
			types = append(types, ret.Type)
		}
	}
	if len(types) == 0 && !info.IsFunc {
		return []reflect.Type{info.Type}, nil
	}
	return types, nil
}

func parseFieldTags(tag reflect.StructTag) TagInfo {
	info := TagInfo{}
	if val, ok := tag.Lookup("optional"); ok {
		info.Optional = val == "true"
	}
	if val, ok := tag.Lookup("name"); ok {
		info.Name = val
	}
	if val, ok := tag.Lookup("group"); ok {
		info.Group = val
	}
	if val, ok := tag.Lookup("inject"); ok && val == "-" {
		info.Ignore = true
	}
	return info
}

func getSliceElemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Slice {
		return t.Elem()
	}
	return nil
}

func (a *Analyzer) cacheAndReturn(key uintptr, info *ConstructorInfo) (*ConstructorInfo, error) {
	a.mu.Lock()
	a.cache[key] = info
	a.mu.Unlock()
	return info, nil
}

// Clear clears the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.cache = make(map[uintptr]*ConstructorInfo)
	a.mu.Unlock()
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

func hasEmbeddedType(t, embedded reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && isInOutType(field.Type, embedded) {
			return true
		}
	}
	return false
}

func isInOutType(t, target reflect.Type) bool {
	if t == target {
		return true
	}
	if target.Kind() == reflect.Interface {
		return t.Implements(target)
	}
	return false
}

func implementsError(t reflect.Type) bool {
	return t.Implements(errType)
}
