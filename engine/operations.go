/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rulego/weave/api/types"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// operationSet is the resolved operation table of a target, built once per proxy.
type operationSet struct {
	typ        types.TypeDescriptor
	operations []resolvedOperation
}

type resolvedOperation struct {
	// typ is the declaring type reported to pointcuts
	typ       types.TypeDescriptor
	operation types.Operation
	// sig is nil for capability operations
	sig *signature
}

// signature is the Go signature of a reflected operation, without the context parameter.
type signature struct {
	params   []reflect.Type
	variadic bool
	// result is nil when the method produces no value
	result reflect.Type
}

func (s *operationSet) add(typ types.TypeDescriptor, op types.Operation, sig *signature) error {
	if op.Method.Name == "" {
		return fmt.Errorf("%w: %s has an operation without name", types.ErrProxyConstruction, s.typ)
	}
	if op.Invoke == nil {
		return fmt.Errorf("%w: %s.%s has no implementation", types.ErrProxyConstruction, s.typ, op.Method.Name)
	}
	for _, existing := range s.operations {
		if existing.operation.Method.Name == op.Method.Name {
			return fmt.Errorf("%w: %s declares %s twice", types.ErrProxyConstruction, s.typ, op.Method.Name)
		}
	}
	if op.Method.Returns == "" {
		op.Method.Returns = types.Void
	}
	s.operations = append(s.operations, resolvedOperation{typ: typ, operation: op, sig: sig})
	return nil
}

// capabilityOperations uses the explicit function table of the target.
func capabilityOperations(target types.Capable) (*operationSet, error) {
	capabilities := target.Capabilities()
	set := &operationSet{typ: capabilities.Type}
	if set.typ.Name == "" {
		set.typ = typeDescriptorOf(reflect.TypeOf(target))
	}
	for _, op := range capabilities.Operations {
		if err := set.add(set.typ, op, nil); err != nil {
			return nil, err
		}
	}
	if len(set.operations) == 0 {
		return nil, fmt.Errorf("%w: %s declares no operation", types.ErrProxyConstruction, set.typ)
	}
	return set, nil
}

// interfaceOperations exposes the methods of the declared interfaces. Each operation is
// declared by the first interface listing it.
func interfaceOperations(target any, interfaces []reflect.Type) (*operationSet, error) {
	targetValue := reflect.ValueOf(target)
	set := &operationSet{typ: typeDescriptorOf(interfaces[0])}
	for _, iface := range interfaces {
		if !targetValue.Type().Implements(iface) {
			return nil, fmt.Errorf("%w: %s does not implement %s", types.ErrProxyConstruction, targetValue.Type(), iface)
		}
		declaring := typeDescriptorOf(iface)
		for i := 0; i < iface.NumMethod(); i++ {
			name := iface.Method(i).Name
			if set.has(name) {
				continue
			}
			op, sig, err := reflectOperation(name, targetValue.MethodByName(name))
			if err != nil {
				return nil, err
			}
			if err := set.add(declaring, op, sig); err != nil {
				return nil, err
			}
		}
	}
	if len(set.operations) == 0 {
		return nil, fmt.Errorf("%w: %s declares no operation", types.ErrProxyConstruction, set.typ)
	}
	return set, nil
}

// concreteOperations exposes the exported method set of the target value.
func concreteOperations(target any) (*operationSet, error) {
	targetValue := reflect.ValueOf(target)
	targetType := targetValue.Type()
	set := &operationSet{typ: typeDescriptorOf(targetType)}
	for i := 0; i < targetType.NumMethod(); i++ {
		method := targetType.Method(i)
		if !method.IsExported() {
			continue
		}
		op, sig, err := reflectOperation(method.Name, targetValue.Method(i))
		if err != nil {
			return nil, err
		}
		if err := set.add(set.typ, op, sig); err != nil {
			return nil, err
		}
	}
	if len(set.operations) == 0 {
		return nil, fmt.Errorf("%w: %s has no exported method", types.ErrProxyConstruction, set.typ)
	}
	return set, nil
}

func (s *operationSet) has(name string) bool {
	for _, op := range s.operations {
		if op.operation.Method.Name == name {
			return true
		}
	}
	return false
}

// reflectOperation adapts a bound method value. Supported shapes take any parameters,
// the first may be a context.Context filled from the call, and return (), (R), (error)
// or (R, error).
func reflectOperation(name string, fn reflect.Value) (types.Operation, *signature, error) {
	ft := fn.Type()
	withContext := ft.NumIn() > 0 && ft.In(0) == contextType
	first := 0
	if withContext {
		first = 1
	}
	paramTypes := make([]reflect.Type, 0, ft.NumIn()-first)
	var params []string
	for i := first; i < ft.NumIn(); i++ {
		paramTypes = append(paramTypes, ft.In(i))
		params = append(params, typeName(ft.In(i)))
	}
	descriptor := types.MethodDescriptor{Name: name, Params: params, Returns: types.Void, Variadic: ft.IsVariadic()}
	if descriptor.Variadic {
		// listed as the element type, rendered with a ... prefix
		params[len(params)-1] = typeName(ft.In(ft.NumIn() - 1).Elem())
	}

	resultIndex, errIndex := -1, -1
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			errIndex = 0
		} else {
			resultIndex = 0
		}
	case 2:
		if ft.Out(1) != errorType || ft.Out(0) == errorType {
			return types.Operation{}, nil, fmt.Errorf("%w: %s has unsupported results %s", types.ErrProxyConstruction, name, ft)
		}
		resultIndex, errIndex = 0, 1
	default:
		return types.Operation{}, nil, fmt.Errorf("%w: %s has unsupported results %s", types.ErrProxyConstruction, name, ft)
	}
	sig := &signature{params: paramTypes, variadic: descriptor.Variadic}
	if resultIndex >= 0 {
		descriptor.Returns = typeName(ft.Out(resultIndex))
		sig.result = ft.Out(resultIndex)
	}

	invoke := func(ctx context.Context, args []any) (any, error) {
		in, err := convertArgs(name, paramTypes, descriptor.Variadic, args)
		if err != nil {
			return nil, err
		}
		if withContext {
			if ctx == nil {
				ctx = context.Background()
			}
			in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
		}
		var out []reflect.Value
		if descriptor.Variadic && len(args) == len(paramTypes) && in[len(in)-1].Type() == paramTypes[len(paramTypes)-1] {
			out = fn.CallSlice(in)
		} else {
			out = fn.Call(in)
		}
		var result any
		if resultIndex >= 0 {
			result = out[resultIndex].Interface()
		}
		if errIndex >= 0 && !out[errIndex].IsNil() {
			return result, out[errIndex].Interface().(error)
		}
		return result, nil
	}
	return types.Operation{Method: descriptor, Invoke: invoke}, sig, nil
}

// convertArgs checks the arguments against the parameter types. Untyped numeric
// arguments are converted to the parameter's numeric kind.
func convertArgs(name string, paramTypes []reflect.Type, variadic bool, args []any) ([]reflect.Value, error) {
	fixed := len(paramTypes)
	if variadic {
		fixed--
	}
	if len(args) < fixed || (!variadic && len(args) != fixed) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", types.ErrArgumentMismatch, name, len(paramTypes), len(args))
	}
	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		switch {
		case i < fixed:
			pt = paramTypes[i]
		case len(args) == len(paramTypes) && assignable(arg, paramTypes[fixed]):
			// the variadic slice itself
			pt = paramTypes[fixed]
		default:
			pt = paramTypes[fixed].Elem()
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %s", types.ErrArgumentMismatch, name, i, err.Error())
		}
		in = append(in, v)
	}
	return in, nil
}

func assignable(arg any, t reflect.Type) bool {
	return arg != nil && reflect.TypeOf(arg).AssignableTo(t)
}

var errNilArgument = errors.New("nil is not assignable")

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		default:
			return reflect.Value{}, fmt.Errorf("%w to %s", errNilArgument, t)
		}
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// typeDescriptorOf names the declaring type, pointers are reported by their element type.
func typeDescriptorOf(t reflect.Type) types.TypeDescriptor {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return types.NewTypeDescriptor(t.PkgPath(), t.Name())
}

// typeName renders a Go type the way expressions refer to it, e.g. string, *order.Order, any.
func typeName(t reflect.Type) string {
	return strings.ReplaceAll(t.String(), "interface {}", "any")
}
