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
	"fmt"
	"reflect"

	"github.com/rulego/weave/api/types"
)

// Typed handles bind an operation of a proxy to a Go function value. The operation is
// looked up and its signature checked once, when the handle is created, so a stub
// built from handles can implement the target's interface:
//
//	save, err := engine.Action1[string](proxy, "Save")
//	find, err := engine.Func1[string, *Order](proxy, "Find")
//	repository := orderRepositoryStub{save: save, find: find}
//
// Reflected operations are checked against their Go signature. Capability operations are
// checked against the parameter and return type names of their method descriptor.
// 类型化句柄，创建时检查方法是否存在以及签名是否匹配。

// Func0 binds an operation without parameters returning a value.
func Func0[R any](p *Proxy, name string) (func(ctx context.Context) (R, error), error) {
	m, err := p.bind(name, nil, typeOf[R]())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (R, error) {
		result, err := m.Invoke(ctx)
		return resultAs[R](m, result, err)
	}, nil
}

// Func1 binds an operation with one parameter returning a value.
func Func1[A, R any](p *Proxy, name string) (func(ctx context.Context, a A) (R, error), error) {
	m, err := p.bind(name, []reflect.Type{typeOf[A]()}, typeOf[R]())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A) (R, error) {
		result, err := m.Invoke(ctx, a)
		return resultAs[R](m, result, err)
	}, nil
}

// Func2 binds an operation with two parameters returning a value.
func Func2[A, B, R any](p *Proxy, name string) (func(ctx context.Context, a A, b B) (R, error), error) {
	m, err := p.bind(name, []reflect.Type{typeOf[A](), typeOf[B]()}, typeOf[R]())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A, b B) (R, error) {
		result, err := m.Invoke(ctx, a, b)
		return resultAs[R](m, result, err)
	}, nil
}

// Func3 binds an operation with three parameters returning a value.
func Func3[A, B, C, R any](p *Proxy, name string) (func(ctx context.Context, a A, b B, c C) (R, error), error) {
	m, err := p.bind(name, []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()}, typeOf[R]())
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A, b B, c C) (R, error) {
		result, err := m.Invoke(ctx, a, b, c)
		return resultAs[R](m, result, err)
	}, nil
}

// Action0 binds an operation without parameters. A result, if any, is discarded.
func Action0(p *Proxy, name string) (func(ctx context.Context) error, error) {
	m, err := p.bind(name, nil, nil)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := m.Invoke(ctx)
		return err
	}, nil
}

// Action1 binds an operation with one parameter.
func Action1[A any](p *Proxy, name string) (func(ctx context.Context, a A) error, error) {
	m, err := p.bind(name, []reflect.Type{typeOf[A]()}, nil)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A) error {
		_, err := m.Invoke(ctx, a)
		return err
	}, nil
}

// Action2 binds an operation with two parameters.
func Action2[A, B any](p *Proxy, name string) (func(ctx context.Context, a A, b B) error, error) {
	m, err := p.bind(name, []reflect.Type{typeOf[A](), typeOf[B]()}, nil)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A, b B) error {
		_, err := m.Invoke(ctx, a, b)
		return err
	}, nil
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// bind returns the named operation when its signature accepts params and produces a
// value assignable to result. A nil result accepts any operation.
func (p *Proxy) bind(name string, params []reflect.Type, result reflect.Type) (*Method, error) {
	m, err := p.Operation(name)
	if err != nil {
		return nil, err
	}
	if err := m.accepts(params, result); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %s", types.ErrArgumentMismatch, p.typ.Name, name, err.Error())
	}
	return m, nil
}

func (m *Method) accepts(params []reflect.Type, result reflect.Type) error {
	if m.sig == nil {
		return m.acceptsDescriptor(params, result)
	}
	if len(params) != len(m.sig.params) {
		return fmt.Errorf("expects %d parameters, handle has %d", len(m.sig.params), len(params))
	}
	for i, pt := range params {
		if !pt.AssignableTo(m.sig.params[i]) {
			return fmt.Errorf("parameter %d is %s, handle passes %s", i, m.sig.params[i], pt)
		}
	}
	if result == nil {
		return nil
	}
	if m.sig.result == nil {
		return fmt.Errorf("returns no value, handle expects %s", result)
	}
	if !m.sig.result.AssignableTo(result) {
		return fmt.Errorf("returns %s, handle expects %s", m.sig.result, result)
	}
	return nil
}

// acceptsDescriptor compares type names, interface types accept any name.
func (m *Method) acceptsDescriptor(params []reflect.Type, result reflect.Type) error {
	if len(params) != len(m.method.Params) {
		return fmt.Errorf("expects %d parameters, handle has %d", len(m.method.Params), len(params))
	}
	for i, pt := range params {
		if !sameTypeName(pt, m.method.Params[i]) {
			return fmt.Errorf("parameter %d is %s, handle passes %s", i, m.method.Params[i], typeName(pt))
		}
	}
	if result == nil {
		return nil
	}
	if m.method.Returns == types.Void {
		return fmt.Errorf("returns no value, handle expects %s", typeName(result))
	}
	if !sameTypeName(result, m.method.Returns) {
		return fmt.Errorf("returns %s, handle expects %s", m.method.Returns, typeName(result))
	}
	return nil
}

func sameTypeName(t reflect.Type, declared string) bool {
	return t.Kind() == reflect.Interface || declared == "any" || declared == typeName(t)
}

func resultAs[R any](m *Method, result any, err error) (R, error) {
	var zero R
	if result == nil {
		return zero, err
	}
	r, ok := result.(R)
	if !ok {
		if err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s.%s returned %T", types.ErrArgumentMismatch, m.typ.Name, m.method.Name, result)
	}
	return r, err
}
