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

package types

import (
	"strings"
)

// Void is the Returns value of a method descriptor whose operation produces no value.
const Void = "void"

// TypeDescriptor identifies the declaring type of an operation.
// TypeDescriptor 描述操作的声明类型。
//
// Package uses `.` as the separator, Go import paths are converted by NewTypeDescriptor,
// e.g. `github.com/acme/app/order` becomes `github.com.acme.app.order`.
type TypeDescriptor struct {
	// Package the dotted package path, may be empty
	Package string
	// Name the simple type name, e.g. OrderService
	Name string
}

// NewTypeDescriptor creates a type descriptor from a Go import path and a type name.
func NewTypeDescriptor(pkgPath, name string) TypeDescriptor {
	return TypeDescriptor{Package: strings.ReplaceAll(pkgPath, "/", "."), Name: name}
}

// QualifiedName returns Package.Name, or Name when the package is empty.
func (t TypeDescriptor) QualifiedName() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

func (t TypeDescriptor) String() string {
	return t.QualifiedName()
}

// MethodDescriptor describes the signature of one proxyable operation.
// MethodDescriptor 描述一个可代理操作的签名。
type MethodDescriptor struct {
	// Name the simple method name, e.g. Save
	Name string
	// Params the parameter type names. A leading context.Context is not listed.
	Params []string
	// Returns the type name of the non-error result, or Void
	Returns string
	// Variadic reports whether the last parameter is variadic
	Variadic bool
}

// NewMethodDescriptor creates a descriptor for a method returning Void.
func NewMethodDescriptor(name string, params ...string) MethodDescriptor {
	return MethodDescriptor{Name: name, Params: params, Returns: Void}
}

// WithReturns returns a copy of the descriptor with the given result type name.
func (m MethodDescriptor) WithReturns(returns string) MethodDescriptor {
	m.Returns = returns
	return m
}

func (m MethodDescriptor) String() string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		if m.Variadic && i == len(m.Params)-1 {
			sb.WriteString("...")
		}
		sb.WriteString(p)
	}
	sb.WriteByte(')')
	if m.Returns != "" && m.Returns != Void {
		sb.WriteByte(' ')
		sb.WriteString(m.Returns)
	}
	return sb.String()
}

// JoinPoint is a (type, method) pair at which interception may occur.
type JoinPoint struct {
	Type   TypeDescriptor
	Method MethodDescriptor
}

// ShortString renders the join point the way trace messages name it: Type.method()
func (j JoinPoint) ShortString() string {
	return j.Type.Name + "." + j.Method.Name + "()"
}
