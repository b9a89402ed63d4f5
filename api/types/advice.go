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
	"context"
)

// The interfaces below provide the interception (AOP) mechanism. It is similar to an
// interceptor or hook mechanism: cross-cutting behavior such as logging, tracing,
// metrics, limiting or caching is kept apart from the business logic and applied to
// the operations selected by a pointcut.
//
// 以下接口提供拦截(AOP)机制，把日志、跟踪、指标、限流、缓存等横切行为从业务逻辑中分离，
// 并应用到切入点选中的操作上。

// Invocation is the per-call context handed to every advice of a chain.
// It is owned by a single in-flight call and must not be retained after the call returns.
// Invocation 单次调用的上下文，只属于当前调用。
type Invocation interface {
	// Context returns the context that will be passed to the next advice and the target.
	Context() context.Context
	// SetContext replaces the context passed downstream, e.g. with trace values.
	SetContext(ctx context.Context)
	// Target returns the proxied target.
	Target() any
	// Type returns the declaring type of the invoked operation.
	Type() TypeDescriptor
	// Method returns the invoked operation.
	Method() MethodDescriptor
	// Arguments returns the call arguments. The slice is shared with the chain.
	Arguments() []any
	// Proceed invokes the next advice, or the target after the last advice.
	// Each advice may call it at most once.
	// Proceed 执行下一个增强点，如果没有则调用目标方法。每个增强点最多调用一次。
	Proceed() (any, error)
}

// Advice is a unit of cross-cutting behavior executed around a matched call.
// It may run code before Proceed, after it returns, and on failure.
// Advice 围绕匹配调用执行的横切行为。
type Advice interface {
	Invoke(inv Invocation) (any, error)
}

// AdviceFunc adapts a function to Advice.
type AdviceFunc func(inv Invocation) (any, error)

func (f AdviceFunc) Invoke(inv Invocation) (any, error) {
	return f(inv)
}

// Advisor pairs one pointcut with one advice.
// Advisor 切入点与增强点的组合。
type Advisor interface {
	Pointcut() Pointcut
	Advice() Advice
}

// DefaultPointcutAdvisor is the immutable Advisor implementation.
type DefaultPointcutAdvisor struct {
	pointcut Pointcut
	advice   Advice
}

// NewAdvisor pairs the pointcut with the advice.
func NewAdvisor(pointcut Pointcut, advice Advice) *DefaultPointcutAdvisor {
	return &DefaultPointcutAdvisor{pointcut: pointcut, advice: advice}
}

func (a *DefaultPointcutAdvisor) Pointcut() Pointcut {
	return a.pointcut
}

func (a *DefaultPointcutAdvisor) Advice() Advice {
	return a.advice
}

// Operation is one entry of a capability function table.
type Operation struct {
	Method MethodDescriptor
	// Invoke performs the real call
	Invoke func(ctx context.Context, args []any) (any, error)
}

// Capabilities declares the abstract operation set of a target.
type Capabilities struct {
	// Type the declaring type reported to pointcuts
	Type       TypeDescriptor
	Operations []Operation
}

// Capable is implemented by targets that declare their operations explicitly.
// The proxy is then built purely by composition against the table.
// Capable 显式声明操作表的目标，代理只通过组合操作表构建。
type Capable interface {
	Capabilities() Capabilities
}
