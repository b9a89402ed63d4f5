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

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/runtime"
)

// panicStackSkip skips runtime.Callers, CallerStack, the deferred recover and the
// runtime panic frames
const panicStackSkip = 4

var _ types.Invocation = (*methodInvocation)(nil)

// methodInvocation is the single-use advice chain of one proxied call.
// The cursor is the index of the next advice; proceeded records, per cursor position,
// whether the advice at that position already called Proceed.
type methodInvocation struct {
	ctx       context.Context
	target    any
	typ       types.TypeDescriptor
	method    types.MethodDescriptor
	args      []any
	advices   []types.Advice
	invoke    func(ctx context.Context, args []any) (any, error)
	cursor    int
	proceeded []bool
	completed bool
	// recoverPanic converts a target panic into *types.PanicError
	recoverPanic bool
}

func newMethodInvocation(ctx context.Context, op *Method, args []any, advices []types.Advice) *methodInvocation {
	return &methodInvocation{
		ctx:          ctx,
		target:       op.proxy.target,
		typ:          op.typ,
		method:       op.method,
		args:         args,
		advices:      advices,
		invoke:       op.invoke,
		proceeded:    make([]bool, len(advices)+1),
		recoverPanic: op.proxy.config.RecoverPanic,
	}
}

func (i *methodInvocation) Context() context.Context {
	return i.ctx
}

func (i *methodInvocation) SetContext(ctx context.Context) {
	if ctx != nil {
		i.ctx = ctx
	}
}

func (i *methodInvocation) Target() any {
	return i.target
}

func (i *methodInvocation) Type() types.TypeDescriptor {
	return i.typ
}

func (i *methodInvocation) Method() types.MethodDescriptor {
	return i.method
}

func (i *methodInvocation) Arguments() []any {
	return i.args
}

func (i *methodInvocation) Proceed() (any, error) {
	if i.completed {
		return nil, fmt.Errorf("%w: %s", types.ErrInvocationCompleted, i.joinPoint())
	}
	position := i.cursor
	if i.proceeded[position] {
		return nil, fmt.Errorf("%w: %s advice %d", types.ErrProceedCalledTwice, i.joinPoint(), position-1)
	}
	i.proceeded[position] = true
	if position == len(i.advices) {
		return invokeTarget(i.ctx, i.invoke, i.args, i.recoverPanic)
	}
	// the advice below sees and may replace the context, its caller keeps its own
	ctx := i.ctx
	i.cursor++
	defer func() {
		i.cursor = position
		i.ctx = ctx
	}()
	return i.advices[position].Invoke(i)
}

// complete marks the invocation as finished, a stashed invocation can no longer proceed.
func (i *methodInvocation) complete() {
	i.completed = true
}

func (i *methodInvocation) joinPoint() string {
	return types.JoinPoint{Type: i.typ, Method: i.method}.ShortString()
}

func invokeTarget(ctx context.Context, invoke func(ctx context.Context, args []any) (any, error), args []any, recoverPanic bool) (result any, err error) {
	if recoverPanic {
		defer func() {
			if caught := recover(); caught != nil {
				result = nil
				err = &types.PanicError{Value: caught, Stack: runtime.CallerStack(panicStackSkip, runtime.DefaultDepth)}
			}
		}()
	}
	return invoke(ctx, args)
}
