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

package advice

import (
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/trace"
)

var _ Typed = (*TraceAdvice)(nil)

// TraceAdvice opens a trace status named `Type.method()` around every call. Errors are
// recorded as exception events and returned unchanged.
// TraceAdvice 在每次调用前后记录跟踪事件，错误原样返回。
type TraceAdvice struct {
	tracer types.Tracer
}

// NewTraceAdvice uses config.Tracer, or a log tracer on config.Logger.
func NewTraceAdvice(config types.Config) *TraceAdvice {
	tracer := config.Tracer
	if tracer == nil {
		tracer = trace.New(config.Logger)
	}
	return &TraceAdvice{tracer: tracer}
}

func (a *TraceAdvice) Type() string {
	return "trace"
}

// Tracer returns the tracer in use.
func (a *TraceAdvice) Tracer() types.Tracer {
	return a.tracer
}

func (a *TraceAdvice) Invoke(inv types.Invocation) (result any, err error) {
	ctx, status := a.tracer.Begin(inv.Context(), joinPoint(inv).ShortString())
	inv.SetContext(ctx)
	defer func() {
		// a panicking target still closes its level
		if caught := recover(); caught != nil {
			a.tracer.Exception(status, &types.PanicError{Value: caught})
			panic(caught)
		}
	}()
	result, err = inv.Proceed()
	if err != nil {
		a.tracer.Exception(status, err)
	} else {
		a.tracer.End(status)
	}
	return result, err
}
