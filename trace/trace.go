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

// Package trace tracks nested intercepted calls and reports them as a stream of
// begin/end/exception events.
//
// Package trace 跟踪嵌套的拦截调用，并输出开始/结束/异常事件流。
//
// Trace state travels in context.Context: Tracer.Begin returns the context the traced call
// runs with, one level below the trace already in the context, or a new root with a fresh
// correlation id. Because the caller keeps its own context, the level returns to the
// parent level on every exit path and concurrent calls never share trace state.
//
// Events are delivered to sinks:
//
//   - LogSink renders the classic indented form through types.Logger
//   - ZerologSink writes structured zerolog events
//   - Recorder keeps recent events in memory for the report endpoint
//
// Rendering:
//
//	[796bccd9] OrderController.request()
//	[796bccd9] |-->OrderService.orderItem()
//	[796bccd9] |   |-->OrderRepository.save()
//	[796bccd9] |   |<--OrderRepository.save() time=1004ms
//	[796bccd9] |<--OrderService.orderItem() time=1014ms
//	[796bccd9] OrderController.request() time=1016ms
package trace

import (
	"context"

	"github.com/rulego/weave/api/types"
)

type traceIdKey struct{}

// WithTraceId returns a copy of ctx carrying the trace id.
func WithTraceId(ctx context.Context, id types.TraceId) context.Context {
	return context.WithValue(ctx, traceIdKey{}, id)
}

// FromContext returns the trace id carried by ctx.
func FromContext(ctx context.Context) (types.TraceId, bool) {
	if ctx == nil {
		return types.TraceId{}, false
	}
	id, ok := ctx.Value(traceIdKey{}).(types.TraceId)
	return id, ok
}

// Level returns the nesting level of the trace in ctx, 0 when there is none.
func Level(ctx context.Context) int {
	id, _ := FromContext(ctx)
	return id.Level
}
