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

package trace

import (
	"context"
	"sync"

	"github.com/rulego/weave/api/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName the OpenTelemetry tracer name
const InstrumentationName = "github.com/rulego/weave"

var _ types.Tracer = (*OtelTracer)(nil)

// OtelTracer opens an OpenTelemetry span for every traced call and delegates the
// correlation id and event stream to the wrapped tracer.
// OtelTracer 为每个被跟踪的调用创建 OpenTelemetry span。
type OtelTracer struct {
	delegate types.Tracer
	tracer   oteltrace.Tracer
	spans    sync.Map
}

// NewOtelTracer wraps delegate, a LogTracer without sinks when nil. A nil provider uses
// the global tracer provider.
func NewOtelTracer(delegate types.Tracer, provider oteltrace.TracerProvider) *OtelTracer {
	if delegate == nil {
		delegate = NewLogTracer()
	}
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OtelTracer{delegate: delegate, tracer: provider.Tracer(InstrumentationName)}
}

func (t *OtelTracer) Begin(ctx context.Context, message string) (context.Context, *types.TraceStatus) {
	ctx, status := t.delegate.Begin(ctx, message)
	ctx, span := t.tracer.Start(ctx, message, oteltrace.WithAttributes(
		attribute.String("weave.trace_id", status.TraceId.Id),
		attribute.Int("weave.level", status.TraceId.Level),
	))
	t.spans.Store(status, span)
	return ctx, status
}

func (t *OtelTracer) End(status *types.TraceStatus) {
	t.delegate.End(status)
	if span, ok := t.takeSpan(status); ok {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

func (t *OtelTracer) Exception(status *types.TraceStatus, err error) {
	t.delegate.Exception(status, err)
	if span, ok := t.takeSpan(status); ok {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Error, "")
		}
		span.End()
	}
}

func (t *OtelTracer) takeSpan(status *types.TraceStatus) (oteltrace.Span, bool) {
	if status == nil {
		return nil, false
	}
	v, ok := t.spans.LoadAndDelete(status)
	if !ok {
		return nil, false
	}
	return v.(oteltrace.Span), true
}
