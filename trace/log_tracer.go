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
	"time"

	"github.com/rulego/weave/api/types"
)

var _ types.Tracer = (*LogTracer)(nil)

// LogTracer is the default Tracer. It keeps the trace in the context and forwards every
// begin, end and exception event to its sinks.
// LogTracer 默认跟踪器，将跟踪事件发送给各个 sink。
type LogTracer struct {
	sinks       []types.TraceSink
	idGenerator IdGenerator
}

// Option configures a LogTracer
type Option func(*LogTracer)

// WithSinks adds sinks receiving the trace events.
func WithSinks(sinks ...types.TraceSink) Option {
	return func(t *LogTracer) {
		for _, sink := range sinks {
			if sink != nil {
				t.sinks = append(t.sinks, sink)
			}
		}
	}
}

// WithIdGenerator replaces the correlation id generator.
func WithIdGenerator(idGenerator IdGenerator) Option {
	return func(t *LogTracer) {
		if idGenerator != nil {
			t.idGenerator = idGenerator
		}
	}
}

// NewLogTracer creates a tracer. Without sinks events are discarded.
func NewLogTracer(opts ...Option) *LogTracer {
	t := &LogTracer{idGenerator: NewId}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// New creates a tracer rendering events through the logger.
func New(logger types.Logger, opts ...Option) *LogTracer {
	return NewLogTracer(append([]Option{WithSinks(NewLogSink(logger))}, opts...)...)
}

func (t *LogTracer) Begin(ctx context.Context, message string) (context.Context, *types.TraceStatus) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := FromContext(ctx)
	id := types.TraceId{Id: parent.Id, Level: parent.Level + 1}
	if parent.Level <= 0 || parent.Id == "" {
		id = types.TraceId{Id: t.idGenerator(), Level: 1}
	}
	status := &types.TraceStatus{TraceId: id, Message: message, StartTime: time.Now()}
	t.emit(types.TraceEvent{
		Kind:    types.TraceBegin,
		TraceId: id.Id,
		Level:   id.Level,
		Message: message,
		Time:    status.StartTime,
	})
	return WithTraceId(ctx, id), status
}

func (t *LogTracer) End(status *types.TraceStatus) {
	t.complete(status, types.TraceEnd, nil)
}

func (t *LogTracer) Exception(status *types.TraceStatus, err error) {
	t.complete(status, types.TraceException, err)
}

func (t *LogTracer) complete(status *types.TraceStatus, kind types.TraceEventKind, err error) {
	if status == nil {
		return
	}
	now := time.Now()
	t.emit(types.TraceEvent{
		Kind:    kind,
		TraceId: status.TraceId.Id,
		Level:   status.TraceId.Level,
		Message: status.Message,
		Elapsed: now.Sub(status.StartTime),
		Err:     err,
		Time:    now,
	})
}

func (t *LogTracer) emit(event types.TraceEvent) {
	for _, sink := range t.sinks {
		sink.OnTrace(event)
	}
}
