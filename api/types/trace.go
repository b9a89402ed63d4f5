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
	"time"
)

// TraceEventKind the kind of a trace event
type TraceEventKind string

const (
	TraceBegin     TraceEventKind = "begin"
	TraceEnd       TraceEventKind = "end"
	TraceException TraceEventKind = "exception"
)

// TraceId is the correlation id shared by a root call and all of its nested calls,
// together with the nesting level of one call. The root call has level 1.
// TraceId 关联ID以及调用层级，根调用层级为1。
type TraceId struct {
	Id    string
	Level int
}

// IsRoot reports whether the id belongs to the outermost call.
func (t TraceId) IsRoot() bool {
	return t.Level == 1
}

// TraceStatus is created on entry to an intercepted call and closed by End or Exception.
type TraceStatus struct {
	TraceId   TraceId
	Message   string
	StartTime time.Time
}

// Elapsed returns the time since the status was created.
func (s *TraceStatus) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Tracer tracks nested intercepted calls. Trace state travels in the context:
// Begin returns the context the traced call must run with, and the caller keeps
// using its own context afterwards, so every exit path restores the parent level.
// Tracer 跟踪嵌套调用，跟踪状态通过 context 传递。
type Tracer interface {
	// Begin opens a trace status one level below the trace found in ctx. A context
	// without trace starts a new root with a fresh correlation id.
	Begin(ctx context.Context, message string) (context.Context, *TraceStatus)
	// End closes the status successfully.
	End(status *TraceStatus)
	// Exception closes the status with a failure.
	Exception(status *TraceStatus, err error)
}

// TraceEvent is one line of the trace event stream.
type TraceEvent struct {
	Kind    TraceEventKind `json:"kind"`
	TraceId string         `json:"traceId"`
	Level   int            `json:"level"`
	Message string         `json:"message"`
	// Elapsed is zero for begin events
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`
	Time    time.Time     `json:"time"`
}

// ElapsedMs returns the elapsed time in milliseconds.
func (e TraceEvent) ElapsedMs() int64 {
	return e.Elapsed.Milliseconds()
}

// ErrorText returns the error text, or an empty string.
func (e TraceEvent) ErrorText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// TraceSink receives trace events. Implementations must be safe for concurrent use.
type TraceSink interface {
	OnTrace(event TraceEvent)
}

// TraceSinkFunc adapts a function to TraceSink.
type TraceSinkFunc func(event TraceEvent)

func (f TraceSinkFunc) OnTrace(event TraceEvent) {
	f(event)
}
