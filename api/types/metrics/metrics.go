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

package metrics

import (
	"sync/atomic"
)

// InvocationMetrics holds counters of intercepted invocations.
type InvocationMetrics struct {
	Current int64 // Number of invocations currently in flight
	Total   int64 // Total number of invocations
	Failed  int64 // Number of invocations that returned an error
	Success int64 // Number of invocations that returned without error
}

// NewInvocationMetrics creates a new instance of InvocationMetrics.
func NewInvocationMetrics() *InvocationMetrics {
	return &InvocationMetrics{}
}

// IncrementCurrent increases the count of in-flight invocations.
func (m *InvocationMetrics) IncrementCurrent() {
	atomic.AddInt64(&m.Current, 1)
}

// DecrementCurrent decreases the count of in-flight invocations.
func (m *InvocationMetrics) DecrementCurrent() {
	atomic.AddInt64(&m.Current, -1)
}

// IncrementTotal increases the total count of invocations.
func (m *InvocationMetrics) IncrementTotal() {
	atomic.AddInt64(&m.Total, 1)
}

// IncrementFailed increases the count of failed invocations.
func (m *InvocationMetrics) IncrementFailed() {
	atomic.AddInt64(&m.Failed, 1)
}

// IncrementSuccess increases the count of successful invocations.
func (m *InvocationMetrics) IncrementSuccess() {
	atomic.AddInt64(&m.Success, 1)
}

// Get returns a copy of the current metrics.
func (m *InvocationMetrics) Get() InvocationMetrics {
	return InvocationMetrics{
		Current: atomic.LoadInt64(&m.Current),
		Total:   atomic.LoadInt64(&m.Total),
		Failed:  atomic.LoadInt64(&m.Failed),
		Success: atomic.LoadInt64(&m.Success),
	}
}

// Reset resets all metrics to zero.
func (m *InvocationMetrics) Reset() {
	atomic.StoreInt64(&m.Current, 0)
	atomic.StoreInt64(&m.Total, 0)
	atomic.StoreInt64(&m.Failed, 0)
	atomic.StoreInt64(&m.Success, 0)
}

// DispatchStats counts how proxy calls were dispatched.
// DispatchStats 统计代理调用的分派方式。
type DispatchStats struct {
	// Intercepted calls that built an advice chain
	Intercepted int64
	// Bypassed calls that went straight to the target
	Bypassed int64
}

// IncrementIntercepted increases the count of intercepted calls.
func (s *DispatchStats) IncrementIntercepted() {
	atomic.AddInt64(&s.Intercepted, 1)
}

// IncrementBypassed increases the count of bypassed calls.
func (s *DispatchStats) IncrementBypassed() {
	atomic.AddInt64(&s.Bypassed, 1)
}

// Get returns a copy of the current stats.
func (s *DispatchStats) Get() DispatchStats {
	return DispatchStats{
		Intercepted: atomic.LoadInt64(&s.Intercepted),
		Bypassed:    atomic.LoadInt64(&s.Bypassed),
	}
}
