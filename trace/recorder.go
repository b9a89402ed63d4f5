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
	"sync"

	"github.com/rulego/weave/api/types"
)

// DefaultRecorderCapacity the number of events a Recorder keeps by default
const DefaultRecorderCapacity = 1024

// Recorder keeps the most recent trace events in a bounded ring buffer and forwards new
// events to subscribers. Slow subscribers miss events instead of blocking the traced call.
// Recorder 使用环形缓冲区保存最近的跟踪事件，并推送给订阅者。
type Recorder struct {
	mu          sync.RWMutex
	events      []types.TraceEvent
	next        int
	full        bool
	subscribers map[int]chan types.TraceEvent
	nextSubId   int
}

// NewRecorder creates a recorder keeping at most capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{
		events:      make([]types.TraceEvent, capacity),
		subscribers: make(map[int]chan types.TraceEvent),
	}
}

func (r *Recorder) OnTrace(event types.TraceEvent) {
	r.mu.Lock()
	r.events[r.next] = event
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	r.mu.Unlock()
}

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []types.TraceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(nil)
}

// ByTraceId returns the recorded events of one trace, oldest first.
func (r *Recorder) ByTraceId(traceId string) []types.TraceEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(func(event types.TraceEvent) bool {
		return event.TraceId == traceId
	})
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make([]types.TraceEvent, len(r.events))
	r.next = 0
	r.full = false
}

// Subscribe returns a channel receiving new events and a function that cancels the
// subscription and closes the channel.
func (r *Recorder) Subscribe(buffer int) (<-chan types.TraceEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.TraceEvent, buffer)
	r.mu.Lock()
	id := r.nextSubId
	r.nextSubId++
	r.subscribers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Recorder) snapshotLocked(filter func(event types.TraceEvent) bool) []types.TraceEvent {
	var result []types.TraceEvent
	appendRange := func(events []types.TraceEvent) {
		for _, event := range events {
			if filter == nil || filter(event) {
				result = append(result, event)
			}
		}
	}
	if r.full {
		appendRange(r.events[r.next:])
	}
	appendRange(r.events[:r.next])
	return result
}
