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
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/weave/api/types"
)

var _ Typed = (*SkipFallbackAdvice)(nil)

// SkipFallbackAdvice is a circuit breaker per operation. After ErrorCountLimit failures
// the operation is skipped and calls fail with types.ErrFallback until LimitDuration has
// passed since the last failure. A successful call resets the count.
// SkipFallbackAdvice 按操作熔断：失败次数达到阈值后跳过目标调用并返回 ErrFallback，
// 直到距最后一次失败超过 LimitDuration。
type SkipFallbackAdvice struct {
	// ErrorCountLimit the number of failures that opens the breaker, default 3
	ErrorCountLimit int64
	// LimitDuration how long the breaker stays open, default 10 seconds
	LimitDuration time.Duration
	// errorCache stores *operationError per join point
	errorCache sync.Map
	lock       sync.Mutex
}

// NewSkipFallbackAdvice creates the advice, zero values select the defaults.
func NewSkipFallbackAdvice(errorCountLimit int64, limitDuration time.Duration) *SkipFallbackAdvice {
	if errorCountLimit <= 0 {
		errorCountLimit = 3
	}
	if limitDuration <= 0 {
		limitDuration = time.Second * 10
	}
	return &SkipFallbackAdvice{ErrorCountLimit: errorCountLimit, LimitDuration: limitDuration}
}

func (a *SkipFallbackAdvice) Type() string {
	return "fallback"
}

func (a *SkipFallbackAdvice) Invoke(inv types.Invocation) (any, error) {
	key := inv.Type().QualifiedName() + "." + inv.Method().Name
	limit, duration := a.limits()
	if opError, ok := a.getError(key); ok && atomic.LoadInt64(&opError.errorCount) >= limit {
		if atomic.LoadInt64(&opError.lastErrorTime)+duration.Milliseconds() < time.Now().UnixMilli() {
			// window passed, try again
			a.errorCache.Delete(key)
		} else {
			return nil, types.ErrFallback
		}
	}
	result, err := inv.Proceed()
	if err != nil {
		a.recordError(key)
	} else {
		a.errorCache.Delete(key)
	}
	return result, err
}

// ErrorCount returns the recorded failures of an operation, keyed `package.Type.method`.
func (a *SkipFallbackAdvice) ErrorCount(key string) int64 {
	if opError, ok := a.getError(key); ok {
		return atomic.LoadInt64(&opError.errorCount)
	}
	return 0
}

func (a *SkipFallbackAdvice) limits() (int64, time.Duration) {
	limit, duration := a.ErrorCountLimit, a.LimitDuration
	if limit <= 0 {
		limit = 3
	}
	if duration <= 0 {
		duration = time.Second * 10
	}
	return limit, duration
}

func (a *SkipFallbackAdvice) recordError(key string) {
	now := time.Now().UnixMilli()
	if opError, ok := a.getError(key); ok {
		atomic.AddInt64(&opError.errorCount, 1)
		atomic.StoreInt64(&opError.lastErrorTime, now)
		return
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if opError, ok := a.getError(key); ok {
		atomic.AddInt64(&opError.errorCount, 1)
		atomic.StoreInt64(&opError.lastErrorTime, now)
		return
	}
	a.errorCache.Store(key, &operationError{errorCount: 1, lastErrorTime: now})
}

func (a *SkipFallbackAdvice) getError(key string) (*operationError, bool) {
	if v, ok := a.errorCache.Load(key); ok {
		if opError, ok := v.(*operationError); ok {
			return opError, true
		}
	}
	return nil, false
}

// operationError the failure record of one operation
type operationError struct {
	errorCount int64
	// lastErrorTime unix milliseconds of the last failure
	lastErrorTime int64
}
