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
	"sync/atomic"

	"github.com/rulego/weave/api/types"
)

var _ Typed = (*ConcurrencyLimiterAdvice)(nil)

// ConcurrencyLimiterAdvice limits the number of concurrently running intercepted calls.
// Calls over the limit fail with types.ErrConcurrencyLimitReached without reaching the target.
// ConcurrencyLimiterAdvice 限制并发调用数量，超过限制时返回 ErrConcurrencyLimitReached。
//
// Features:
// 功能特性：
//   - Atomic operations for thread-safe counting  原子操作确保线程安全计数
//   - Compare-and-swap (CAS) for consistent state  比较并交换（CAS）确保状态一致性
//   - Release on every exit path  任何退出路径都会释放计数
type ConcurrencyLimiterAdvice struct {
	Max          int64 // Maximum number of concurrent calls  最大并发调用数量
	currentCount int64 // Current number of concurrent calls  当前并发调用数量
}

// NewConcurrencyLimiterAdvice creates a limiter allowing max concurrent calls.
func NewConcurrencyLimiterAdvice(max int) *ConcurrencyLimiterAdvice {
	return &ConcurrencyLimiterAdvice{
		Max: int64(max),
	}
}

func (a *ConcurrencyLimiterAdvice) Type() string {
	return "limiter"
}

// Current returns the number of calls in flight.
func (a *ConcurrencyLimiterAdvice) Current() int64 {
	return atomic.LoadInt64(&a.currentCount)
}

func (a *ConcurrencyLimiterAdvice) Invoke(inv types.Invocation) (any, error) {
	for {
		current := atomic.LoadInt64(&a.currentCount)
		if current >= a.Max {
			return nil, types.ErrConcurrencyLimitReached
		}
		// retry when another goroutine changed the counter
		if atomic.CompareAndSwapInt64(&a.currentCount, current, current+1) {
			break
		}
	}
	defer atomic.AddInt64(&a.currentCount, -1)
	return inv.Proceed()
}
