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

// Package advice provides the built-in advice applied around proxied operations.
//
// Package advice 提供内置的增强点，应用于被代理的操作前后。
//
// Available Built-in Advice:
// 可用的内置增强点：
//
//   - TraceAdvice: Nested call tracing with correlation ids and indentation
//     TraceAdvice：带关联ID和层级缩进的嵌套调用跟踪
//
//   - TimeAdvice: Logs the elapsed time of every call
//     TimeAdvice：记录每次调用的耗时
//
//   - DebugAdvice: Reports arguments and results before and after every call
//     DebugAdvice：在调用前后输出参数和结果
//
//   - MetricsAdvice: Collects current/total/success/failed counters
//     MetricsAdvice：收集调用计数指标
//
//   - PrometheusAdvice: Exports call counters and latency histograms to Prometheus
//     PrometheusAdvice：导出调用计数和耗时直方图到 Prometheus
//
//   - ConcurrencyLimiterAdvice: Limits concurrent calls
//     ConcurrencyLimiterAdvice：限制并发调用
//
//   - SkipFallbackAdvice: Circuit breaker skipping an operation that keeps failing
//     SkipFallbackAdvice：对持续失败的操作执行降级
//
//   - CacheAdvice: Caches successful results per method and arguments
//     CacheAdvice：按方法和参数缓存成功的结果
//
// Execution Order:
// 执行顺序：
//
// Advice runs in the registration order of its advisor. A typical setup registers the
// limiter and fallback first, so rejected calls are neither traced nor measured:
// 增强点按切面注册顺序执行：
//
//	proxy, err := engine.NewProxyFactory(target).
//		AddAdvice(advice.NewConcurrencyLimiterAdvice(100)).
//		AddAdvice(&advice.SkipFallbackAdvice{ErrorCountLimit: 5, LimitDuration: time.Minute}).
//		AddAdvisor(types.NewAdvisor(pc, advice.NewTraceAdvice(config))).
//		GetProxy()
//
// Custom Advice Development:
// 自定义增强点开发：
//
//	var audit = types.AdviceFunc(func(inv types.Invocation) (any, error) {
//		// before
//		result, err := inv.Proceed()
//		// after
//		return result, err
//	})
package advice

import (
	"github.com/rulego/weave/api/types"
)

// Typed is implemented by the built-in advice, the type is the name used by advisor
// definitions.
type Typed interface {
	types.Advice
	Type() string
}

func joinPoint(inv types.Invocation) types.JoinPoint {
	return types.JoinPoint{Type: inv.Type(), Method: inv.Method()}
}
