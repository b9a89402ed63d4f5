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
	"github.com/rulego/weave/api/types/metrics"
)

var _ Typed = (*MetricsAdvice)(nil)

// MetricsAdvice counts in-flight, total, successful and failed calls.
// MetricsAdvice 统计当前、总数、成功和失败的调用次数。
type MetricsAdvice struct {
	metrics *metrics.InvocationMetrics
}

// NewMetricsAdvice creates the advice on m, a new counter set when nil.
func NewMetricsAdvice(m *metrics.InvocationMetrics) *MetricsAdvice {
	if m == nil {
		m = metrics.NewInvocationMetrics()
	}
	return &MetricsAdvice{
		metrics: m,
	}
}

func (a *MetricsAdvice) Type() string {
	return "metrics"
}

func (a *MetricsAdvice) Invoke(inv types.Invocation) (any, error) {
	a.metrics.IncrementCurrent()
	a.metrics.IncrementTotal()
	defer a.metrics.DecrementCurrent()
	result, err := inv.Proceed()
	if err != nil {
		a.metrics.IncrementFailed()
	} else {
		a.metrics.IncrementSuccess()
	}
	return result, err
}

func (a *MetricsAdvice) GetMetrics() *metrics.InvocationMetrics {
	return a.metrics
}
