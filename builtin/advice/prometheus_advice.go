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
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/weave/api/types"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var _ Typed = (*PrometheusAdvice)(nil)

// PrometheusAdvice exports a call counter and a latency histogram labelled by type,
// method and result.
// PrometheusAdvice 导出按类型、方法和结果分类的调用计数和耗时直方图。
type PrometheusAdvice struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusAdvice registers the collectors `<namespace>_calls_total` and
// `<namespace>_call_duration_seconds` on registerer, prometheus.DefaultRegisterer when nil.
// Collectors already registered under the same names are reused.
func NewPrometheusAdvice(registerer prometheus.Registerer, namespace string) (*PrometheusAdvice, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "weave"
	}
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of intercepted calls",
		},
		[]string{"type", "method", "result"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of intercepted calls",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"type", "method", "result"},
	)
	var err error
	if calls, err = register(registerer, calls); err != nil {
		return nil, err
	}
	if duration, err = register(registerer, duration); err != nil {
		return nil, err
	}
	return &PrometheusAdvice{calls: calls, duration: duration}, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (a *PrometheusAdvice) Type() string {
	return "prometheus"
}

func (a *PrometheusAdvice) Invoke(inv types.Invocation) (any, error) {
	start := time.Now()
	result, err := inv.Proceed()
	outcome := resultSuccess
	if err != nil {
		outcome = resultFailure
	}
	typeName := inv.Type().QualifiedName()
	method := inv.Method().Name
	a.calls.WithLabelValues(typeName, method, outcome).Inc()
	a.duration.WithLabelValues(typeName, method, outcome).Observe(time.Since(start).Seconds())
	return result, err
}
