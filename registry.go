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

package weave

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/builtin/advice"
	"github.com/rulego/weave/utils/maps"
)

// Registry is the default registry of advice types used by advisor definitions.
var Registry = NewAdviceRegistry()

// Configuration the advice configuration of an advisor definition
type Configuration map[string]interface{}

// BuildContext is passed to advice factories.
type BuildContext struct {
	Config types.Config
	// Registerer receives Prometheus collectors, prometheus.DefaultRegisterer when nil
	Registerer prometheus.Registerer
}

// AdviceFactory creates an advice from its definition configuration.
type AdviceFactory func(ctx BuildContext, configuration Configuration) (types.Advice, error)

// init registers the built-in advice types.
func init() {
	_ = Registry.Register("trace", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		return advice.NewTraceAdvice(ctx.Config), nil
	})
	_ = Registry.Register("time", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		return advice.NewTimeAdvice(ctx.Config), nil
	})
	_ = Registry.Register("debug", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		return advice.NewDebugAdvice(ctx.Config), nil
	})
	_ = Registry.Register("metrics", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		return advice.NewMetricsAdvice(nil), nil
	})
	_ = Registry.Register("prometheus", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		var c struct {
			Namespace string
		}
		if err := maps.Map2Struct(configuration, &c); err != nil {
			return nil, err
		}
		return advice.NewPrometheusAdvice(ctx.Registerer, c.Namespace)
	})
	_ = Registry.Register("limiter", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		var c struct {
			Max int
		}
		if err := maps.Map2Struct(configuration, &c); err != nil {
			return nil, err
		}
		if c.Max <= 0 {
			return nil, errors.New("limiter max must be greater than 0")
		}
		return advice.NewConcurrencyLimiterAdvice(c.Max), nil
	})
	_ = Registry.Register("fallback", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		var c struct {
			ErrorCountLimit int64
			LimitDuration   time.Duration
		}
		if err := maps.Map2Struct(configuration, &c); err != nil {
			return nil, err
		}
		return advice.NewSkipFallbackAdvice(c.ErrorCountLimit, c.LimitDuration), nil
	})
	_ = Registry.Register("cache", func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		var c struct {
			Ttl time.Duration
		}
		if err := maps.Map2Struct(configuration, &c); err != nil {
			return nil, err
		}
		return advice.NewCacheAdvice(ctx.Config, c.Ttl), nil
	})
}

// AdviceRegistry maps advice types to factories.
type AdviceRegistry struct {
	factories map[string]AdviceFactory
	// RWMutex is a read/write mutex lock.
	sync.RWMutex
}

// NewAdviceRegistry creates an empty registry.
func NewAdviceRegistry() *AdviceRegistry {
	return &AdviceRegistry{factories: make(map[string]AdviceFactory)}
}

// Register adds an advice type.
func (r *AdviceRegistry) Register(adviceType string, factory AdviceFactory) error {
	if adviceType == "" || factory == nil {
		return errors.New("advice type and factory are required")
	}
	r.Lock()
	defer r.Unlock()
	if _, ok := r.factories[adviceType]; ok {
		return errors.New("the advice type already exists. adviceType=" + adviceType)
	}
	r.factories[adviceType] = factory
	return nil
}

// Unregister removes an advice type.
func (r *AdviceRegistry) Unregister(adviceType string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.factories[adviceType]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownAdviceType, adviceType)
	}
	delete(r.factories, adviceType)
	return nil
}

// NewAdvice creates an advice of the registered type.
func (r *AdviceRegistry) NewAdvice(ctx BuildContext, adviceType string, configuration Configuration) (types.Advice, error) {
	r.RLock()
	factory, ok := r.factories[adviceType]
	r.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownAdviceType, adviceType)
	}
	a, err := factory(ctx, configuration)
	if err != nil {
		return nil, fmt.Errorf("advice %s: %w", adviceType, err)
	}
	return a, nil
}

// Types returns the registered advice types, sorted.
func (r *AdviceRegistry) Types() []string {
	r.RLock()
	defer r.RUnlock()
	var result []string
	for k := range r.factories {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
