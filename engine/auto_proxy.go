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

package engine

import (
	"github.com/rulego/weave/api/types"
)

// AutoProxyCreator wraps targets with proxies when at least one of its advisors can
// intercept one of their operations. Targets no advisor applies to are returned as is.
// AutoProxyCreator 自动代理创建器，只有存在匹配的切面时才创建代理。
type AutoProxyCreator struct {
	registry         *AdvisorRegistry
	config           types.Config
	proxyTargetClass bool
}

// NewAutoProxyCreator creates a creator sharing the registry across all wrapped targets.
func NewAutoProxyCreator(registry *AdvisorRegistry, opts ...types.Option) *AutoProxyCreator {
	if registry == nil {
		registry = &AdvisorRegistry{}
	}
	return &AutoProxyCreator{registry: registry, config: types.NewConfig(opts...)}
}

// WithConfig replaces the configuration used for every wrapped target.
func (c *AutoProxyCreator) WithConfig(config types.Config) *AutoProxyCreator {
	c.config = config
	return c
}

// SetProxyTargetClass forces the concrete strategy for every wrapped target.
func (c *AutoProxyCreator) SetProxyTargetClass(proxyTargetClass bool) *AutoProxyCreator {
	c.proxyTargetClass = proxyTargetClass
	return c
}

// Wrap returns a *Proxy around target, or target itself when no advisor matches any of
// its operations. interfaces are nil pointers to the interfaces to proxy.
func (c *AutoProxyCreator) Wrap(target any, interfaces ...any) (any, error) {
	factory := NewProxyFactory(target).WithConfig(c.config).SetProxyTargetClass(c.proxyTargetClass)
	factory.registry = c.registry
	for _, iface := range interfaces {
		factory.AddInterface(iface)
	}
	proxy, err := factory.GetProxy()
	if err != nil {
		return nil, err
	}
	for _, name := range proxy.names {
		if proxy.methods[name].Advised() {
			return proxy, nil
		}
	}
	return target, nil
}
