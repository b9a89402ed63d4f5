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

// Package weave is an interception runtime: it builds proxies that wrap the operations
// of a target with advice, selected per operation by pointcuts, and traces nested
// intercepted calls.
//
// # Usage
//
// Declare advisors in code or in a definition file:
//
//	advisors:
//	  - id: log
//	    pointcut:
//	      type: expression
//	      expression: "execution(* app..*(..)) && !execution(* app..noLog(..))"
//	    advice:
//	      type: trace
//	  - id: limit
//	    pointcut:
//	      type: name
//	      patterns: ["order*", "save"]
//	    advice:
//	      type: limiter
//	      configuration:
//	        max: 10
//
// Build the advisors
//
//	advisors, err := weave.ParseAndBuild(config, []byte(definitions))
//
// Create a proxy
//
//	proxy, err := weave.NewProxy(orderService, advisors, (*OrderService)(nil))
//
// Call an operation
//
//	_, err = proxy.Invoke(ctx, "OrderItem", "item-1")
//
// or through typed handles checked when they are created, e.g. to build a stub
// implementing the target's interface
//
//	orderItem, err := engine.Action1[string](proxy, "OrderItem")
//	err = orderItem(ctx, "item-1")
//
// Load all definition files of a folder
//
//	advisors, err := weave.LoadAdvisors(config, "./advisors")
package weave

import (
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/engine"
	"github.com/rulego/weave/trace"
)

// NewConfig creates a config. Without a tracer option, the config traces through a log
// tracer on its logger.
func NewConfig(opts ...types.Option) types.Config {
	config := types.NewConfig(opts...)
	if config.Tracer == nil {
		config.Tracer = trace.New(config.Logger)
	}
	return config
}

// NewProxy builds a proxy applying advisors to target. interfaces are nil pointers to the
// interfaces to proxy, e.g. (*OrderService)(nil); without them the concrete method set
// is proxied unless target implements types.Capable.
func NewProxy(target any, advisors []types.Advisor, interfaces ...any) (*engine.Proxy, error) {
	return NewProxyWithConfig(NewConfig(), target, advisors, interfaces...)
}

// NewProxyWithConfig is like NewProxy with an explicit config.
func NewProxyWithConfig(config types.Config, target any, advisors []types.Advisor, interfaces ...any) (*engine.Proxy, error) {
	factory := engine.NewProxyFactory(target).WithConfig(config).AddAdvisor(advisors...)
	for _, iface := range interfaces {
		factory.AddInterface(iface)
	}
	return factory.GetProxy()
}

// NewAutoProxyCreator creates a creator proxying only the targets the advisors apply to.
func NewAutoProxyCreator(config types.Config, advisors ...types.Advisor) (*engine.AutoProxyCreator, error) {
	registry, err := engine.NewAdvisorRegistry(advisors...)
	if err != nil {
		return nil, err
	}
	creator := engine.NewAutoProxyCreator(registry)
	creator.WithConfig(config)
	return creator, nil
}
