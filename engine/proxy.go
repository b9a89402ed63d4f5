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
	"context"
	"fmt"
	"reflect"

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/api/types/metrics"
	"github.com/rulego/weave/pointcut"
)

// ProxyKind the construction strategy of a proxy
type ProxyKind int

const (
	// CapabilityProxy dispatches through the explicit function table of a types.Capable target
	CapabilityProxy ProxyKind = iota
	// InterfaceProxy dispatches the methods of the declared interfaces
	InterfaceProxy
	// ConcreteProxy dispatches the exported method set of the concrete target
	ConcreteProxy
)

func (k ProxyKind) String() string {
	switch k {
	case CapabilityProxy:
		return "capability"
	case InterfaceProxy:
		return "interface"
	default:
		return "concrete"
	}
}

// ProxyFactory builds a proxy around one target.
// ProxyFactory 为目标对象创建代理。
//
// The strategy is chosen automatically:
//  1. the target implements types.Capable: its function table is used;
//  2. interfaces were added with AddInterface: their methods are proxied and reported
//     with the interface as declaring type;
//  3. otherwise the exported method set of the concrete target is proxied.
//
// SetProxyTargetClass(true) forces the concrete strategy.
//
// Usage:
//
//	proxy, err := engine.NewProxyFactory(orderService).
//		AddInterface((*OrderService)(nil)).
//		AddAdvisor(types.NewAdvisor(pointcut.NewNameMatchPointcut("save"), advice)).
//		GetProxy()
type ProxyFactory struct {
	target           any
	config           types.Config
	registry         *AdvisorRegistry
	interfaces       []reflect.Type
	proxyTargetClass bool
	err              error
}

// NewProxyFactory creates a factory for target.
func NewProxyFactory(target any, opts ...types.Option) *ProxyFactory {
	return &ProxyFactory{
		target:   target,
		config:   types.NewConfig(opts...),
		registry: &AdvisorRegistry{},
	}
}

// WithConfig replaces the configuration.
func (f *ProxyFactory) WithConfig(config types.Config) *ProxyFactory {
	f.config = config
	return f
}

// AddAdvice adds advice applying to every operation.
func (f *ProxyFactory) AddAdvice(advice types.Advice) *ProxyFactory {
	return f.AddAdvisor(types.NewAdvisor(pointcut.True, advice))
}

// AddAdvisor adds advisors after the existing ones.
func (f *ProxyFactory) AddAdvisor(advisors ...types.Advisor) *ProxyFactory {
	if err := f.registry.Add(advisors...); err != nil && f.err == nil {
		f.err = err
	}
	return f
}

// AddInterface declares an interface to proxy, given as a nil pointer to it,
// e.g. (*OrderService)(nil).
func (f *ProxyFactory) AddInterface(ifacePtr any) *ProxyFactory {
	t := reflect.TypeOf(ifacePtr)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Interface {
		if f.err == nil {
			f.err = fmt.Errorf("%w: %T is not a pointer to an interface", types.ErrProxyConstruction, ifacePtr)
		}
		return f
	}
	f.interfaces = append(f.interfaces, t.Elem())
	return f
}

// SetProxyTargetClass forces the concrete strategy even when interfaces were declared.
func (f *ProxyFactory) SetProxyTargetClass(proxyTargetClass bool) *ProxyFactory {
	f.proxyTargetClass = proxyTargetClass
	return f
}

// Registry returns the advisors of the factory.
func (f *ProxyFactory) Registry() *AdvisorRegistry {
	return f.registry
}

// GetProxy builds the proxy. It fails with types.ErrProxyConstruction when the target
// has no usable operation set, no proxy is ever partially built.
func (f *ProxyFactory) GetProxy() (*Proxy, error) {
	if f.err != nil {
		return nil, f.err
	}
	return newProxy(f.target, f.registry, f.interfaces, f.proxyTargetClass, f.config)
}

// Proxy is a stand-in for a target exposing the same operations. Calls of operations
// matched by at least one advisor run through an advice chain, all other calls go to the
// target directly.
// Proxy 代理对象，匹配切入点的调用执行增强链，否则直接调用目标对象。
type Proxy struct {
	target  any
	kind    ProxyKind
	typ     types.TypeDescriptor
	config  types.Config
	methods map[string]*Method
	// names keeps the declaration order of the operations
	names []string
	stats *metrics.DispatchStats
}

func newProxy(target any, registry *AdvisorRegistry, interfaces []reflect.Type, proxyTargetClass bool, config types.Config) (*Proxy, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", types.ErrProxyConstruction)
	}
	var (
		set  *operationSet
		kind ProxyKind
		err  error
	)
	capable, isCapable := target.(types.Capable)
	switch {
	case isCapable && !proxyTargetClass:
		kind = CapabilityProxy
		set, err = capabilityOperations(capable)
	case len(interfaces) > 0 && !proxyTargetClass:
		kind = InterfaceProxy
		set, err = interfaceOperations(target, interfaces)
	default:
		kind = ConcreteProxy
		set, err = concreteOperations(target)
	}
	if err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	p := &Proxy{
		target:  target,
		kind:    kind,
		typ:     set.typ,
		config:  config,
		methods: make(map[string]*Method, len(set.operations)),
		stats:   &metrics.DispatchStats{},
	}
	for _, op := range set.operations {
		m := &Method{
			proxy:  p,
			typ:    op.typ,
			method: op.operation.Method,
			invoke: op.operation.Invoke,
			sig:    op.sig,
		}
		m.bind(registry.Match(m.typ, m.method))
		p.methods[m.method.Name] = m
		p.names = append(p.names, m.method.Name)
	}
	return p, nil
}

// Kind returns the construction strategy.
func (p *Proxy) Kind() ProxyKind {
	return p.kind
}

// Type returns the primary declaring type: the capability type, the first interface or
// the concrete type.
func (p *Proxy) Type() types.TypeDescriptor {
	return p.typ
}

// Target returns the proxied target.
func (p *Proxy) Target() any {
	return p.target
}

// Methods returns the descriptors of the proxied operations in declaration order.
func (p *Proxy) Methods() []types.MethodDescriptor {
	result := make([]types.MethodDescriptor, 0, len(p.names))
	for _, name := range p.names {
		result = append(result, p.methods[name].method)
	}
	return result
}

// Stats returns the dispatch counters.
func (p *Proxy) Stats() metrics.DispatchStats {
	return p.stats.Get()
}

// Operation returns the pre-resolved handle of an operation.
func (p *Proxy) Operation(name string) (*Method, error) {
	m, ok := p.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrMethodNotFound, p.typ.Name, name)
	}
	return m, nil
}

// Invoke calls the named operation. A context.Context first parameter of the target
// method receives ctx.
func (p *Proxy) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	m, err := p.Operation(name)
	if err != nil {
		return nil, err
	}
	return m.Invoke(ctx, args...)
}

// Method is one proxied operation with the advisors that statically matched it.
type Method struct {
	proxy  *Proxy
	typ    types.TypeDescriptor
	method types.MethodDescriptor
	invoke func(ctx context.Context, args []any) (any, error)
	sig    *signature
	// advisors matched at construction, in registration order
	advisors []types.Advisor
	// advices is used directly when no advisor needs the arguments
	advices []types.Advice
	runtime bool
}

func (m *Method) bind(advisors []types.Advisor) {
	m.advisors = advisors
	for _, advisor := range advisors {
		m.advices = append(m.advices, advisor.Advice())
		if types.IsRuntime(advisor.Pointcut()) {
			m.runtime = true
		}
	}
}

// Type returns the declaring type reported to pointcuts.
func (m *Method) Type() types.TypeDescriptor {
	return m.typ
}

// Descriptor returns the method descriptor.
func (m *Method) Descriptor() types.MethodDescriptor {
	return m.method
}

// Advised reports whether any advisor may intercept the operation.
func (m *Method) Advised() bool {
	return len(m.advisors) > 0
}

// Invoke calls the operation through the advice chain, or directly when no advisor
// matches.
func (m *Method) Invoke(ctx context.Context, args ...any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	advices := m.resolve(args)
	if len(advices) == 0 {
		m.proxy.stats.IncrementBypassed()
		return invokeTarget(ctx, m.invoke, args, m.proxy.config.RecoverPanic)
	}
	m.proxy.stats.IncrementIntercepted()
	inv := newMethodInvocation(ctx, m, args, advices)
	defer inv.complete()
	return inv.Proceed()
}

func (m *Method) resolve(args []any) []types.Advice {
	if !m.runtime {
		return m.advices
	}
	var advices []types.Advice
	for _, advisor := range m.advisors {
		pc := advisor.Pointcut()
		if !types.IsRuntime(pc) || pc.MethodMatcher().MatchesArgs(m.typ, m.method, args) {
			advices = append(advices, advisor.Advice())
		}
	}
	return advices
}

// Call invokes the named operation and asserts its result type.
//
//	order, err := engine.Call[*Order](ctx, proxy, "Find", id)
func Call[R any](ctx context.Context, p *Proxy, name string, args ...any) (R, error) {
	m, err := p.Operation(name)
	if err != nil {
		var zero R
		return zero, err
	}
	result, err := m.Invoke(ctx, args...)
	return resultAs[R](m, result, err)
}

// IsProxy reports whether v is a proxy built by this package.
func IsProxy(v any) bool {
	p, ok := v.(*Proxy)
	return ok && p != nil
}

// IsInterfaceProxy reports whether v is a proxy of declared interfaces.
func IsInterfaceProxy(v any) bool {
	p, ok := v.(*Proxy)
	return ok && p != nil && p.kind == InterfaceProxy
}

// IsConcreteProxy reports whether v is a proxy of a concrete target's method set.
func IsConcreteProxy(v any) bool {
	p, ok := v.(*Proxy)
	return ok && p != nil && p.kind == ConcreteProxy
}

// IsCapabilityProxy reports whether v is a proxy of a types.Capable target.
func IsCapabilityProxy(v any) bool {
	p, ok := v.(*Proxy)
	return ok && p != nil && p.kind == CapabilityProxy
}
