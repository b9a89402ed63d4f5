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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/builtin/advice"
	"github.com/rulego/weave/engine"
	"github.com/rulego/weave/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errIllegalItem = errors.New("illegal item")

// repository declares app.order.OrderRepository with save and find
type repository struct {
	mu    sync.Mutex
	saved []string
}

func (r *repository) Capabilities() types.Capabilities {
	return types.Capabilities{
		Type: types.NewTypeDescriptor("app/order", "OrderRepository"),
		Operations: []types.Operation{
			{
				Method: types.NewMethodDescriptor("save", "string"),
				Invoke: func(ctx context.Context, args []any) (any, error) {
					itemId := args[0].(string)
					if itemId == "ex" {
						return nil, errIllegalItem
					}
					r.mu.Lock()
					r.saved = append(r.saved, itemId)
					r.mu.Unlock()
					return nil, nil
				},
			},
			{
				Method: types.NewMethodDescriptor("find", "string").WithReturns("string"),
				Invoke: func(ctx context.Context, args []any) (any, error) {
					return "item-" + args[0].(string), nil
				},
			},
		},
	}
}

// controller declares app.web.OrderController with request and noLog
type controller struct {
	save func(ctx context.Context, itemId string) error
}

func newController(t *testing.T, repository *engine.Proxy) *controller {
	save, err := engine.Action1[string](repository, "save")
	require.Nil(t, err)
	return &controller{save: save}
}

func (c *controller) Capabilities() types.Capabilities {
	return types.Capabilities{
		Type: types.NewTypeDescriptor("app/web", "OrderController"),
		Operations: []types.Operation{
			{
				Method: types.NewMethodDescriptor("request", "string").WithReturns("string"),
				Invoke: func(ctx context.Context, args []any) (any, error) {
					if err := c.save(ctx, args[0].(string)); err != nil {
						return nil, err
					}
					return "ok", nil
				},
			},
			{
				Method: types.NewMethodDescriptor("noLog").WithReturns("string"),
				Invoke: func(ctx context.Context, args []any) (any, error) {
					return "quiet", nil
				},
			},
		},
	}
}

func recordingConfig(recorder *trace.Recorder) types.Config {
	return NewConfig(types.WithTracer(trace.NewLogTracer(trace.WithSinks(recorder))))
}

func TestGlobPointcutScenario(t *testing.T) {
	recorder := trace.NewRecorder(100)
	config := recordingConfig(recorder)
	advisors, err := ParseAndBuild(config, []byte(`
advisors:
  - id: log
    pointcut: { type: name, patterns: ["save"] }
    advice: { type: trace }
`))
	require.Nil(t, err)
	require.Equal(t, 1, len(advisors))

	target := &repository{}
	proxy, err := NewProxyWithConfig(config, target, advisors)
	require.Nil(t, err)
	assert.Equal(t, engine.CapabilityProxy, proxy.Kind())

	_, err = proxy.Invoke(context.Background(), "save", "1")
	assert.Nil(t, err)
	events := recorder.Events()
	require.Equal(t, 2, len(events))
	assert.Equal(t, types.TraceBegin, events[0].Kind)
	assert.Equal(t, types.TraceEnd, events[1].Kind)
	assert.Equal(t, "OrderRepository.save()", events[0].Message)
	assert.Equal(t, []string{"1"}, target.saved)

	item, err := engine.Call[string](context.Background(), proxy, "find", "1")
	assert.Nil(t, err)
	assert.Equal(t, "item-1", item)
	assert.Equal(t, 2, recorder.Len())

	//target error is returned unchanged after an exception event
	_, err = proxy.Invoke(context.Background(), "save", "ex")
	assert.Equal(t, errIllegalItem, err)
	events = recorder.Events()
	require.Equal(t, 4, len(events))
	assert.Equal(t, types.TraceException, events[3].Kind)
	assert.Equal(t, errIllegalItem, events[3].Err)
}

func TestExpressionPointcutScenario(t *testing.T) {
	recorder := trace.NewRecorder(100)
	config := recordingConfig(recorder)
	advisors, err := ParseAndBuild(config, []byte(`
advisors:
  - id: log
    pointcut:
      type: expression
      expression: "execution(* app..*(..)) && !execution(* app..noLog(..))"
    advice:
      type: trace
`))
	require.Nil(t, err)

	repositoryProxy, err := NewProxyWithConfig(config, &repository{}, advisors)
	require.Nil(t, err)
	controllerProxy, err := NewProxyWithConfig(config, newController(t, repositoryProxy), advisors)
	require.Nil(t, err)

	result, err := controllerProxy.Invoke(context.Background(), "request", "1")
	require.Nil(t, err)
	assert.Equal(t, "ok", result)
	events := recorder.Events()
	require.Equal(t, 4, len(events))
	var levels []int
	for _, event := range events {
		levels = append(levels, event.Level)
		assert.Equal(t, events[0].TraceId, event.TraceId)
	}
	assert.Equal(t, []int{1, 2, 2, 1}, levels)
	assert.Equal(t, "OrderController.request()", events[0].Message)
	assert.Equal(t, "OrderRepository.save()", events[1].Message)

	result, err = controllerProxy.Invoke(context.Background(), "noLog")
	assert.Nil(t, err)
	assert.Equal(t, "quiet", result)
	assert.Equal(t, 4, recorder.Len())

	noLog, err := controllerProxy.Operation("noLog")
	require.Nil(t, err)
	assert.False(t, noLog.Advised())
}

func TestNamePatternSetScenario(t *testing.T) {
	builder := NewBuilder(NewConfig())
	pc, err := builder.BuildPointcut(PointcutDef{Type: PointcutTypeName, Patterns: []string{"order*", "save"}})
	require.Nil(t, err)
	orderType := types.NewTypeDescriptor("app/order", "OrderService")
	for name, expected := range map[string]bool{
		"orderItem": true,
		"order":     true,
		"save":      true,
		"saveAll":   false,
		"reorder":   false,
		"":          false,
	} {
		assert.Equal(t, expected, types.Matches(pc, orderType, types.NewMethodDescriptor(name)), name)
	}
}

func TestParseAdvisorsJSON(t *testing.T) {
	def, err := ParseAdvisors([]byte(`{
  "advisors": [
    {"id": "limit", "pointcut": {"type": "name", "patterns": ["order*", "save"]}, "advice": {"type": "limiter", "configuration": {"max": "10"}}},
    {"id": "cache", "pointcut": {"type": "expression", "expression": "execution(* app..find(..))"}, "advice": {"type": "cache", "configuration": {"ttl": "5s"}}},
    {"id": "fallback", "pointcut": {"type": "true"}, "advice": {"type": "fallback", "configuration": {"errorCountLimit": 2, "limitDuration": "1m"}}}
  ]
}`))
	require.Nil(t, err)
	require.Equal(t, 3, len(def.Advisors))
	assert.Equal(t, "limit", def.Advisors[0].Id)
	assert.Equal(t, []string{"order*", "save"}, def.Advisors[0].Pointcut.Patterns)

	advisors, err := NewBuilder(NewConfig()).Build(def)
	require.Nil(t, err)
	require.Equal(t, 3, len(advisors))
	assert.Equal(t, "limit", advisors[0].(*Advisor).Id)
	assert.Equal(t, "limiter", advisors[0].Advice().(advice.Typed).Type())
	assert.Equal(t, "cache", advisors[1].Advice().(advice.Typed).Type())
	assert.Equal(t, "fallback", advisors[2].Advice().(advice.Typed).Type())
}

func TestComposedPointcutDefinition(t *testing.T) {
	builder := NewBuilder(NewConfig())
	pc, err := builder.BuildPointcut(PointcutDef{
		Type: PointcutTypeAnd,
		Pointcuts: []PointcutDef{
			{Type: PointcutTypeExpression, Expression: "within(app..*)"},
			{Type: PointcutTypeNot, Pointcuts: []PointcutDef{{Type: PointcutTypeName, Patterns: []string{"noLog"}}}},
		},
	})
	require.Nil(t, err)
	web := types.NewTypeDescriptor("app/web", "OrderController")
	assert.True(t, types.Matches(pc, web, types.NewMethodDescriptor("request")))
	assert.False(t, types.Matches(pc, web, types.NewMethodDescriptor("noLog")))
	assert.False(t, types.Matches(pc, types.NewTypeDescriptor("lib", "Other"), types.NewMethodDescriptor("request")))

	pc, err = builder.BuildPointcut(PointcutDef{
		Type:       PointcutTypeExpr,
		Expression: `len(args) > 0 && args[0] == "vip"`,
		Base:       &PointcutDef{Type: PointcutTypeName, Patterns: []string{"save"}},
	})
	require.Nil(t, err)
	assert.True(t, types.IsRuntime(pc))
	assert.True(t, types.MatchesArgs(pc, web, types.NewMethodDescriptor("save"), []any{"vip"}))
	assert.False(t, types.MatchesArgs(pc, web, types.NewMethodDescriptor("save"), []any{"normal"}))
	assert.False(t, types.MatchesArgs(pc, web, types.NewMethodDescriptor("find"), []any{"vip"}))

	pc, err = builder.BuildPointcut(PointcutDef{Type: PointcutTypeScript, Script: `return method.name.startsWith("re")`})
	require.Nil(t, err)
	assert.True(t, types.MatchesArgs(pc, web, types.NewMethodDescriptor("request"), nil))
	assert.False(t, types.MatchesArgs(pc, web, types.NewMethodDescriptor("noLog"), nil))
}

func TestBuildErrors(t *testing.T) {
	builder := NewBuilder(NewConfig())
	_, err := builder.Build(AdvisorsDef{Advisors: []AdvisorDef{{Id: "a", Advice: AdviceDef{Type: "nope"}}}})
	assert.True(t, errors.Is(err, types.ErrUnknownAdviceType))

	_, err = builder.Build(AdvisorsDef{Advisors: []AdvisorDef{{Id: "a", Pointcut: PointcutDef{Type: PointcutTypeExpression, Expression: "execution(* app..*(..)"}, Advice: AdviceDef{Type: "trace"}}}})
	assert.True(t, errors.Is(err, types.ErrInvalidExpression))

	_, err = builder.Build(AdvisorsDef{Advisors: []AdvisorDef{{Id: "a", Pointcut: PointcutDef{Type: "regex"}, Advice: AdviceDef{Type: "trace"}}}})
	assert.True(t, errors.Is(err, types.ErrInvalidPointcut))

	_, err = builder.Build(AdvisorsDef{Advisors: []AdvisorDef{{Id: "a", Pointcut: PointcutDef{Type: PointcutTypeName}, Advice: AdviceDef{Type: "trace"}}}})
	assert.True(t, errors.Is(err, types.ErrInvalidPointcut))

	_, err = builder.Build(AdvisorsDef{Advisors: []AdvisorDef{
		{Id: "a", Advice: AdviceDef{Type: "trace"}},
		{Id: "a", Advice: AdviceDef{Type: "time"}},
	}})
	assert.NotNil(t, err)

	_, err = builder.Build(AdvisorsDef{Advisors: []AdvisorDef{{Id: "a", Advice: AdviceDef{Type: "limiter"}}}})
	assert.NotNil(t, err)

	_, err = ParseAdvisors([]byte("  "))
	assert.NotNil(t, err)
	_, err = ParseAdvisors([]byte("{bad json"))
	assert.NotNil(t, err)
}

func TestAdviceRegistry(t *testing.T) {
	assert.Equal(t, []string{"cache", "debug", "fallback", "limiter", "metrics", "prometheus", "time", "trace"}, Registry.Types())

	registry := NewAdviceRegistry()
	var log []string
	factory := func(ctx BuildContext, configuration Configuration) (types.Advice, error) {
		var prefix string
		if v, ok := configuration["prefix"]; ok {
			prefix = v.(string)
		}
		return types.AdviceFunc(func(inv types.Invocation) (any, error) {
			log = append(log, prefix+inv.Method().Name)
			return inv.Proceed()
		}), nil
	}
	require.Nil(t, registry.Register("audit", factory))
	assert.NotNil(t, registry.Register("audit", factory))
	assert.NotNil(t, registry.Register("", factory))

	builder := &Builder{Context: BuildContext{Config: NewConfig()}, Registry: registry}
	advisors, err := builder.Build(AdvisorsDef{Advisors: []AdvisorDef{
		{Id: "audit", Pointcut: PointcutDef{Type: PointcutTypeName, Patterns: []string{"find"}}, Advice: AdviceDef{Type: "audit", Configuration: Configuration{"prefix": "audit:"}}},
	}})
	require.Nil(t, err)
	proxy, err := NewProxy(&repository{}, advisors)
	require.Nil(t, err)
	_, err = proxy.Invoke(context.Background(), "find", "1")
	assert.Nil(t, err)
	assert.Equal(t, []string{"audit:find"}, log)

	require.Nil(t, registry.Unregister("audit"))
	assert.True(t, errors.Is(registry.Unregister("audit"), types.ErrUnknownAdviceType))
	_, err = registry.NewAdvice(BuildContext{}, "audit", nil)
	assert.True(t, errors.Is(err, types.ErrUnknownAdviceType))
}

func TestPrometheusAdviceDefinition(t *testing.T) {
	reg := prometheus.NewRegistry()
	builder := NewBuilder(NewConfig())
	builder.Context.Registerer = reg
	advisors, err := builder.Build(AdvisorsDef{Advisors: []AdvisorDef{
		{Id: "p", Advice: AdviceDef{Type: "prometheus", Configuration: Configuration{"namespace": "orders"}}},
	}})
	require.Nil(t, err)
	proxy, err := NewProxy(&repository{}, advisors)
	require.Nil(t, err)
	_, _ = proxy.Invoke(context.Background(), "save", "1")

	families, err := reg.Gather()
	require.Nil(t, err)
	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "orders_calls_total")
	assert.Contains(t, names, "orders_call_duration_seconds")
}

func TestLoadAdvisors(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "log.yaml"), []byte(`
advisors:
  - id: log
    pointcut: { type: name, patterns: ["save"] }
    advice: { type: trace }
`), 0644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "sub", "limit.json"), []byte(`{"advisors":[{"id":"limit","pointcut":{"type":"true"},"advice":{"type":"limiter","configuration":{"max":2}}}]}`), 0644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	advisors, err := LoadAdvisors(NewConfig(), dir)
	require.Nil(t, err)
	require.Equal(t, 2, len(advisors))
	var ids []string
	for _, a := range advisors {
		ids = append(ids, a.(*Advisor).Id)
	}
	assert.ElementsMatch(t, []string{"log", "limit"}, ids)

	advisors, err = LoadAdvisors(NewConfig(), filepath.Join(dir, "*.yaml"))
	require.Nil(t, err)
	assert.Equal(t, 1, len(advisors))

	require.Nil(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("advisors: [ {id: x, advice: {type: nope}} ]"), 0644))
	_, err = LoadAdvisors(NewConfig(), dir)
	assert.True(t, errors.Is(err, types.ErrUnknownAdviceType))
}

func TestAutoProxyCreator(t *testing.T) {
	recorder := trace.NewRecorder(10)
	config := recordingConfig(recorder)
	advisors, err := ParseAndBuild(config, []byte(`
advisors:
  - id: log
    pointcut: { type: expression, expression: "within(app.order.*)" }
    advice: { type: trace }
`))
	require.Nil(t, err)
	creator, err := NewAutoProxyCreator(config, advisors...)
	require.Nil(t, err)

	wrapped, err := creator.Wrap(&repository{})
	require.Nil(t, err)
	assert.True(t, engine.IsProxy(wrapped))

	plain := &controller{}
	wrapped, err = creator.Wrap(plain)
	require.Nil(t, err)
	assert.False(t, engine.IsProxy(wrapped))
	assert.Same(t, plain, wrapped)
}

type memoryLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *memoryLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestNewConfigDefaultsToLogTracer(t *testing.T) {
	logger := &memoryLogger{}
	config := NewConfig(types.WithLogger(logger))
	require.NotNil(t, config.Tracer)

	advisors, err := ParseAndBuild(config, []byte(`{"advisors":[{"pointcut":{"type":"name","patterns":["save"]},"advice":{"type":"trace"}}]}`))
	require.Nil(t, err)
	proxy, err := NewProxyWithConfig(config, &repository{}, advisors)
	require.Nil(t, err)
	_, _ = proxy.Invoke(context.Background(), "save", "1")

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Equal(t, 2, len(logger.lines))
	assert.True(t, strings.HasSuffix(logger.lines[0], "OrderRepository.save()"))
	assert.Contains(t, logger.lines[1], "OrderRepository.save() time=")
}

func TestConcurrentTraceIsolation(t *testing.T) {
	recorder := trace.NewRecorder(1000)
	config := recordingConfig(recorder)
	advisors, err := ParseAndBuild(config, []byte(`{"advisors":[{"pointcut":{"type":"true"},"advice":{"type":"trace"}}]}`))
	require.Nil(t, err)
	repositoryProxy, err := NewProxyWithConfig(config, &repository{}, advisors)
	require.Nil(t, err)
	controllerProxy, err := NewProxyWithConfig(config, newController(t, repositoryProxy), advisors)
	require.Nil(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = controllerProxy.Invoke(context.Background(), "request", "1")
		}()
	}
	wg.Wait()

	events := recorder.Events()
	require.Equal(t, 80, len(events))
	byId := map[string][]int{}
	for _, event := range events {
		byId[event.TraceId] = append(byId[event.TraceId], event.Level)
	}
	assert.Equal(t, 20, len(byId))
	for id, levels := range byId {
		assert.Equal(t, []int{1, 2, 2, 1}, levels, id)
		assert.False(t, strings.Contains(id, " "))
	}
}
