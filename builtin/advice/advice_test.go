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
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/engine"
	"github.com/rulego/weave/pointcut"
	"github.com/rulego/weave/trace"
	"github.com/rulego/weave/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

type orderService struct {
	mu     sync.Mutex
	calls  int
	delay  time.Duration
	failOn string
}

func (s *orderService) Find(id string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if id == s.failOn {
		return "", errNotFound
	}
	return "order-" + id, nil
}

func (s *orderService) Boom() {
	panic("boom")
}

func (s *orderService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func newProxy(t *testing.T, target any, advices ...types.Advice) *engine.Proxy {
	factory := engine.NewProxyFactory(target)
	for _, a := range advices {
		factory.AddAdvice(a)
	}
	proxy, err := factory.GetProxy()
	require.Nil(t, err)
	return proxy
}

func TestTraceAdvice(t *testing.T) {
	logger := &lineLogger{}
	traceAdvice := NewTraceAdvice(types.NewConfig(types.WithLogger(logger)))
	assert.Equal(t, "trace", traceAdvice.Type())
	assert.NotNil(t, traceAdvice.Tracer())
	proxy := newProxy(t, &orderService{failOn: "x"}, traceAdvice)

	v, err := proxy.Invoke(context.Background(), "Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, "order-1", v)
	_, err = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, errNotFound, err)

	require.Equal(t, 4, len(logger.lines))
	assert.True(t, strings.HasSuffix(logger.lines[0], "] orderService.Find()"))
	assert.True(t, strings.Contains(logger.lines[1], "] orderService.Find() time="))
	assert.True(t, strings.HasSuffix(logger.lines[3], "ex=not found"))

	recorder := trace.NewRecorder(10)
	traceAdvice = NewTraceAdvice(types.NewConfig(types.WithTracer(trace.NewLogTracer(trace.WithSinks(recorder)))))
	proxy = newProxy(t, &orderService{}, traceAdvice)
	assert.Panics(t, func() {
		_, _ = proxy.Invoke(context.Background(), "Boom")
	})
	events := recorder.Events()
	require.Equal(t, 2, len(events))
	assert.Equal(t, types.TraceException, events[1].Kind)
	assert.Equal(t, "panic: boom", events[1].ErrorText())
}

func TestTimeAdvice(t *testing.T) {
	logger := &lineLogger{}
	timeAdvice := NewTimeAdvice(types.NewConfig(types.WithLogger(logger)))
	assert.Equal(t, "time", timeAdvice.Type())
	proxy := newProxy(t, &orderService{delay: 20 * time.Millisecond}, timeAdvice)
	_, err := proxy.Invoke(context.Background(), "Find", "1")
	assert.Nil(t, err)
	require.Equal(t, 2, len(logger.lines))
	assert.Equal(t, "orderService.Find() start", logger.lines[0])
	assert.True(t, strings.HasPrefix(logger.lines[1], "orderService.Find() end time="))
	assert.False(t, strings.HasPrefix(logger.lines[1], "orderService.Find() end time=0ms"))
}

func TestDebugAdvice(t *testing.T) {
	var flows []string
	debugAdvice := &DebugAdvice{OnDebug: func(ctx context.Context, flowType string, jp types.JoinPoint, args []any, result any, err error) {
		flows = append(flows, fmt.Sprintf("%s %s %v %v %v", flowType, jp.ShortString(), args, result, err))
	}}
	assert.Equal(t, "debug", debugAdvice.Type())
	proxy := newProxy(t, &orderService{failOn: "x"}, debugAdvice)
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	_, _ = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, []string{
		"IN orderService.Find() [1] <nil> <nil>",
		"OUT orderService.Find() [1] order-1 <nil>",
		"IN orderService.Find() [x] <nil> <nil>",
		"OUT orderService.Find() [x]  not found",
	}, flows)

	logger := &lineLogger{}
	proxy = newProxy(t, &orderService{failOn: "x"}, NewDebugAdvice(types.NewConfig(types.WithLogger(logger))))
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	_, _ = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, []string{
		`IN orderService.Find() args=["1"]`,
		"OUT orderService.Find() result=order-1",
		`IN orderService.Find() args=["x"]`,
		"OUT orderService.Find() err=not found",
	}, logger.lines)
}

func TestMetricsAdvice(t *testing.T) {
	metricsAdvice := NewMetricsAdvice(nil)
	assert.Equal(t, "metrics", metricsAdvice.Type())
	proxy := newProxy(t, &orderService{failOn: "x"}, metricsAdvice)
	for _, id := range []string{"1", "2", "x"} {
		_, _ = proxy.Invoke(context.Background(), "Find", id)
	}
	m := metricsAdvice.GetMetrics().Get()
	assert.Equal(t, int64(0), m.Current)
	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(2), m.Success)
	assert.Equal(t, int64(1), m.Failed)
	metricsAdvice.GetMetrics().Reset()
	assert.Equal(t, int64(0), metricsAdvice.GetMetrics().Get().Total)
}

func TestPrometheusAdvice(t *testing.T) {
	registry := prometheus.NewRegistry()
	promAdvice, err := NewPrometheusAdvice(registry, "test")
	require.Nil(t, err)
	assert.Equal(t, "prometheus", promAdvice.Type())
	proxy := newProxy(t, &orderService{failOn: "x"}, promAdvice)
	for _, id := range []string{"1", "2", "x"} {
		_, _ = proxy.Invoke(context.Background(), "Find", id)
	}
	typeName := "github.com.rulego.weave.builtin.advice.orderService"
	assert.Equal(t, float64(2), testutil.ToFloat64(promAdvice.calls.WithLabelValues(typeName, "Find", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(promAdvice.calls.WithLabelValues(typeName, "Find", "failure")))
	count, err := testutil.GatherAndCount(registry, "test_call_duration_seconds")
	require.Nil(t, err)
	assert.Equal(t, 2, count)

	//a second advice on the same registry reuses the collectors
	again, err := NewPrometheusAdvice(registry, "test")
	require.Nil(t, err)
	assert.Same(t, promAdvice.calls, again.calls)
}

func TestConcurrencyLimiterAdvice(t *testing.T) {
	maxConcurrent := 5
	limiter := NewConcurrencyLimiterAdvice(maxConcurrent)
	assert.Equal(t, "limiter", limiter.Type())
	target := &orderService{delay: 50 * time.Millisecond}
	proxy := newProxy(t, target, limiter)

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := 0; i < maxConcurrent*2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := proxy.Invoke(context.Background(), "Find", fmt.Sprint(i))
			if err != nil {
				mu.Lock()
				assert.Equal(t, types.ErrConcurrencyLimitReached, err)
				rejected++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.True(t, rejected > 0, "Concurrency limit should have been reached")
	assert.Equal(t, maxConcurrent*2-rejected, target.callCount())
	assert.Equal(t, int64(0), limiter.Current())

	//released on failure
	proxy = newProxy(t, &orderService{failOn: "x"}, NewConcurrencyLimiterAdvice(1))
	for i := 0; i < 3; i++ {
		_, err := proxy.Invoke(context.Background(), "Find", "x")
		assert.Equal(t, errNotFound, err)
	}
}

func TestSkipFallbackAdvice(t *testing.T) {
	fallback := NewSkipFallbackAdvice(2, 100*time.Millisecond)
	assert.Equal(t, "fallback", fallback.Type())
	target := &orderService{failOn: "x"}
	proxy := newProxy(t, target, fallback)
	key := "github.com.rulego.weave.builtin.advice.orderService.Find"

	_, err := proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, errNotFound, err)
	_, err = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, errNotFound, err)
	assert.Equal(t, int64(2), fallback.ErrorCount(key))

	//open: the target is skipped
	_, err = proxy.Invoke(context.Background(), "Find", "1")
	assert.Equal(t, types.ErrFallback, err)
	assert.Equal(t, 2, target.callCount())

	time.Sleep(150 * time.Millisecond)
	v, err := proxy.Invoke(context.Background(), "Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, "order-1", v)
	assert.Equal(t, int64(0), fallback.ErrorCount(key))

	//defaults
	zero := &SkipFallbackAdvice{}
	proxy = newProxy(t, &orderService{failOn: "x"}, zero)
	for i := 0; i < 3; i++ {
		_, _ = proxy.Invoke(context.Background(), "Find", "x")
	}
	_, err = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, types.ErrFallback, err)
}

func TestCacheAdvice(t *testing.T) {
	memoryCache := cache.NewMemoryCache(time.Minute)
	defer memoryCache.StopGC()
	cacheAdvice := NewCacheAdvice(types.NewConfig(types.WithCache(memoryCache)), 0)
	assert.Equal(t, "cache", cacheAdvice.Type())
	target := &orderService{failOn: "x"}
	proxy := newProxy(t, target, cacheAdvice)

	for i := 0; i < 3; i++ {
		v, err := proxy.Invoke(context.Background(), "Find", "1")
		assert.Nil(t, err)
		assert.Equal(t, "order-1", v)
	}
	assert.Equal(t, 1, target.callCount())
	_, _ = proxy.Invoke(context.Background(), "Find", "2")
	assert.Equal(t, 2, target.callCount())

	//failures are not cached
	_, err := proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, errNotFound, err)
	_, err = proxy.Invoke(context.Background(), "Find", "x")
	assert.Equal(t, errNotFound, err)
	assert.Equal(t, 4, target.callCount())

	find, err := proxy.Operation("Find")
	require.Nil(t, err)
	require.Nil(t, cacheAdvice.Evict(find.Type(), find.Descriptor()))
	assert.Equal(t, 0, memoryCache.Len())
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	assert.Equal(t, 5, target.callCount())

	//ttl
	ttlAdvice := NewCacheAdvice(types.NewConfig(), 50*time.Millisecond)
	target = &orderService{}
	proxy = newProxy(t, target, ttlAdvice)
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	assert.Equal(t, 1, target.callCount())
	time.Sleep(80 * time.Millisecond)
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	assert.Equal(t, 2, target.callCount())
}

// lookupKey has only unexported fields
type lookupKey struct {
	id int
}

type amount int64

type lookupService struct {
	calls int
}

func (s *lookupService) Get(key lookupKey) int {
	s.calls++
	return key.id
}

func (s *lookupService) Describe(v any) string {
	s.calls++
	return fmt.Sprintf("%T", v)
}

func (s *lookupService) Apply(fn func() int) int {
	s.calls++
	return fn()
}

func TestCacheAdviceKeys(t *testing.T) {
	target := &lookupService{}
	proxy := newProxy(t, target, NewCacheAdvice(types.NewConfig(), 0))
	ctx := context.Background()

	first, err := engine.Call[int](ctx, proxy, "Get", lookupKey{id: 1})
	assert.Nil(t, err)
	second, err := engine.Call[int](ctx, proxy, "Get", lookupKey{id: 2})
	assert.Nil(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	again, _ := engine.Call[int](ctx, proxy, "Get", lookupKey{id: 2})
	assert.Equal(t, 2, again)
	assert.Equal(t, 2, target.calls)

	//equal JSON forms of different types are distinct arguments
	target.calls = 0
	d1, _ := engine.Call[string](ctx, proxy, "Describe", int64(1))
	d2, _ := engine.Call[string](ctx, proxy, "Describe", amount(1))
	d3, _ := engine.Call[string](ctx, proxy, "Describe", "1")
	assert.Equal(t, []string{"int64", "advice.amount", "string"}, []string{d1, d2, d3})
	assert.Equal(t, 3, target.calls)

	//functions are never cached
	target.calls = 0
	_, _ = engine.Call[int](ctx, proxy, "Apply", func() int { return 1 })
	v, _ := engine.Call[int](ctx, proxy, "Apply", func() int { return 2 })
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, target.calls)
}

func TestAdviceWithPointcut(t *testing.T) {
	metricsAdvice := NewMetricsAdvice(nil)
	proxy, err := engine.NewProxyFactory(&orderService{}).
		AddAdvisor(types.NewAdvisor(pointcut.NewNameMatchPointcut("Boom"), metricsAdvice)).
		GetProxy()
	require.Nil(t, err)
	_, _ = proxy.Invoke(context.Background(), "Find", "1")
	assert.Equal(t, int64(0), metricsAdvice.GetMetrics().Get().Total)
}
