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

package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceCall(tracer types.Tracer, fail bool) {
	ctx, root := tracer.Begin(context.Background(), "OrderController.request()")
	_, child := tracer.Begin(ctx, "OrderRepository.save()")
	if fail {
		tracer.Exception(child, errors.New("illegal item"))
		tracer.Exception(root, errors.New("illegal item"))
		return
	}
	tracer.End(child)
	tracer.End(root)
}

func getEvents(t *testing.T, url string) (int, []Event) {
	resp, err := http.Get(url)
	require.Nil(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var events []Event
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&events))
	return resp.StatusCode, events
}

func TestTraces(t *testing.T) {
	recorder := trace.NewRecorder(100)
	tracer := trace.NewLogTracer(trace.WithSinks(recorder))
	traceCall(tracer, false)
	traceCall(tracer, true)

	server := NewServer(Config{Limit: 3}, recorder, prometheus.NewRegistry())
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	code, events := getEvents(t, ts.URL+"/traces?limit=8")
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 8, len(events))
	assert.Equal(t, "begin", events[0].Kind)
	assert.Equal(t, 1, events[0].Level)
	assert.Equal(t, "["+events[0].TraceId+"] OrderController.request()", events[0].Line)
	assert.Equal(t, "exception", events[6].Kind)
	assert.Equal(t, "illegal item", events[6].Error)
	assert.True(t, strings.HasPrefix(events[6].Line, "["+events[6].TraceId+"] |<X-OrderRepository.save() time="))

	//default limit keeps the newest events
	_, events = getEvents(t, ts.URL+"/traces")
	require.Equal(t, 3, len(events))
	assert.Equal(t, "OrderController.request()", events[2].Message)

	code, _ = getEvents(t, ts.URL+"/traces?limit=x")
	assert.Equal(t, http.StatusBadRequest, code)

	traceId := recorder.Events()[0].TraceId
	code, events = getEvents(t, ts.URL+"/traces/"+traceId)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 4, len(events))
	var levels []int
	for _, event := range events {
		assert.Equal(t, traceId, event.TraceId)
		levels = append(levels, event.Level)
	}
	assert.Equal(t, []int{1, 2, 2, 1}, levels)

	code, _ = getEvents(t, ts.URL+"/traces/unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "weave_test_calls_total", Help: "calls"})
	registry.MustRegister(counter)
	counter.Add(3)

	ts := httptest.NewServer(NewServer(Config{}, nil, registry).Router())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/metrics")
	require.Nil(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	assert.Contains(t, string(body), "weave_test_calls_total 3")
}

func TestStream(t *testing.T) {
	recorder := trace.NewRecorder(100)
	tracer := trace.NewLogTracer(trace.WithSinks(recorder))
	ts := httptest.NewServer(NewServer(Config{}, recorder, nil).Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/traces/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	traceCall(tracer, false)
	var received []Event
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(received) < 4 {
		var event Event
		require.Nil(t, conn.ReadJSON(&event))
		received = append(received, event)
	}
	assert.Equal(t, "begin", received[0].Kind)
	assert.Equal(t, "OrderRepository.save()", received[1].Message)
	assert.Equal(t, 2, received[1].Level)
	assert.Equal(t, "end", received[3].Kind)
	assert.Equal(t, received[0].TraceId, received[3].TraceId)
}

func TestStartStop(t *testing.T) {
	server := NewServer(Config{Server: "127.0.0.1:0"}, nil, prometheus.NewRegistry())
	assert.Equal(t, "", server.Addr())
	require.Nil(t, server.Start())
	assert.NotNil(t, server.Start())
	addr := server.Addr()
	require.NotEqual(t, "", addr)

	resp, err := http.Get("http://" + addr + "/traces")
	require.Nil(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Nil(t, server.Stop(ctx))
	assert.Nil(t, server.Stop(ctx))
}
