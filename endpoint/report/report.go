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

// Package report serves the trace event stream and invocation metrics over HTTP.
//
// Routes:
//
//	GET /traces             recent trace events, oldest first, ?limit=N keeps the newest N
//	GET /traces/:traceId    events of one trace
//	GET /traces/stream      websocket stream of live events
//	GET /metrics            prometheus scrape
//
// Usage:
//
//	recorder := trace.NewRecorder(0)
//	config := weave.NewConfig(types.WithTracer(trace.New(logger, trace.WithSinks(recorder))))
//	server := report.NewServer(report.Config{Server: ":9090"}, recorder, prometheus.DefaultGatherer)
//	err := server.Start()
package report

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/trace"
)

const (
	// StreamPath the websocket path segment under /traces
	StreamPath = "stream"
	// DefaultLimit the number of events returned by /traces without limit
	DefaultLimit = 200
	writeWait    = 10 * time.Second
)

// Config report server configuration
type Config struct {
	// Server listen address, e.g. :9090
	Server      string
	CertFile    string
	CertKeyFile string
	// Limit the default number of events returned by /traces
	Limit int
	// AllowCors adds Access-Control-Allow-Origin: * and accepts websocket clients of any origin
	AllowCors bool
	// StreamBuffer buffered events per websocket subscriber
	StreamBuffer int
}

// Event the JSON form of a trace event
type Event struct {
	TraceId   string `json:"traceId"`
	Level     int    `json:"level"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ElapsedMs int64  `json:"elapsedMs"`
	Error     string `json:"error,omitempty"`
	Time      int64  `json:"time"`
	// Line the rendered trace line
	Line string `json:"line"`
}

// NewEvent converts a trace event.
func NewEvent(event types.TraceEvent) Event {
	return Event{
		TraceId:   event.TraceId,
		Level:     event.Level,
		Kind:      string(event.Kind),
		Message:   event.Message,
		ElapsedMs: event.ElapsedMs(),
		Error:     event.ErrorText(),
		Time:      event.Time.UnixMilli(),
		Line:      trace.Render(event),
	}
}

// Server 跟踪事件报告服务
type Server struct {
	Config   Config
	Upgrader websocket.Upgrader
	recorder *trace.Recorder
	gatherer prometheus.Gatherer
	logger   types.Logger
	router   *httprouter.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server on the recorder. A nil gatherer scrapes prometheus.DefaultGatherer.
func NewServer(config Config, recorder *trace.Recorder, gatherer prometheus.Gatherer) *Server {
	if recorder == nil {
		recorder = trace.NewRecorder(0)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	s := &Server{
		Config:   config,
		recorder: recorder,
		gatherer: gatherer,
		logger:   types.DefaultLogger(),
	}
	if config.AllowCors {
		s.Upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
	s.router = httprouter.New()
	s.router.GET("/traces", s.listTraces)
	// /traces/stream shares the wildcard route, httprouter rejects a static sibling
	s.router.GET("/traces/:traceId", s.traceOrStream)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

// WithLogger replaces the logger.
func (s *Server) WithLogger(logger types.Logger) *Server {
	s.logger = types.NewLogger(logger)
	return s
}

// Router returns the request router.
func (s *Server) Router() *httprouter.Router {
	return s.router
}

// Start listens on Config.Server and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("report server already started")
	}
	ln, err := net.Listen("tcp", s.Config.Server)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{Addr: s.Config.Server, Handler: s.router}
	server := s.server
	isTls := s.Config.CertKeyFile != "" && s.Config.CertFile != ""
	go func() {
		defer ln.Close()
		var err error
		if isTls {
			s.logger.Printf("started report server with TLS on %s", ln.Addr())
			err = server.ServeTLS(ln, s.Config.CertFile, s.Config.CertKeyFile)
		} else {
			s.logger.Printf("started report server on %s", ln.Addr())
			err = server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("report server stopped err:%v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or an empty string before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (s *Server) listTraces(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := s.Config.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events := s.recorder.Events()
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	s.writeEvents(w, events)
}

func (s *Server) traceOrStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	traceId := params.ByName("traceId")
	if traceId == StreamPath {
		s.stream(w, r)
		return
	}
	events := s.recorder.ByTraceId(traceId)
	if len(events) == 0 {
		http.Error(w, "trace not found", http.StatusNotFound)
		return
	}
	s.writeEvents(w, events)
}

func (s *Server) writeEvents(w http.ResponseWriter, events []types.TraceEvent) {
	result := make([]Event, 0, len(events))
	for _, event := range events {
		result = append(result, NewEvent(event))
	}
	w.Header().Set("Content-Type", "application/json")
	if s.Config.AllowCors {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Printf("write trace events err:%v", err)
	}
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	// subscribe before the handshake completes so no event after it is missed
	events, cancel := s.recorder.Subscribe(s.Config.StreamBuffer)
	defer cancel()
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade err:%v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(NewEvent(event)); err != nil {
				return
			}
		}
	}
}
