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

package types

import (
	"time"
)

// Config defines the configuration shared by proxies, pointcuts and built-in advice.
// Config 代理、切入点以及内置增强点共享的配置。
type Config struct {
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Tracer tracks intercepted calls for the trace advice. If nil, the trace advice
	// creates a log tracer on Logger.
	Tracer Tracer
	// RecoverPanic converts a panic raised by a target operation into a *PanicError.
	// By default panics propagate to the caller.
	RecoverPanic bool
	// ScriptMaxExecutionTime is the maximum execution time of script pointcuts, defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// Cache is the cache used by the result cache advice. If nil, the advice creates its own memory cache.
	Cache Cache
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
	}

	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
