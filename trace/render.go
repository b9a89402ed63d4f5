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

package trace

import (
	"strconv"
	"strings"

	"github.com/rulego/weave/api/types"
)

const (
	startPrefix    = "-->"
	completePrefix = "<--"
	exPrefix       = "<X-"
	indent         = "|   "
)

// Render formats an event as one trace line, e.g. `[796bccd9] |   |<--OrderRepository.save() time=1004ms`.
// The root call has no prefix.
func Render(event types.TraceEvent) string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(event.TraceId)
	sb.WriteString("] ")
	switch event.Kind {
	case types.TraceEnd:
		writePrefix(&sb, completePrefix, event.Level)
	case types.TraceException:
		writePrefix(&sb, exPrefix, event.Level)
	default:
		writePrefix(&sb, startPrefix, event.Level)
	}
	sb.WriteString(event.Message)
	if event.Kind == types.TraceBegin {
		return sb.String()
	}
	sb.WriteString(" time=")
	sb.WriteString(strconv.FormatInt(event.ElapsedMs(), 10))
	sb.WriteString("ms")
	if event.Kind == types.TraceException {
		sb.WriteString(" ex=")
		sb.WriteString(event.ErrorText())
	}
	return sb.String()
}

func writePrefix(sb *strings.Builder, prefix string, level int) {
	depth := level - 1
	for i := 0; i < depth; i++ {
		if i == depth-1 {
			sb.WriteByte('|')
			sb.WriteString(prefix)
		} else {
			sb.WriteString(indent)
		}
	}
}

// LogSink writes rendered events to a types.Logger.
type LogSink struct {
	logger types.Logger
}

// NewLogSink creates a sink on the logger, types.DefaultLogger() when nil.
func NewLogSink(logger types.Logger) *LogSink {
	if logger == nil {
		logger = types.DefaultLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) OnTrace(event types.TraceEvent) {
	s.logger.Printf("%s", Render(event))
}
