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
	"github.com/rs/zerolog"
	"github.com/rulego/weave/api/types"
)

// TraceLevelFieldName the field of the nesting level, zerolog.LevelFieldName is the severity
const TraceLevelFieldName = "traceLevel"

// ZerologSink writes every event as a structured zerolog event with the fields
// traceId, traceLevel, kind, elapsedMs and error. traceLevel is the nesting level,
// the zerolog level field keeps the severity. Exceptions are logged at error level.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink on the logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) OnTrace(event types.TraceEvent) {
	var e *zerolog.Event
	switch event.Kind {
	case types.TraceException:
		e = s.logger.Error().Err(event.Err)
	case types.TraceEnd:
		e = s.logger.Info()
	default:
		e = s.logger.Debug()
	}
	e = e.Str("traceId", event.TraceId).
		Int(TraceLevelFieldName, event.Level).
		Str("kind", string(event.Kind))
	if event.Kind != types.TraceBegin {
		e = e.Int64("elapsedMs", event.ElapsedMs())
	}
	e.Msg(Render(event))
}
