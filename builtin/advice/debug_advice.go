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

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/str"
)

const (
	// In flow type before the call
	In = "IN"
	// Out flow type after the call
	Out = "OUT"
)

var _ Typed = (*DebugAdvice)(nil)

// DebugAdvice reports the arguments before and the result after every call.
// Without OnDebug the report is logged.
type DebugAdvice struct {
	OnDebug func(ctx context.Context, flowType string, jp types.JoinPoint, args []any, result any, err error)
	logger  types.Logger
}

func NewDebugAdvice(config types.Config) *DebugAdvice {
	return &DebugAdvice{logger: config.Logger}
}

func (a *DebugAdvice) Type() string {
	return "debug"
}

func (a *DebugAdvice) Invoke(inv types.Invocation) (any, error) {
	jp := joinPoint(inv)
	a.onDebug(inv.Context(), In, jp, inv.Arguments(), nil, nil)
	result, err := inv.Proceed()
	a.onDebug(inv.Context(), Out, jp, inv.Arguments(), result, err)
	return result, err
}

func (a *DebugAdvice) onDebug(ctx context.Context, flowType string, jp types.JoinPoint, args []any, result any, err error) {
	if a.OnDebug != nil {
		a.OnDebug(ctx, flowType, jp, args, result, err)
		return
	}
	if a.logger == nil {
		return
	}
	if flowType == In {
		a.logger.Printf("%s %s args=%s", flowType, jp.ShortString(), str.ToString(args))
	} else if err != nil {
		a.logger.Printf("%s %s err=%s", flowType, jp.ShortString(), err.Error())
	} else {
		a.logger.Printf("%s %s result=%s", flowType, jp.ShortString(), str.ToString(result))
	}
}
