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

// Package runtime provides stack helpers used when a panicking target operation is
// converted into a *types.PanicError.
package runtime

import (
	"fmt"
	"runtime"
	"strings"
)

// DefaultDepth is the number of frames captured by Stack.
const DefaultDepth = 20

// Stack 获取调用者的堆栈信息
func Stack() string {
	return CallerStack(3, DefaultDepth)
}

// CallerStack formats up to depth frames, skipping the first skip frames
// (0 is runtime.Callers itself).
func CallerStack(skip, depth int) string {
	if depth <= 0 {
		depth = DefaultDepth
	}
	var pc = make([]uintptr, depth)
	n := runtime.Callers(skip, pc)
	frames := runtime.CallersFrames(pc[:n])

	var build strings.Builder
	for {
		frame, more := frames.Next()
		build.WriteString(fmt.Sprintf(" %s:%d %s\n", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return build.String()
}
