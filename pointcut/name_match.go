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

package pointcut

import (
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/str"
)

// NameMatchPointcut matches the simple method name against `*` glob patterns.
// Patterns are OR-combined and case sensitive, the declaring type is always accepted.
// A pointcut without patterns matches nothing.
//
// NameMatchPointcut 使用通配符匹配方法名，多个模式为或关系，没有模式时不匹配任何方法。
type NameMatchPointcut struct {
	patterns []string
}

var _ types.MethodMatcher = (*NameMatchPointcut)(nil)

// NewNameMatchPointcut creates a name pointcut, e.g. NewNameMatchPointcut("request*", "order*", "save*").
func NewNameMatchPointcut(patterns ...string) *NameMatchPointcut {
	return &NameMatchPointcut{patterns: append([]string(nil), patterns...)}
}

// Patterns returns a copy of the configured patterns.
func (p *NameMatchPointcut) Patterns() []string {
	return append([]string(nil), p.patterns...)
}

func (p *NameMatchPointcut) TypeFilter() types.TypeFilter {
	return nil
}

func (p *NameMatchPointcut) MethodMatcher() types.MethodMatcher {
	return p
}

func (p *NameMatchPointcut) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return str.SimpleMatchAny(p.patterns, m.Name)
}

func (p *NameMatchPointcut) IsRuntime() bool {
	return false
}

func (p *NameMatchPointcut) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	return p.Matches(t, m)
}
