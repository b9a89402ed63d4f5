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

// TypeFilter decides whether a declaring type is subject to interception.
// TypeFilter 判断声明类型是否需要被拦截。
type TypeFilter interface {
	MatchType(t TypeDescriptor) bool
}

// TypeFilterFunc adapts a function to TypeFilter.
type TypeFilterFunc func(t TypeDescriptor) bool

func (f TypeFilterFunc) MatchType(t TypeDescriptor) bool {
	return f(t)
}

// MethodMatcher decides whether a method is subject to interception.
// MethodMatcher 判断方法是否需要被拦截。
//
// Matchers must be pure: the same input always yields the same result and no state is
// mutated. A matcher whose IsRuntime returns false must ignore arguments, the proxy then
// evaluates it once per operation instead of once per call.
// 非运行时匹配器只在代理创建时计算一次。
type MethodMatcher interface {
	// Matches performs the static check.
	Matches(t TypeDescriptor, m MethodDescriptor) bool
	// IsRuntime reports whether MatchesArgs must be called for every invocation
	// whose static check succeeded.
	IsRuntime() bool
	// MatchesArgs performs the runtime check with the call arguments.
	MatchesArgs(t TypeDescriptor, m MethodDescriptor, args []any) bool
}

// Pointcut is an immutable predicate composed of a type filter and a method matcher.
// Pointcut 切入点，由类型过滤器和方法匹配器组成，不可变。
type Pointcut interface {
	TypeFilter() TypeFilter
	MethodMatcher() MethodMatcher
}

// Matches reports whether the pointcut statically matches the join point.
func Matches(pc Pointcut, t TypeDescriptor, m MethodDescriptor) bool {
	if pc == nil {
		return false
	}
	if tf := pc.TypeFilter(); tf != nil && !tf.MatchType(t) {
		return false
	}
	mm := pc.MethodMatcher()
	return mm != nil && mm.Matches(t, m)
}

// IsRuntime reports whether the pointcut needs the call arguments.
func IsRuntime(pc Pointcut) bool {
	if pc == nil || pc.MethodMatcher() == nil {
		return false
	}
	return pc.MethodMatcher().IsRuntime()
}

// MatchesArgs reports whether the pointcut matches the join point for the given
// arguments. Static matchers ignore the arguments.
func MatchesArgs(pc Pointcut, t TypeDescriptor, m MethodDescriptor, args []any) bool {
	if !Matches(pc, t, m) {
		return false
	}
	mm := pc.MethodMatcher()
	if !mm.IsRuntime() {
		return true
	}
	return mm.MatchesArgs(t, m, args)
}
