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

// Package pointcut provides the pointcut matchers that decide which operations a
// piece of advice applies to.
//
// Package pointcut 提供切入点匹配器，用于决定增强点应用到哪些操作。
//
// Available pointcuts:
// 可用的切入点：
//
//   - True: matches every operation  匹配所有操作
//   - NameMatchPointcut: `*` globs on the method name, e.g. "order*", "save"
//     NameMatchPointcut：方法名通配符匹配
//   - ExpressionPointcut: structural expressions such as
//     `execution(* app..*(..)) && !execution(* app..noLog(..))`
//     ExpressionPointcut：结构化表达式匹配
//   - ExprPointcut: runtime expr-lang expression over the call arguments
//     ExprPointcut：基于 expr 表达式的运行时参数匹配
//   - ScriptPointcut: runtime JavaScript match function
//     ScriptPointcut：基于 JavaScript 的运行时匹配
//
// Pointcuts are immutable and safe for concurrent use. Static pointcuts are evaluated
// once per operation when a proxy is built; runtime pointcuts are additionally
// evaluated with the arguments of every call.
//
// Usage:
// 使用方法：
//
//	pc, err := pointcut.NewExpressionPointcut("execution(* app..*(..)) && !execution(* app..noLog(..))")
//	if err != nil {
//		return err
//	}
//	advisor := types.NewAdvisor(pc, advice.NewTraceAdvice(config))
package pointcut

import (
	"github.com/rulego/weave/api/types"
)

var (
	_ types.Pointcut      = (*Pointcut)(nil)
	_ types.MethodMatcher = (*composite)(nil)
)

// True matches every operation.
var True types.Pointcut = New(nil, MethodMatcherFunc(func(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return true
}))

// Pointcut composes a type filter and a method matcher. A nil type filter accepts
// every type.
type Pointcut struct {
	typeFilter    types.TypeFilter
	methodMatcher types.MethodMatcher
}

// New creates a pointcut from a type filter and a method matcher.
func New(typeFilter types.TypeFilter, methodMatcher types.MethodMatcher) *Pointcut {
	return &Pointcut{typeFilter: typeFilter, methodMatcher: methodMatcher}
}

func (p *Pointcut) TypeFilter() types.TypeFilter {
	return p.typeFilter
}

func (p *Pointcut) MethodMatcher() types.MethodMatcher {
	return p.methodMatcher
}

// MethodMatcherFunc adapts a pure function to a static types.MethodMatcher.
type MethodMatcherFunc func(t types.TypeDescriptor, m types.MethodDescriptor) bool

func (f MethodMatcherFunc) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return f(t, m)
}

func (f MethodMatcherFunc) IsRuntime() bool {
	return false
}

func (f MethodMatcherFunc) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	return f(t, m)
}

// TypeMatching accepts only types for which filter returns true.
func TypeMatching(filter func(t types.TypeDescriptor) bool) *Pointcut {
	return New(types.TypeFilterFunc(filter), MethodMatcherFunc(func(t types.TypeDescriptor, m types.MethodDescriptor) bool {
		return true
	}))
}

type compositeKind int

const (
	unionKind compositeKind = iota
	intersectionKind
	negateKind
)

// composite is both the pointcut and its method matcher; type filtering is folded into
// the matcher through types.Matches on the parts.
type composite struct {
	kind    compositeKind
	parts   []types.Pointcut
	runtime bool
}

// Union matches when any of the pointcuts matches. It is runtime-sensitive if any part is.
func Union(pointcuts ...types.Pointcut) types.Pointcut {
	return newComposite(unionKind, pointcuts)
}

// Intersection matches when all of the pointcuts match. It is runtime-sensitive if any part is.
func Intersection(pointcuts ...types.Pointcut) types.Pointcut {
	return newComposite(intersectionKind, pointcuts)
}

// Negate matches when the pointcut does not.
func Negate(pc types.Pointcut) types.Pointcut {
	return newComposite(negateKind, []types.Pointcut{pc})
}

func newComposite(kind compositeKind, pointcuts []types.Pointcut) *composite {
	parts := make([]types.Pointcut, 0, len(pointcuts))
	runtime := false
	for _, pc := range pointcuts {
		if pc == nil {
			continue
		}
		parts = append(parts, pc)
		runtime = runtime || types.IsRuntime(pc)
	}
	return &composite{kind: kind, parts: parts, runtime: runtime}
}

func (c *composite) TypeFilter() types.TypeFilter {
	return nil
}

func (c *composite) MethodMatcher() types.MethodMatcher {
	return c
}

func (c *composite) IsRuntime() bool {
	return c.runtime
}

// Matches for a runtime negation can only be decided with the arguments, so the static
// check lets it through and MatchesArgs decides.
func (c *composite) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	switch c.kind {
	case unionKind:
		for _, pc := range c.parts {
			if types.Matches(pc, t, m) {
				return true
			}
		}
		return false
	case intersectionKind:
		if len(c.parts) == 0 {
			return false
		}
		for _, pc := range c.parts {
			if !types.Matches(pc, t, m) {
				return false
			}
		}
		return true
	default:
		if len(c.parts) == 0 {
			return false
		}
		if c.runtime {
			return true
		}
		return !types.Matches(c.parts[0], t, m)
	}
}

func (c *composite) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	switch c.kind {
	case unionKind:
		for _, pc := range c.parts {
			if types.MatchesArgs(pc, t, m, args) {
				return true
			}
		}
		return false
	case intersectionKind:
		if len(c.parts) == 0 {
			return false
		}
		for _, pc := range c.parts {
			if !types.MatchesArgs(pc, t, m, args) {
				return false
			}
		}
		return true
	default:
		if len(c.parts) == 0 {
			return false
		}
		return !types.MatchesArgs(c.parts[0], t, m, args)
	}
}
