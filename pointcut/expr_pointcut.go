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
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/weave/api/types"
)

// ExprPointcut refines a static pointcut with an expr-lang expression evaluated against
// the arguments of every call.
// ExprPointcut 在静态切入点基础上，使用 expr 表达式对每次调用的参数进行匹配。
//
// The expression sees the variables:
//
//	typeName       simple type name, e.g. OrderService
//	package        dotted package path
//	qualifiedName  package and type name
//	method         method name
//	params         parameter type names
//	args           call arguments
//
// e.g. `method == "Save" && args[0] > 100`. A failing evaluation does not match.
type ExprPointcut struct {
	base       types.Pointcut
	expression string
	program    *vm.Program
	logger     types.Logger
}

var _ types.MethodMatcher = (*ExprPointcut)(nil)

// NewExprPointcut compiles the expression. A nil base accepts every operation.
func NewExprPointcut(config types.Config, base types.Pointcut, expression string) (*ExprPointcut, error) {
	if expression == "" {
		return nil, fmt.Errorf("%w: empty expr expression", types.ErrInvalidPointcut)
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPointcut, err.Error())
	}
	return &ExprPointcut{base: base, expression: expression, program: program, logger: config.Logger}, nil
}

// Expression returns the source expression.
func (p *ExprPointcut) Expression() string {
	return p.expression
}

func (p *ExprPointcut) TypeFilter() types.TypeFilter {
	if p.base == nil {
		return nil
	}
	return p.base.TypeFilter()
}

func (p *ExprPointcut) MethodMatcher() types.MethodMatcher {
	return p
}

func (p *ExprPointcut) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	if p.base == nil {
		return true
	}
	mm := p.base.MethodMatcher()
	return mm != nil && mm.Matches(t, m)
}

func (p *ExprPointcut) IsRuntime() bool {
	return true
}

func (p *ExprPointcut) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	if p.base != nil && types.IsRuntime(p.base) && !p.base.MethodMatcher().MatchesArgs(t, m, args) {
		return false
	}
	out, err := expr.Run(p.program, map[string]any{
		"typeName":      t.Name,
		"package":       t.Package,
		"qualifiedName": t.QualifiedName(),
		"method":        m.Name,
		"params":        m.Params,
		"args":          args,
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("expr pointcut %s error: %s", p.expression, err.Error())
		}
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}
