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

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/js"
)

const matchFunctionName = "Match"

// ScriptPointcut refines a static pointcut with a JavaScript function body evaluated
// against the arguments of every call. The body runs as
// `function Match(type, method, args) { ... }` where type has name, package and
// qualifiedName, and method has name, params and returns.
// ScriptPointcut 使用 JavaScript 函数体对每次调用的参数进行匹配。
//
// Execution is bounded by types.Config.ScriptMaxExecutionTime. A script error, a timeout
// or a non boolean result does not match.
type ScriptPointcut struct {
	base     types.Pointcut
	script   string
	jsEngine *js.GojaJsEngine
	logger   types.Logger
}

var _ types.MethodMatcher = (*ScriptPointcut)(nil)

// NewScriptPointcut compiles the script. A nil base accepts every operation.
func NewScriptPointcut(config types.Config, base types.Pointcut, script string) (*ScriptPointcut, error) {
	if script == "" {
		return nil, fmt.Errorf("%w: empty script", types.ErrInvalidPointcut)
	}
	jsScript := fmt.Sprintf("function %s(type, method, args) { %s \n}", matchFunctionName, script)
	jsEngine, err := js.NewGojaJsEngine(config, jsScript, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPointcut, err.Error())
	}
	return &ScriptPointcut{base: base, script: script, jsEngine: jsEngine, logger: config.Logger}, nil
}

// Script returns the source function body.
func (p *ScriptPointcut) Script() string {
	return p.script
}

func (p *ScriptPointcut) TypeFilter() types.TypeFilter {
	if p.base == nil {
		return nil
	}
	return p.base.TypeFilter()
}

func (p *ScriptPointcut) MethodMatcher() types.MethodMatcher {
	return p
}

func (p *ScriptPointcut) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	if p.base == nil {
		return true
	}
	mm := p.base.MethodMatcher()
	return mm != nil && mm.Matches(t, m)
}

func (p *ScriptPointcut) IsRuntime() bool {
	return true
}

func (p *ScriptPointcut) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	if p.base != nil && types.IsRuntime(p.base) && !p.base.MethodMatcher().MatchesArgs(t, m, args) {
		return false
	}
	out, err := p.jsEngine.Execute(matchFunctionName,
		map[string]any{
			"name":          t.Name,
			"package":       t.Package,
			"qualifiedName": t.QualifiedName(),
		},
		map[string]any{
			"name":    m.Name,
			"params":  m.Params,
			"returns": m.Returns,
		},
		args,
	)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("script pointcut error: %s", err.Error())
		}
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}
