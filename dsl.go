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

package weave

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/pointcut"
	"github.com/rulego/weave/utils/fs"
	"gopkg.in/yaml.v3"
)

// Pointcut types of advisor definitions.
const (
	PointcutTypeTrue       = "true"
	PointcutTypeName       = "name"
	PointcutTypeExpression = "expression"
	PointcutTypeExpr       = "expr"
	PointcutTypeScript     = "script"
	PointcutTypeUnion      = "union"
	PointcutTypeAnd        = "intersection"
	PointcutTypeNot        = "not"
)

// AdvisorsDef is the root of an advisor definition file.
// AdvisorsDef 切面定义文件。
type AdvisorsDef struct {
	Advisors []AdvisorDef `json:"advisors" yaml:"advisors"`
}

// AdvisorDef pairs a pointcut with an advice.
type AdvisorDef struct {
	// Id unique within a definition set
	Id       string      `json:"id" yaml:"id"`
	Pointcut PointcutDef `json:"pointcut" yaml:"pointcut"`
	Advice   AdviceDef   `json:"advice" yaml:"advice"`
}

// PointcutDef defines a pointcut.
type PointcutDef struct {
	// Type one of true, name, expression, expr, script, union, intersection, not
	Type string `json:"type" yaml:"type"`
	// Patterns name patterns of the name pointcut
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	// Expression the expression of expression and expr pointcuts
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
	// Script the body of the Match function of script pointcuts
	Script string `json:"script,omitempty" yaml:"script,omitempty"`
	// Base static pointcut evaluated before expr and script pointcuts
	Base *PointcutDef `json:"base,omitempty" yaml:"base,omitempty"`
	// Pointcuts operands of union, intersection and not
	Pointcuts []PointcutDef `json:"pointcuts,omitempty" yaml:"pointcuts,omitempty"`
}

// AdviceDef defines an advice by registered type.
type AdviceDef struct {
	Type          string        `json:"type" yaml:"type"`
	Configuration Configuration `json:"configuration,omitempty" yaml:"configuration,omitempty"`
}

// Advisor an advisor built from a definition.
type Advisor struct {
	Id       string
	pointcut types.Pointcut
	advice   types.Advice
}

func (a *Advisor) Pointcut() types.Pointcut {
	return a.pointcut
}

func (a *Advisor) Advice() types.Advice {
	return a.advice
}

// ParseAdvisors parses a YAML or JSON definition.
func ParseAdvisors(data []byte) (AdvisorsDef, error) {
	var def AdvisorsDef
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return def, errors.New("empty advisor definition")
	}
	var err error
	if trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &def)
	} else {
		err = yaml.Unmarshal(trimmed, &def)
	}
	if err != nil {
		return def, fmt.Errorf("parse advisor definition: %w", err)
	}
	return def, nil
}

// Builder turns definitions into advisors.
type Builder struct {
	Context  BuildContext
	Registry *AdviceRegistry
}

// NewBuilder creates a builder using the default advice registry.
func NewBuilder(config types.Config) *Builder {
	return &Builder{Context: BuildContext{Config: config}, Registry: Registry}
}

// Build builds the advisors in definition order.
func (b *Builder) Build(def AdvisorsDef) ([]types.Advisor, error) {
	ids := make(map[string]struct{}, len(def.Advisors))
	advisors := make([]types.Advisor, 0, len(def.Advisors))
	for i, advisorDef := range def.Advisors {
		if advisorDef.Id != "" {
			if _, ok := ids[advisorDef.Id]; ok {
				return nil, fmt.Errorf("duplicate advisor id=%s", advisorDef.Id)
			}
			ids[advisorDef.Id] = struct{}{}
		}
		advisor, err := b.BuildAdvisor(advisorDef)
		if err != nil {
			return nil, fmt.Errorf("advisor[%d] id=%s: %w", i, advisorDef.Id, err)
		}
		advisors = append(advisors, advisor)
	}
	return advisors, nil
}

// BuildAdvisor builds one advisor.
func (b *Builder) BuildAdvisor(def AdvisorDef) (*Advisor, error) {
	pc, err := b.BuildPointcut(def.Pointcut)
	if err != nil {
		return nil, err
	}
	registry := b.Registry
	if registry == nil {
		registry = Registry
	}
	advice, err := registry.NewAdvice(b.Context, def.Advice.Type, def.Advice.Configuration)
	if err != nil {
		return nil, err
	}
	return &Advisor{Id: def.Id, pointcut: pc, advice: advice}, nil
}

// BuildPointcut builds a pointcut definition.
func (b *Builder) BuildPointcut(def PointcutDef) (types.Pointcut, error) {
	switch strings.ToLower(def.Type) {
	case PointcutTypeTrue, "":
		return pointcut.True, nil
	case PointcutTypeName:
		if len(def.Patterns) == 0 {
			return nil, fmt.Errorf("%w: name pointcut requires patterns", types.ErrInvalidPointcut)
		}
		return pointcut.NewNameMatchPointcut(def.Patterns...), nil
	case PointcutTypeExpression:
		return pointcut.NewExpressionPointcut(def.Expression)
	case PointcutTypeExpr:
		base, err := b.basePointcut(def.Base)
		if err != nil {
			return nil, err
		}
		return pointcut.NewExprPointcut(b.Context.Config, base, def.Expression)
	case PointcutTypeScript:
		base, err := b.basePointcut(def.Base)
		if err != nil {
			return nil, err
		}
		return pointcut.NewScriptPointcut(b.Context.Config, base, def.Script)
	case PointcutTypeUnion, PointcutTypeAnd:
		operands, err := b.buildPointcuts(def.Pointcuts)
		if err != nil {
			return nil, err
		}
		if strings.ToLower(def.Type) == PointcutTypeUnion {
			return pointcut.Union(operands...), nil
		}
		return pointcut.Intersection(operands...), nil
	case PointcutTypeNot:
		if len(def.Pointcuts) != 1 {
			return nil, fmt.Errorf("%w: not pointcut requires exactly one operand", types.ErrInvalidPointcut)
		}
		operand, err := b.BuildPointcut(def.Pointcuts[0])
		if err != nil {
			return nil, err
		}
		return pointcut.Negate(operand), nil
	default:
		return nil, fmt.Errorf("%w: unknown pointcut type %s", types.ErrInvalidPointcut, def.Type)
	}
}

func (b *Builder) buildPointcuts(defs []PointcutDef) ([]types.Pointcut, error) {
	var result []types.Pointcut
	for _, def := range defs {
		pc, err := b.BuildPointcut(def)
		if err != nil {
			return nil, err
		}
		result = append(result, pc)
	}
	return result, nil
}

func (b *Builder) basePointcut(def *PointcutDef) (types.Pointcut, error) {
	if def == nil {
		return nil, nil
	}
	return b.BuildPointcut(*def)
}

// ParseAndBuild parses a definition and builds its advisors with the default registry.
func ParseAndBuild(config types.Config, data []byte) ([]types.Advisor, error) {
	def, err := ParseAdvisors(data)
	if err != nil {
		return nil, err
	}
	return NewBuilder(config).Build(def)
}

// LoadAdvisors loads every *.yaml, *.yml and *.json definition under folderPath and its
// subfolders, and builds the advisors in file order.
// folderPath may also be a glob pattern, e.g. ./advisors/*.yaml
func LoadAdvisors(config types.Config, folderPath string) ([]types.Advisor, error) {
	var patterns []string
	if strings.ContainsAny(folderPath, "*?[") {
		patterns = []string{folderPath}
	} else {
		for _, ext := range []string{"*.yaml", "*.yml", "*.json"} {
			patterns = append(patterns, filepath.Join(folderPath, ext))
		}
	}
	var all AdvisorsDef
	seen := map[string]struct{}{}
	for _, pattern := range patterns {
		paths, err := fs.GetFilePaths(pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			def, err := ParseAdvisors(fs.LoadFile(path))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			all.Advisors = append(all.Advisors, def.Advisors...)
		}
	}
	return NewBuilder(config).Build(all)
}
