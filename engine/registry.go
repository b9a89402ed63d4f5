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

package engine

import (
	"fmt"
	"sync"

	"github.com/rulego/weave/api/types"
)

// AdvisorRegistry is an ordered collection of advisors. Registration order is the
// order in which matching advice runs.
// AdvisorRegistry 有序的切面注册表，注册顺序即增强点的执行顺序。
type AdvisorRegistry struct {
	advisors []types.Advisor
	// RWMutex is a read/write mutex lock.
	sync.RWMutex
}

// NewAdvisorRegistry creates a registry holding the given advisors.
func NewAdvisorRegistry(advisors ...types.Advisor) (*AdvisorRegistry, error) {
	r := &AdvisorRegistry{}
	if err := r.Add(advisors...); err != nil {
		return nil, err
	}
	return r, nil
}

// Add appends advisors. An advisor without pointcut or advice is rejected and nothing is added.
func (r *AdvisorRegistry) Add(advisors ...types.Advisor) error {
	for i, advisor := range advisors {
		if advisor == nil || advisor.Pointcut() == nil || advisor.Advice() == nil {
			return fmt.Errorf("%w: advisor %d has no pointcut or advice", types.ErrInvalidPointcut, i)
		}
	}
	r.Lock()
	defer r.Unlock()
	r.advisors = append(r.advisors, advisors...)
	return nil
}

// Advisors returns a copy of the registered advisors in registration order.
func (r *AdvisorRegistry) Advisors() []types.Advisor {
	r.RLock()
	defer r.RUnlock()
	return append([]types.Advisor(nil), r.advisors...)
}

// Len returns the number of registered advisors.
func (r *AdvisorRegistry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.advisors)
}

// Resolve returns, in registration order, the advice of every advisor whose pointcut
// statically matches the join point. Runtime pointcuts are included when their static
// check passes, see ResolveArgs.
func (r *AdvisorRegistry) Resolve(t types.TypeDescriptor, m types.MethodDescriptor) []types.Advice {
	var result []types.Advice
	for _, advisor := range r.Match(t, m) {
		result = append(result, advisor.Advice())
	}
	return result
}

// ResolveArgs is like Resolve but also evaluates runtime pointcuts with the arguments.
func (r *AdvisorRegistry) ResolveArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) []types.Advice {
	var result []types.Advice
	for _, advisor := range r.Match(t, m) {
		if types.MatchesArgs(advisor.Pointcut(), t, m, args) {
			result = append(result, advisor.Advice())
		}
	}
	return result
}

// Match returns the advisors whose pointcut statically matches the join point.
func (r *AdvisorRegistry) Match(t types.TypeDescriptor, m types.MethodDescriptor) []types.Advisor {
	r.RLock()
	defer r.RUnlock()
	var result []types.Advisor
	for _, advisor := range r.advisors {
		if types.Matches(advisor.Pointcut(), t, m) {
			result = append(result, advisor)
		}
	}
	return result
}
