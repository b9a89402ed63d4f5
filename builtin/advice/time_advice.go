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
	"time"

	"github.com/rulego/weave/api/types"
)

var _ Typed = (*TimeAdvice)(nil)

// TimeAdvice logs the start of every call and its elapsed time.
type TimeAdvice struct {
	logger types.Logger
}

func NewTimeAdvice(config types.Config) *TimeAdvice {
	logger := config.Logger
	if logger == nil {
		logger = types.DefaultLogger()
	}
	return &TimeAdvice{logger: logger}
}

func (a *TimeAdvice) Type() string {
	return "time"
}

func (a *TimeAdvice) Invoke(inv types.Invocation) (any, error) {
	name := joinPoint(inv).ShortString()
	a.logger.Printf("%s start", name)
	start := time.Now()
	result, err := inv.Proceed()
	a.logger.Printf("%s end time=%dms", name, time.Since(start).Milliseconds())
	return result, err
}
