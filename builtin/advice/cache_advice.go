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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/cache"
)

const cacheKeyPrefix = "weave:"

var _ Typed = (*CacheAdvice)(nil)

// CacheAdvice returns the cached result of an earlier successful call with the same
// arguments, skipping the target. Failures are never cached.
// CacheAdvice 缓存成功调用的结果，相同参数的调用直接返回缓存结果。
type CacheAdvice struct {
	cache types.Cache
	// ttl of the cached results, 0 never expires
	ttl time.Duration
}

// NewCacheAdvice uses config.Cache, or a new memory cache when nil.
func NewCacheAdvice(config types.Config, ttl time.Duration) *CacheAdvice {
	c := config.Cache
	if c == nil {
		c = cache.NewMemoryCache(time.Minute)
	}
	return &CacheAdvice{cache: c, ttl: ttl}
}

func (a *CacheAdvice) Type() string {
	return "cache"
}

func (a *CacheAdvice) Invoke(inv types.Invocation) (any, error) {
	key, ok := cacheKey(inv.Type(), inv.Method(), inv.Arguments())
	if !ok {
		// arguments without a stable key are not cached
		return inv.Proceed()
	}
	if value, ok := a.cache.Get(key); ok {
		return value, nil
	}
	result, err := inv.Proceed()
	if err == nil {
		_ = a.cache.Set(key, result, a.ttl)
	}
	return result, err
}

// Evict removes every cached result of the operation.
func (a *CacheAdvice) Evict(t types.TypeDescriptor, m types.MethodDescriptor) error {
	return a.cache.DeleteByPrefix(methodKey(t, m))
}

func methodKey(t types.TypeDescriptor, m types.MethodDescriptor) string {
	return cacheKeyPrefix + t.QualifiedName() + "." + m.Name + ":"
}

// cacheKey renders every argument with its dynamic type and Go syntax value, so values
// of different types, or structs differing only in unexported fields, never share a key.
// Functions and channels have no stable key.
func cacheKey(t types.TypeDescriptor, m types.MethodDescriptor, args []any) (string, bool) {
	var sb strings.Builder
	sb.WriteString(methodKey(t, m))
	for i, arg := range args {
		switch reflect.ValueOf(arg).Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return "", false
		}
		if i > 0 {
			sb.WriteByte('|')
		}
		_, _ = fmt.Fprintf(&sb, "%T=%#v", arg, arg)
	}
	return sb.String(), true
}
