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

import (
	"time"
)

// Cache stores call results for the result cache advice.
// Cache 结果缓存增强点使用的缓存接口。
type Cache interface {
	// Set stores value under key. A ttl of 0 means the item never expires.
	Set(key string, value any, ttl time.Duration) error
	// Get returns the value and true if the key exists and has not expired.
	Get(key string) (any, bool)
	// Delete removes the key.
	Delete(key string) error
	// DeleteByPrefix removes every key with the prefix.
	DeleteByPrefix(prefix string) error
}
