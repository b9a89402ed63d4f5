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

// Package str provides string helpers: `*` glob matching used by the name and
// structural pointcuts, and value-to-string conversion used for cache keys.
package str

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rulego/weave/utils/json"
)

// Wildcard matches any sequence of characters, including the empty one.
const Wildcard = "*"

// SimpleMatch reports whether s matches pattern. The pattern may contain `*`
// wildcards anywhere, e.g. "order*", "*Controller", "re*st", "*que*". Matching is case
// sensitive. A pattern without wildcards must equal s.
// SimpleMatch 简单通配符匹配，`*` 匹配任意字符串，区分大小写。
func SimpleMatch(pattern, s string) bool {
	first := strings.Index(pattern, Wildcard)
	if first == -1 {
		return pattern == s
	}
	if first == 0 {
		if len(pattern) == 1 {
			return true
		}
		next := strings.Index(pattern[1:], Wildcard)
		if next == -1 {
			return strings.HasSuffix(s, pattern[1:])
		}
		next++
		part := pattern[1:next]
		if part == "" {
			return SimpleMatch(pattern[next:], s)
		}
		rest := pattern[next:]
		for from := 0; from <= len(s); {
			idx := strings.Index(s[from:], part)
			if idx == -1 {
				return false
			}
			idx += from
			if SimpleMatch(rest, s[idx+len(part):]) {
				return true
			}
			from = idx + 1
		}
		return false
	}
	return len(s) >= first &&
		pattern[:first] == s[:first] &&
		SimpleMatch(pattern[first:], s[first:])
}

// SimpleMatchAny reports whether s matches at least one of the patterns.
// No patterns match nothing.
func SimpleMatchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if SimpleMatch(p, s) {
			return true
		}
	}
	return false
}

// ToString input的值转成字符串,忽略错误
func ToString(input interface{}) string {
	v, _ := ToStringMaybeErr(input)
	return v
}

// ToStringMaybeErr input的值转成字符串
func ToStringMaybeErr(input interface{}) (string, error) {
	if input == nil {
		return "", nil
	}
	switch v := input.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case error:
		return v.Error(), nil
	default:
		if newValue, err := json.Marshal(input); err == nil {
			return string(newValue), nil
		} else {
			return "", err
		}
	}
}

// Join converts every value with ToString and joins them with sep.
func Join(values []any, sep string) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(ToString(v))
	}
	return sb.String()
}
