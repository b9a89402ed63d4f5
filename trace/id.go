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

package trace

import (
	"github.com/gofrs/uuid/v5"
)

// idLength is the number of uuid characters kept for a correlation id
const idLength = 8

// IdGenerator creates correlation ids for new root calls.
type IdGenerator func() string

// NewId returns the first 8 characters of a random uuid.
func NewId() string {
	return uuid.Must(uuid.NewV4()).String()[:idLength]
}
