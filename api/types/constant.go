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
	"errors"
	"fmt"
)

const (
	// PointcutTypeTrue matches every operation
	PointcutTypeTrue = "true"
	// PointcutTypeName glob patterns on the method name
	PointcutTypeName = "name"
	// PointcutTypeExpression execution/within structural expression
	PointcutTypeExpression = "expression"
	// PointcutTypeExpr runtime expr-lang expression over the arguments
	PointcutTypeExpr = "expr"
	// PointcutTypeScript runtime JavaScript match function
	PointcutTypeScript = "script"
)

var (
	// ErrInvalidExpression is returned when a structural pointcut expression cannot be parsed
	ErrInvalidExpression = errors.New("invalid pointcut expression")
	// ErrInvalidPointcut is returned when a pointcut definition is unusable
	ErrInvalidPointcut = errors.New("invalid pointcut")
	// ErrProxyConstruction is returned when the target exposes no usable operation set
	ErrProxyConstruction = errors.New("proxy construction failed")
	// ErrProceedCalledTwice is returned when an advice calls Proceed more than once
	ErrProceedCalledTwice = errors.New("proceed called more than once by the same advice")
	// ErrInvocationCompleted is returned when Proceed is called after the invocation returned
	ErrInvocationCompleted = errors.New("invocation already completed")
	// ErrMethodNotFound is returned when the proxy has no operation with the requested name
	ErrMethodNotFound = errors.New("method not found")
	// ErrArgumentMismatch is returned when call arguments do not fit the operation
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrUnknownAdviceType is returned when an advisor definition names an unregistered advice type
	ErrUnknownAdviceType = errors.New("unknown advice type")
	// ErrConcurrencyLimitReached is the error returned when the concurrency limit has been reached
	ErrConcurrencyLimitReached = errors.New("concurrency limit reached")
	// ErrFallback is returned while the skip-fallback advice keeps a failing operation open
	ErrFallback = errors.New("skip fallback error")
	// ErrCacheNotInitialized is returned by a nil cache
	ErrCacheNotInitialized = errors.New("cache not initialized")
)

// PanicError wraps a value recovered from a panicking target operation.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
