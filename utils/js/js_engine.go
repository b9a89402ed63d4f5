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

// Package js provides the JavaScript runtime used by script pointcuts.
//
// This package implements a JavaScript engine using the goja library. A script is
// compiled once, every pooled VM runs it to define its functions, and Execute calls one
// of those functions with Go values converted to JavaScript values.
//
// Key components:
// - GojaJsEngine: The pooled JavaScript engine.
// - NewGojaJsEngine: Compiles the script and validates it on a first VM.
//
// The package supports features such as:
// - Pooling of JavaScript VMs for efficient reuse
// - Execution time limits through types.Config.ScriptMaxExecutionTime
// - Go values and functions exposed to scripts through vars
package js

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rulego/weave/api/types"
)

// GojaJsEngine goja js engine
type GojaJsEngine struct {
	vmPool   sync.Pool
	config   types.Config
	jsScript *goja.Program
}

// NewGojaJsEngine Create a new instance of the JavaScript engine.
// The script is run once on a fresh VM so that syntax and top level errors are reported here.
func NewGojaJsEngine(config types.Config, jsScript string, vars map[string]any) (*GojaJsEngine, error) {
	program, err := goja.Compile("", jsScript, true)
	if err != nil {
		return nil, err
	}
	jsEngine := &GojaJsEngine{
		config:   config,
		jsScript: program,
	}
	first, err := jsEngine.NewVm(vars)
	if err != nil {
		return nil, err
	}
	jsEngine.vmPool = sync.Pool{
		New: func() interface{} {
			vm, err := jsEngine.NewVm(vars)
			if err != nil && config.Logger != nil {
				config.Logger.Printf("js vm error: %s", err.Error())
			}
			return vm
		},
	}
	jsEngine.vmPool.Put(first)
	return jsEngine, nil
}

// NewVm new a js VM with vars set and the script run
func (g *GojaJsEngine) NewVm(vars map[string]any) (*goja.Runtime, error) {
	vm := goja.New()
	for k, v := range vars {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("set var %s error: %w", k, err)
		}
	}
	timer := g.startTimeout(vm)
	_, err := vm.RunProgram(g.jsScript)
	if !g.stopTimeout(vm, timer) && err == nil {
		err = errors.New("execution timeout")
	}
	return vm, err
}

// Execute calls the named JavaScript function and returns its exported result.
func (g *GojaJsEngine) Execute(functionName string, argumentList ...any) (out any, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("%s", caught)
		}
	}()

	vm := g.vmPool.Get().(*goja.Runtime)
	timer := g.startTimeout(vm)
	defer func() {
		// a vm whose timer fired may still receive the interrupt, it is dropped
		if g.stopTimeout(vm, timer) {
			g.vmPool.Put(vm)
		}
	}()

	f, ok := goja.AssertFunction(vm.Get(functionName))
	if !ok {
		return nil, errors.New(functionName + " is not a function")
	}

	var params []goja.Value
	if len(argumentList) > 0 {
		params = make([]goja.Value, len(argumentList))
		for i, v := range argumentList {
			params[i] = vm.ToValue(v)
		}
	}

	res, err := f(goja.Undefined(), params...)
	if err != nil {
		return nil, err
	}
	return res.Export(), nil
}

// startTimeout starts a timeout for JS script execution using time.AfterFunc
// Returns nil if timeout is not configured
func (g *GojaJsEngine) startTimeout(vm *goja.Runtime) *time.Timer {
	if g.config.ScriptMaxExecutionTime <= 0 {
		return nil
	}
	return time.AfterFunc(g.config.ScriptMaxExecutionTime, func() {
		vm.Interrupt("execution timeout")
	})
}

// stopTimeout stops the timer and reports whether the VM can be reused. When the timer
// already fired its Interrupt may land after any ClearInterrupt, so the VM is not reusable.
func (g *GojaJsEngine) stopTimeout(vm *goja.Runtime, timer *time.Timer) bool {
	if timer == nil {
		return true
	}
	if !timer.Stop() {
		return false
	}
	vm.ClearInterrupt()
	return true
}
