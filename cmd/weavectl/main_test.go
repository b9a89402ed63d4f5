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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/builtin/advice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "glob in package and method",
			args:     []string{"-e", "execution(* app..save*(..))", "-t", "app.order.OrderService", "-m", "saveAll", "-p", "string,int"},
			expected: "true\n",
		},
		{
			name:     "negated method",
			args:     []string{"-e", "execution(* app..*(..)) && !execution(* app..noLog(..))", "-t", "app.web.Controller", "-m", "noLog"},
			expected: "false\n",
		},
		{
			name:     "exact params",
			args:     []string{"-e", "execution(* app..save(string, int))", "-t", "app.order.OrderService", "-m", "save", "-p", "string"},
			expected: "false\n",
		},
		{
			name:     "within without package",
			args:     []string{"-e", "within(Order*)", "-t", "OrderService", "-m", "x"},
			expected: "true\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(append([]string{"match"}, tt.args...)...)
			require.Nil(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	_, err := execute("match", "-e", "execution(* app..*(..)", "-t", "a.B", "-m", "x")
	assert.ErrorIs(t, err, types.ErrInvalidExpression)
	_, err = execute("match", "-e", "within(a..*)")
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "advisors.yaml")
	require.Nil(t, os.WriteFile(file, []byte(`
advisors:
  - id: log
    pointcut: { type: expression, expression: "execution(* app..*(..)) && !execution(* app..noLog(..))" }
    advice: { type: trace }
  - id: limit
    pointcut: { type: name, patterns: ["order*", "save"] }
    advice: { type: limiter, configuration: { max: 10 } }
`), 0644))

	out, err := execute("validate", "-f", file)
	require.Nil(t, err)
	assert.Equal(t, file+": 2 advisors ok\n", out)

	out, err = execute("validate", "-f", dir, "-l", "debug")
	require.Nil(t, err)
	assert.Equal(t, dir+": 2 advisors ok\n", out)

	bad := filepath.Join(dir, "bad.json")
	require.Nil(t, os.WriteFile(bad, []byte(`{"advisors":[{"id":"x","advice":{"type":"nope"}}]}`), 0644))
	_, err = execute("validate", "-f", bad)
	assert.ErrorIs(t, err, types.ErrUnknownAdviceType)

	_, err = execute("validate", "-f", filepath.Join(dir, "missing.yaml"))
	assert.NotNil(t, err)

	_, err = execute("validate", "-f", file, "-l", "loud")
	assert.NotNil(t, err)
}

func TestParseType(t *testing.T) {
	assert.Equal(t, types.TypeDescriptor{Package: "app.order", Name: "OrderService"}, parseType("app.order.OrderService"))
	assert.Equal(t, types.TypeDescriptor{Name: "OrderService"}, parseType("OrderService"))
}

func TestLoadAdvisorsLogsThroughZerolog(t *testing.T) {
	file := filepath.Join(t.TempDir(), "advisors.yaml")
	require.Nil(t, os.WriteFile(file, []byte(`
advisors:
  - id: log
    pointcut: { type: name, patterns: ["save"] }
    advice: { type: trace }
`), 0644))

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	advisors, err := loadAdvisors(&logger, file)
	require.Nil(t, err)
	require.Equal(t, 1, len(advisors))

	tracer := advisors[0].Advice().(*advice.TraceAdvice).Tracer()
	_, status := tracer.Begin(context.Background(), "OrderRepository.save()")
	tracer.End(status)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), "OrderRepository.save()")

	//nothing below the configured level
	buf.Reset()
	logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	advisors, err = loadAdvisors(&logger, file)
	require.Nil(t, err)
	tracer = advisors[0].Advice().(*advice.TraceAdvice).Tracer()
	_, status = tracer.Begin(context.Background(), "OrderRepository.save()")
	tracer.End(status)
	assert.Equal(t, "", buf.String())
}
