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

// Package main is the entry point of weavectl, a tool for checking advisor definitions
// and pointcut expressions.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rulego/weave"
	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/pointcut"
	"github.com/rulego/weave/utils/fs"
	"github.com/spf13/cobra"
)

const defaultLogLevel = "info"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for weavectl
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "weavectl",
		Short:         "Check advisor definitions and pointcut expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(newValidateCmd(), newMatchCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).Level(level).With().Timestamp().Logger(), nil
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Build the advisors of a definition file or folder",
		Long: `Parses YAML or JSON advisor definitions and builds every pointcut and advice.

Example:
  weavectl validate -f ./advisors
  weavectl validate -f advisors.yaml`,
		RunE: runValidate,
	}
	cmd.Flags().StringP("file", "f", "", "Definition file or folder")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return fmt.Errorf("failed to get file flag: %w", err)
	}
	advisors, err := loadAdvisors(&logger, path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("invalid advisor definition")
		return err
	}
	for _, advisor := range advisors {
		if a, ok := advisor.(*weave.Advisor); ok {
			logger.Debug().Str("id", a.Id).Msgf("advisor %T", a.Advice())
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d advisors ok\n", path, len(advisors))
	return nil
}

// loadAdvisors builds the advisors with logger as the config logger, zerolog Printf
// logs at debug level.
func loadAdvisors(logger types.Logger, path string) ([]types.Advisor, error) {
	config := weave.NewConfig(types.WithLogger(logger))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return weave.LoadAdvisors(config, path)
	}
	data := fs.LoadFile(path)
	if data == nil {
		return nil, fmt.Errorf("failed to read %s", path)
	}
	return weave.ParseAndBuild(config, data)
}

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Evaluate a pointcut expression against a method",
		Long: `Prints true when the expression statically matches the method.

Example:
  weavectl match -e "execution(* app..save*(..))" -t app.order.OrderService -m saveAll -p string,int`,
		RunE: runMatch,
	}
	cmd.Flags().StringP("expression", "e", "", "Pointcut expression")
	cmd.Flags().StringP("type", "t", "", "Qualified declaring type, e.g. app.order.OrderService")
	cmd.Flags().StringP("method", "m", "", "Method name")
	cmd.Flags().StringSliceP("params", "p", nil, "Parameter types")
	cmd.Flags().StringP("returns", "r", types.Void, "Return type")
	_ = cmd.MarkFlagRequired("expression")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	expression, _ := flags.GetString("expression")
	typeName, _ := flags.GetString("type")
	methodName, _ := flags.GetString("method")
	params, _ := flags.GetStringSlice("params")
	returns, _ := flags.GetString("returns")

	pc, err := pointcut.NewExpressionPointcut(expression)
	if err != nil {
		return err
	}
	t := parseType(typeName)
	m := types.NewMethodDescriptor(methodName, params...).WithReturns(returns)
	fmt.Fprintln(cmd.OutOrStdout(), types.Matches(pc, t, m))
	return nil
}

// parseType splits a qualified name at its last dot
func parseType(qualifiedName string) types.TypeDescriptor {
	if i := strings.LastIndex(qualifiedName, "."); i >= 0 {
		return types.TypeDescriptor{Package: qualifiedName[:i], Name: qualifiedName[i+1:]}
	}
	return types.TypeDescriptor{Name: qualifiedName}
}
