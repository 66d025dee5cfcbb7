// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_GLOBAL_FLAGS
// Spec: SPEC_FULL.md section 1 (Ambient Stack - configuration)

package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sagaflow/pkg/config"
)

// ResolvedFlags contains the resolved values for all global flags.
type ResolvedFlags struct {
	Config  string
	Verbose bool
}

// ResolveFlags resolves global flags with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Built-in defaults (lowest priority)
func ResolveFlags(cmd *cobra.Command) (*ResolvedFlags, error) {
	flags := &ResolvedFlags{}

	configFlag, _ := cmd.Flags().GetString("config")
	configEnv := os.Getenv("SAGAFLOW_CONFIG")
	configDefault := config.DefaultConfigPath()
	flags.Config = resolveString(configFlag, configEnv, configDefault)

	verboseFlag, _ := cmd.Flags().GetBool("verbose")
	verboseEnv := parseBoolEnv(os.Getenv("SAGAFLOW_VERBOSE"))
	flags.Verbose = resolveBool(verboseFlag, verboseEnv, false)

	return flags, nil
}

// resolveString resolves a string value with precedence: flag > env > default.
func resolveString(flag, env, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if env != "" {
		return env
	}
	return defaultValue
}

// resolveBool resolves a boolean value with precedence: flag > env > default.
func resolveBool(flag, env, defaultValue bool) bool {
	if flag {
		return true
	}
	if env {
		return true
	}
	return defaultValue
}

// parseBoolEnv parses a boolean from an environment variable. Returns false
// if the env var is not set or cannot be parsed.
func parseBoolEnv(value string) bool {
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}
