// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the SagaFlow root Cobra command and global CLI options.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sagaflow/internal/cli/commands"
)

// NewRootCommand constructs the SagaFlow root Cobra command, wiring the
// `run`, `validate`, `serve`, and `status` subcommands.
//
// Feature: ARCH_OVERVIEW
// Spec: spec.md section 2 (System Overview)
func NewRootCommand() *cobra.Command {
	version := os.Getenv("SAGAFLOW_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "sagaflow",
		Short:         "SagaFlow – a data-driven saga orchestrator",
		Long:          "SagaFlow interprets declarative workflow definitions and drives sequences of HTTP calls and message-bus publishes with reverse-order compensation on failure.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}

	// Global flags - registered in lexicographic order for deterministic help output
	cmd.PersistentFlags().StringP("config", "c", "", "path to sagaflow.yml")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Version command – simple and explicit.
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of SagaFlow",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "SagaFlow version %s\n", version)
		},
	})

	// Subcommands - keep registrations in lexicographic order by .Use
	// to ensure deterministic help output.
	cmd.AddCommand(commands.NewRunCommand())
	cmd.AddCommand(commands.NewServeCommand())
	cmd.AddCommand(commands.NewStatusCommand())
	cmd.AddCommand(commands.NewValidateCommand())

	return cmd
}
