// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_VALIDATE
// Spec: spec.md section 7 (WORKFLOW_PARSE)

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sagaflow/pkg/saga"
)

// NewValidateCommand builds `sagaflow validate`: parses a workflow YAML
// file and reports WORKFLOW_PARSE errors without executing anything.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Validate a workflow definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// nolint:gosec // G304: reading a user-specified workflow file is expected behavior
			yamlContent, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading workflow file: %w", err)
			}

			steps, err := saga.Parse(yamlContent)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d step(s) validated\n", len(steps))
			return nil
		},
	}
}
