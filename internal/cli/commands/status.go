// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_STATUS
// Spec: SPEC_FULL.md section 3 (Supplemented Features - execution status query)

package commands

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewStatusCommand builds `sagaflow status`: queries a running `serve`
// instance's execution-status endpoint and prints the response body.
func NewStatusCommand() *cobra.Command {
	var apiAddr string

	cmd := &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Query an execution's status from a running API server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/executions/%s", apiAddr, args[0])

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("query execution status: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			if resp.StatusCode >= 400 {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiAddr, "api", "http://localhost:8080", "base URL of a running sagaflow serve instance")

	return cmd
}
