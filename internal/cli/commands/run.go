// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_RUN
// Spec: spec.md section 6 (Interface the core exposes - execute)

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	busadapter "sagaflow/internal/adapters/bus"
	httpadapter "sagaflow/internal/adapters/http"
	"sagaflow/internal/orchestrator"
	"sagaflow/pkg/config"
	"sagaflow/pkg/logging"
	"sagaflow/pkg/saga"
)

// NewRunCommand builds `sagaflow run`: parses a workflow YAML file, drives
// it to completion against the configured adapters, and prints the terminal
// Execution as JSON.
func NewRunCommand() *cobra.Command {
	var name, version, inputPath string

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Run a workflow definition to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := ResolveFlags(cmd)
			if err != nil {
				return err
			}

			// nolint:gosec // G304: reading a user-specified workflow file is expected behavior
			yamlContent, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading workflow file: %w", err)
			}

			workflow, err := saga.Define(name, version, yamlContent)
			if err != nil {
				return err
			}

			input := map[string]any{}
			if inputPath != "" {
				// nolint:gosec // G304: reading a user-specified input file is expected behavior
				inputBytes, err := os.ReadFile(inputPath)
				if err != nil {
					return fmt.Errorf("reading input file: %w", err)
				}
				if err := json.Unmarshal(inputBytes, &input); err != nil {
					return fmt.Errorf("parsing input file: %w", err)
				}
			}

			logger := logging.NewLogger(resolved.Verbose)

			cfg, err := config.Load(resolved.Config)
			if err != nil && err != config.ErrConfigNotFound {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}

			httpClient := httpadapter.New()

			var busPublisher saga.BusPublisher
			if len(cfg.Bus.Brokers) > 0 {
				publisher, err := busadapter.New(cfg.Bus.Brokers)
				if err != nil {
					return fmt.Errorf("connect to bus: %w", err)
				}
				defer publisher.Close()
				busPublisher = publisher
			}

			backend, err := newBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			eng := orchestrator.New(httpClient, busPublisher, backend.Journal, logger)

			exec, err := eng.Execute(cmd.Context(), workflow, input)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(exec, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding execution: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

			if exec.Status != saga.ExecutionCompleted {
				return fmt.Errorf("execution ended in status %s: %s", exec.Status, exec.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "workflow", "workflow name to attach to the definition")
	cmd.Flags().StringVar(&version, "version", "1", "workflow version to attach to the definition")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON file with the workflow input")

	return cmd
}
