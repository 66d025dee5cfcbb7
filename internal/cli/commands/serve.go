// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_SERVE
// Spec: SPEC_FULL.md section 3 (Supplemented Features - REST surface)

package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	busadapter "sagaflow/internal/adapters/bus"
	httpadapter "sagaflow/internal/adapters/http"
	"sagaflow/internal/api"
	"sagaflow/internal/orchestrator"
	"sagaflow/pkg/config"
	"sagaflow/pkg/logging"
	"sagaflow/pkg/saga"
)

// NewServeCommand builds `sagaflow serve`: boots the REST API surface over
// the workflow store and journal. When cfg.Postgres.DSN is set the Postgres-
// backed implementations are used (shared across API processes); otherwise
// the in-memory single-node implementations are used.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow-configuration and execution REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := ResolveFlags(cmd)
			if err != nil {
				return err
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

			srv := api.New(backend.Store, eng, backend.Journal, logger)

			logger.Info("listening", logging.NewField("addr", cfg.API.ListenAddr))
			return http.ListenAndServe(cfg.API.ListenAddr, srv.Router())
		},
	}

	return cmd
}
