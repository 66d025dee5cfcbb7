// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_BACKEND_SELECTION
// Spec: SPEC_FULL.md section 4 (Module Map - journal and workflow store)

package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sagaflow/internal/journal"
	"sagaflow/internal/store"
	"sagaflow/pkg/config"
)

// backends bundles the journal and workflow-store surfaces a command needs,
// plus an optional close func for a Postgres pool (nil for the in-memory
// path, where there is nothing to release).
type backends struct {
	Journal journal.Journal
	Store   store.Store
	Close   func()
}

// newBackends picks the in-memory or Postgres-backed journal/store
// depending on whether cfg.Postgres.DSN is set, mirroring the bus adapter's
// own "only dial out if configured" pattern. Postgres schemas are created
// on first use via EnsureSchema.
func newBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Postgres.DSN == "" {
		return &backends{
			Journal: journal.NewMemory(),
			Store:   store.NewMemory(),
			Close:   func() {},
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.Postgres.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	jrn := journal.NewPostgres(pool)
	if err := jrn.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}

	st := store.NewPostgres(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure workflow store schema: %w", err)
	}

	return &backends{Journal: jrn, Store: st, Close: pool.Close}, nil
}
