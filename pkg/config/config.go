// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package config defines the SagaFlow service configuration schema and
// helpers for loading and validating config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Feature: CORE_CONFIG
// Spec: SPEC_FULL.md section 1 (Ambient Stack - configuration)

// ErrConfigNotFound is returned when the config file does not exist at the
// given path.
var ErrConfigNotFound = errors.New("sagaflow config not found")

// Config is the top-level service configuration: where the journal and
// workflow store persist, how the bus adapter reaches its brokers, and
// where the REST API listens.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Bus      BusConfig      `yaml:"bus"`
	HTTP     HTTPConfig     `yaml:"http"`
	API      APIConfig      `yaml:"api"`
}

// PostgresConfig addresses the journal and workflow-store backend.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// BusConfig addresses the message-bus adapter.
type BusConfig struct {
	Brokers []string `yaml:"brokers"`
}

// HTTPConfig carries defaults for the HTTP adapter. DefaultMethod is loaded
// and defaulted to POST, but neither the parser nor the orchestrator reads
// it: a step without a method always uses POST.
type HTTPConfig struct {
	DefaultMethod string `yaml:"default_method"`
}

// APIConfig addresses the REST API's own listener.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfigPath returns the default config path for the current working
// directory.
func DefaultConfigPath() string {
	return "sagaflow.yml"
}

// Exists reports whether a config file exists at the given path. It returns
// (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads and validates the config from the given path. It returns
// ErrConfigNotFound if the file does not exist, and applies defaults for
// any field a loaded document omits.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}
	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from user-specified path is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with the service's built-in defaults,
// used both as the base a loaded file overlays and by callers (like `run`)
// that operate without a config file at all.
func Default() *Config {
	return &Config{
		Postgres: PostgresConfig{
			MaxConns:       10,
			ConnectTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			DefaultMethod: "POST",
		},
		API: APIConfig{
			ListenAddr: ":8080",
		},
	}
}

// validate only rejects configuration no running command can act on -
// postgres.dsn and bus.brokers are both optional (run/serve fall back to
// the in-memory journal/store when no DSN is set, and skip the bus adapter
// entirely when no brokers are listed), so an operator pointing at a config
// file only to override e.g. api.listen_addr is never forced to fabricate
// unused backing services.
func validate(cfg *Config) error {
	if cfg.API.ListenAddr == "" {
		return errors.New("config: api.listen_addr must be non-empty")
	}
	return nil
}
