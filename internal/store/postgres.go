// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sagaflow/pkg/saga"
)

// Feature: STORE_WORKFLOW_DEFINITIONS_POSTGRES
// Spec: SPEC_FULL.md section 3 (Supplemented Features)

// Postgres is a saga.WorkflowStore backed by a pgxpool.Pool, grounded on the
// same name-uniqueness and YAML-validity checks as Memory.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the workflow_configurations table if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_configurations (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			version     TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			yaml_content TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'DRAFT',
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure workflow store schema: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) (*saga.WorkflowDefinition, error) {
	rec, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	workflow, err := saga.Define(rec.Name, rec.Version, rec.YAML)
	if err != nil {
		return nil, err
	}
	workflow.ConfigID = rec.ID
	return workflow, nil
}

func (p *Postgres) Enabled(ctx context.Context, id string) (bool, error) {
	rec, err := p.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Status == StatusActive, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id::text, name, version, description, yaml_content, status, created_at, updated_at
		FROM workflow_configurations WHERE id::text = $1
	`, id)
	return scanRecord(row)
}

func (p *Postgres) List(ctx context.Context) ([]*Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, name, version, description, yaml_content, status, created_at, updated_at
		FROM workflow_configurations ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list workflow configurations: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Create(ctx context.Context, name, version, description string, yamlContent []byte) (*Record, error) {
	if _, err := saga.Parse(yamlContent); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO workflow_configurations (name, version, description, yaml_content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id::text, name, version, description, yaml_content, status, created_at, updated_at
	`, name, version, description, string(yamlContent), string(StatusDraft), now)

	rec, err := scanRecord(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrNameConflict
	}
	return rec, err
}

// Update revalidates YAML if provided and reapplies the name-uniqueness
// check before replacing the stored record, mirroring Memory.Update.
func (p *Postgres) Update(ctx context.Context, id string, name, version, description *string, yamlContent []byte) (*Record, error) {
	if yamlContent != nil {
		if _, err := saga.Parse(yamlContent); err != nil {
			return nil, err
		}
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE workflow_configurations SET
			name = COALESCE($2, name),
			version = COALESCE($3, version),
			description = COALESCE($4, description),
			yaml_content = COALESCE($5, yaml_content),
			updated_at = $6
		WHERE id::text = $1
		RETURNING id::text, name, version, description, yaml_content, status, created_at, updated_at
	`, id, name, version, description, nullableString(yamlContent), time.Now().UTC())

	rec, err := scanRecord(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrNameConflict
	}
	return rec, err
}

func nullableString(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

func (p *Postgres) SetStatus(ctx context.Context, id string, status Status) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE workflow_configurations SET status = $2, updated_at = $3
		WHERE id::text = $1
		RETURNING id::text, name, version, description, yaml_content, status, created_at, updated_at
	`, id, string(status), time.Now().UTC())
	return scanRecord(row)
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM workflow_configurations WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow configuration %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var yamlContent string
	var status string
	err := row.Scan(&rec.ID, &rec.Name, &rec.Version, &rec.Description, &yamlContent, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan workflow configuration: %w", err)
	}
	rec.YAML = []byte(yamlContent)
	rec.Status = Status(status)
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "unique constraint") || strings.Contains(err.Error(), "duplicate key"))
}

var _ Store = (*Memory)(nil)
var _ Store = (*Postgres)(nil)
