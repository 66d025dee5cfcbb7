// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sagaflow/pkg/saga"
)

// Feature: CORE_JOURNAL_POSTGRES
// Spec: spec.md section 4.5 (Execution Journal) and section 5 ("journal
// backend is shared; each execution interacts with its own rows")

// Postgres is a saga.Journal backed by a pgxpool.Pool. Each write method
// issues one write statement and returns once it is acknowledged by the
// server, giving the write-through guarantee the core relies on (spec.md
// section 4.5); FinalizeExecution then also reads back the step records.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. Callers are responsible for
// calling EnsureSchema once at startup.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the journal tables if they do not already exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS saga_executions (
			id              TEXT PRIMARY KEY,
			workflow_id     TEXT NOT NULL DEFAULT '',
			workflow_name   TEXT NOT NULL,
			workflow_version TEXT NOT NULL,
			correlation_id  TEXT NOT NULL,
			input           JSONB NOT NULL,
			status          TEXT NOT NULL,
			output_data     JSONB,
			error_message   TEXT,
			started_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS saga_step_records (
			execution_id    TEXT NOT NULL REFERENCES saga_executions(id),
			step_name       TEXT NOT NULL,
			step_type       TEXT NOT NULL,
			status          TEXT NOT NULL,
			request         JSONB,
			response        JSONB,
			error_message   TEXT,
			started_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ,
			PRIMARY KEY (execution_id, step_name)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateExecution(ctx context.Context, exec *saga.Execution) error {
	input, err := json.Marshal(exec.Input)
	if err != nil {
		return fmt.Errorf("encode execution input: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO saga_executions (id, workflow_id, workflow_name, workflow_version, correlation_id, input, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, exec.ID, exec.WorkflowID, exec.WorkflowName, exec.WorkflowVer, exec.CorrelationID, input, string(exec.Status), exec.StartedAt)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (p *Postgres) CreateStep(ctx context.Context, step *saga.StepRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO saga_step_records (execution_id, step_name, step_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, step.ExecutionID, step.StepName, string(step.StepType), string(step.Status), step.StartedAt)
	if err != nil {
		return fmt.Errorf("insert step record %q: %w", step.StepName, err)
	}
	return nil
}

func (p *Postgres) UpdateStep(ctx context.Context, step *saga.StepRecord) error {
	request, err := json.Marshal(step.Request)
	if err != nil {
		return fmt.Errorf("encode step request %q: %w", step.StepName, err)
	}
	response, err := json.Marshal(step.Response)
	if err != nil {
		return fmt.Errorf("encode step response %q: %w", step.StepName, err)
	}

	_, err = p.pool.Exec(ctx, `
		UPDATE saga_step_records
		SET status = $3, request = $4, response = $5, error_message = $6, completed_at = $7
		WHERE execution_id = $1 AND step_name = $2
	`, step.ExecutionID, step.StepName, string(step.Status), request, response, step.ErrorMessage, step.CompletedAt)
	if err != nil {
		return fmt.Errorf("update step record %q: %w", step.StepName, err)
	}
	return nil
}

// FinalizeExecution persists the terminal status and, mirroring
// Memory.FinalizeExecution, attaches the execution's accumulated step
// records to exec.Steps so a caller holding this pointer sees the same
// complete record a subsequent Execution() query would return.
func (p *Postgres) FinalizeExecution(ctx context.Context, exec *saga.Execution) error {
	output, err := json.Marshal(exec.OutputData)
	if err != nil {
		return fmt.Errorf("encode execution output: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		UPDATE saga_executions
		SET status = $2, output_data = $3, error_message = $4, completed_at = $5
		WHERE id = $1
	`, exec.ID, string(exec.Status), output, exec.ErrorMessage, exec.CompletedAt)
	if err != nil {
		return fmt.Errorf("finalize execution: %w", err)
	}

	steps, err := p.stepsFor(ctx, exec.ID)
	if err != nil {
		return fmt.Errorf("load step records for execution %q: %w", exec.ID, err)
	}
	exec.Steps = steps
	return nil
}

// Execution implements journal.Reader.
func (p *Postgres) Execution(ctx context.Context, id string) (*saga.Execution, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, workflow_id, workflow_name, workflow_version, correlation_id, input, status, output_data, error_message, started_at, completed_at
		FROM saga_executions WHERE id = $1
	`, id)

	exec, err := scanExecution(row)
	if err != nil {
		return nil, err
	}

	steps, err := p.stepsFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load step records for execution %q: %w", id, err)
	}
	exec.Steps = steps
	return exec, nil
}

// Executions implements journal.Reader: lists executions, most recently
// started first, optionally filtered to one workflow configuration.
func (p *Postgres) Executions(ctx context.Context, workflowID string) ([]*saga.Execution, error) {
	var rows pgx.Rows
	var err error
	if workflowID == "" {
		rows, err = p.pool.Query(ctx, `
			SELECT id, workflow_id, workflow_name, workflow_version, correlation_id, input, status, output_data, error_message, started_at, completed_at
			FROM saga_executions ORDER BY started_at DESC
		`)
	} else {
		rows, err = p.pool.Query(ctx, `
			SELECT id, workflow_id, workflow_name, workflow_version, correlation_id, input, status, output_data, error_message, started_at, completed_at
			FROM saga_executions WHERE workflow_id = $1 ORDER BY started_at DESC
		`, workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*saga.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, exec := range out {
		steps, err := p.stepsFor(ctx, exec.ID)
		if err != nil {
			return nil, fmt.Errorf("load step records for execution %q: %w", exec.ID, err)
		}
		exec.Steps = steps
	}
	return out, nil
}

func (p *Postgres) stepsFor(ctx context.Context, executionID string) ([]*saga.StepRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT execution_id, step_name, step_type, status, request, response, error_message, started_at, completed_at
		FROM saga_step_records WHERE execution_id = $1 ORDER BY started_at
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []*saga.StepRecord{}
	for rows.Next() {
		var step saga.StepRecord
		var stepType, status string
		var request, response []byte
		err := rows.Scan(&step.ExecutionID, &step.StepName, &stepType, &status, &request, &response, &step.ErrorMessage, &step.StartedAt, &step.CompletedAt)
		if err != nil {
			return nil, err
		}
		step.StepType = saga.StepType(stepType)
		step.Status = saga.StepStatus(status)
		if len(request) > 0 {
			if err := json.Unmarshal(request, &step.Request); err != nil {
				return nil, fmt.Errorf("decode step request %q: %w", step.StepName, err)
			}
		}
		if len(response) > 0 {
			if err := json.Unmarshal(response, &step.Response); err != nil {
				return nil, fmt.Errorf("decode step response %q: %w", step.StepName, err)
			}
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

type executionScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row executionScanner) (*saga.Execution, error) {
	var exec saga.Execution
	var status string
	var input, output []byte
	err := row.Scan(&exec.ID, &exec.WorkflowID, &exec.WorkflowName, &exec.WorkflowVer, &exec.CorrelationID, &input, &status, &output, &exec.ErrorMessage, &exec.StartedAt, &exec.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	exec.Status = saga.ExecutionStatus(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &exec.Input); err != nil {
			return nil, fmt.Errorf("decode execution input: %w", err)
		}
	}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &exec.OutputData); err != nil {
			return nil, fmt.Errorf("decode execution output: %w", err)
		}
	}
	return &exec, nil
}
