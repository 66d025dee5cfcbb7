// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal implements saga.Journal: an append-only durable record of
// executions and their step records (spec.md section 4.5).
package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sagaflow/pkg/saga"
)

// Feature: CORE_JOURNAL
// Spec: spec.md section 4.5 (Execution Journal)

// ErrNotFound is returned when an id does not name a stored execution.
var ErrNotFound = fmt.Errorf("execution not found")

// Reader is the read-side query surface internal/api drives over HTTP,
// layered on top of the write-through saga.Journal contract
// (SPEC_FULL.md section 3 - execution history query surface).
type Reader interface {
	// Execution returns a single execution's current record, including its
	// step records once FinalizeExecution has run.
	Execution(ctx context.Context, id string) (*saga.Execution, error)

	// Executions lists stored executions, most recently started first. When
	// workflowID is non-empty, only executions whose WorkflowID matches are
	// returned.
	Executions(ctx context.Context, workflowID string) ([]*saga.Execution, error)
}

// Journal is satisfied by both Memory and Postgres: the write-through
// saga.Journal contract plus the read-side queries internal/api needs.
type Journal interface {
	saga.Journal
	Reader
}

// Memory is an in-process saga.Journal, used by tests and by the single-node
// CLI `run` command where no Postgres backend is configured.
type Memory struct {
	mu         sync.Mutex
	executions map[string]*saga.Execution
	steps      map[string][]*saga.StepRecord
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{
		executions: make(map[string]*saga.Execution),
		steps:      make(map[string][]*saga.StepRecord),
	}
}

func (m *Memory) CreateExecution(_ context.Context, exec *saga.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[exec.ID] = exec
	return nil
}

func (m *Memory) CreateStep(_ context.Context, step *saga.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[step.ExecutionID] = append(m.steps[step.ExecutionID], step)
	return nil
}

func (m *Memory) UpdateStep(_ context.Context, step *saga.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.steps[step.ExecutionID]
	for i, existing := range records {
		if existing.StepName == step.StepName {
			records[i] = step
			return nil
		}
	}
	return fmt.Errorf("update step: no record for %q on execution %q", step.StepName, step.ExecutionID)
}

func (m *Memory) FinalizeExecution(_ context.Context, exec *saga.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec.Steps = append([]*saga.StepRecord{}, m.steps[exec.ID]...)
	m.executions[exec.ID] = exec
	return nil
}

// Execution implements Reader, for internal/api's execution-status and
// step-detail endpoints.
func (m *Memory) Execution(_ context.Context, id string) (*saga.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return exec, nil
}

// Executions implements Reader, for internal/api's execution-history
// listing endpoint.
func (m *Memory) Executions(_ context.Context, workflowID string) ([]*saga.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*saga.Execution, 0, len(m.executions))
	for _, exec := range m.executions {
		if workflowID != "" && exec.WorkflowID != workflowID {
			continue
		}
		out = append(out, exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Steps returns a snapshot of the step records recorded so far for an
// execution, in dispatch order.
func (m *Memory) Steps(executionID string) []*saga.StepRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*saga.StepRecord, len(m.steps[executionID]))
	copy(out, m.steps[executionID])
	return out
}

var _ Journal = (*Memory)(nil)
