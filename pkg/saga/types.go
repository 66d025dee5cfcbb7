// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package saga defines the wire contract for workflow definitions and
// executions, and the interfaces the orchestrator core consumes from its
// external collaborators (a workflow store, an HTTP client, a bus publisher,
// and a journal).
package saga

import "time"

// Feature: CORE_SAGA_TYPES
// Spec: spec.md section 3 (Data Model)

// StepType names the transport a step dispatches over.
type StepType string

const (
	// StepTypeAPI dispatches an HTTP request.
	StepTypeAPI StepType = "api"
	// StepTypeBus publishes a message to the bus.
	StepTypeBus StepType = "bus"
)

// WorkflowDefinition is an immutable document describing an ordered sequence
// of steps. Definitions are loaded from YAML (see Parse) and validated
// eagerly; the orchestrator only ever sees well-formed definitions.
type WorkflowDefinition struct {
	Name    string          `json:"name" yaml:"name"`
	Version string          `json:"version" yaml:"version"`
	Steps   []StepDefinition `json:"steps" yaml:"-"`

	// ConfigID is the id of the stored configuration this definition was
	// loaded from (WorkflowStore.Load populates it). Empty when a
	// definition is built directly from a file, as the `run` CLI does.
	ConfigID string `json:"-" yaml:"-"`
}

// StepDefinition is a single step in a workflow.
type StepDefinition struct {
	Name     string       `json:"name"`
	Type     StepType     `json:"type"`
	Endpoint Endpoint     `json:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     any          `json:"body,omitempty"`
	Success  *SuccessSpec `json:"success,omitempty"`
	Rollback *Compensation `json:"rollback,omitempty"`
}

// Endpoint carries the transport-specific addressing for a step.
// For an "api" step: URL + Method are populated. For a "bus" step: Topic +
// PartitionKey are populated. Headers live alongside on StepDefinition /
// Compensation rather than here, matching the YAML shape in spec.md section 6.
type Endpoint struct {
	// api
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`

	// bus
	Topic         string `json:"topic,omitempty"`
	PartitionKey  string `json:"partition_key,omitempty"`
}

// SuccessSpec is an "api" step's success predicate plus values to hoist into
// the context on success.
type SuccessSpec struct {
	Condition string            `json:"condition,omitempty"`
	Extract   map[string]string `json:"extract,omitempty"`
}

// Compensation is a step's rollback clause. It has the same shape as a step
// definition but no rollback of its own.
type Compensation struct {
	Type     StepType          `json:"type"`
	Endpoint Endpoint          `json:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     any               `json:"body,omitempty"`
}

// ExecutionStatus is the terminal-state machine of an Execution (spec.md
// section 4.4).
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "PENDING"
	ExecutionRunning    ExecutionStatus = "RUNNING"
	ExecutionCompleted  ExecutionStatus = "COMPLETED"
	ExecutionFailed     ExecutionStatus = "FAILED"
	ExecutionRolledBack ExecutionStatus = "ROLLED_BACK"
)

// IsTerminal reports whether the status is one a caller receives back from
// Execute: COMPLETED, FAILED, or ROLLED_BACK. PENDING and RUNNING are
// internal-only.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionRolledBack:
		return true
	default:
		return false
	}
}

// StepStatus is the state machine of a single Step Record (spec.md section 4.4).
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepRunning    StepStatus = "RUNNING"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
	StepRolledBack StepStatus = "ROLLED_BACK"
	StepSkipped    StepStatus = "SKIPPED"
)

// Execution is the runtime record of one workflow run.
type Execution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id,omitempty"`
	WorkflowName  string          `json:"workflow_name"`
	WorkflowVer   string          `json:"workflow_version"`
	CorrelationID string          `json:"correlation_id"`
	Input         map[string]any  `json:"input"`
	Status        ExecutionStatus `json:"status"`
	OutputData    map[string]any  `json:"output_data,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at,omitempty"`
	Steps         []*StepRecord   `json:"steps"`
}

// StepRecord is attached to an Execution and tracks one step's run.
type StepRecord struct {
	ExecutionID  string     `json:"execution_id"`
	StepName     string     `json:"step_name"`
	StepType     StepType   `json:"step_type"`
	Status       StepStatus `json:"status"`
	Request      any        `json:"request,omitempty"`
	Response     any        `json:"response,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  time.Time  `json:"completed_at,omitempty"`
}
