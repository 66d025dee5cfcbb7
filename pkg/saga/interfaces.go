// SPDX-License-Identifier: AGPL-3.0-or-later

package saga

import "context"

// Feature: CORE_SAGA_COLLABORATORS
// Spec: spec.md section 6 (External Interfaces)
//
// These interfaces anchor the orchestrator core to its external
// collaborators. Concrete implementations (Postgres-backed store and
// journal, Kafka bus publisher, net/http client) live under internal/ and
// are wired together by internal/cli and internal/api; the core package
// (internal/orchestrator) only ever depends on these interfaces, never on
// the concrete adapters.

// WorkflowStore loads workflow definitions and gates whether a definition is
// allowed to execute. The core assumes the caller (internal/api) has already
// checked Enabled before calling Orchestrator.Execute.
type WorkflowStore interface {
	// Load returns the workflow definition for id.
	Load(ctx context.Context, id string) (*WorkflowDefinition, error)

	// Enabled reports whether the definition is in an executable state.
	Enabled(ctx context.Context, id string) (bool, error)
}

// HTTPResponse is the normalized outcome of an HTTP adapter call.
type HTTPResponse struct {
	Status int
	Body   any
}

// HTTPClient issues a single HTTP request and returns its normalized
// outcome. Implementations own their own timeout (spec.md section 4.2: a
// 30-second total timeout per request).
type HTTPClient interface {
	Request(ctx context.Context, method, url string, headers map[string]string, body any) (HTTPResponse, error)
}

// BusAck is the normalized outcome of a bus adapter publish.
type BusAck struct {
	Partition int32
	Offset    int64
}

// BusPublisher publishes a message and synchronously awaits broker
// acknowledgement (spec.md section 4.3: a 10-second ceiling).
type BusPublisher interface {
	Publish(ctx context.Context, topic, key string, headers map[string]string, value any) (BusAck, error)
}

// Journal is the append-only durable record of executions and step records
// (spec.md section 4.5). Every method is expected to flush before
// returning, bounding observer lag to at most one in-flight step.
type Journal interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	CreateStep(ctx context.Context, step *StepRecord) error
	UpdateStep(ctx context.Context, step *StepRecord) error
	FinalizeExecution(ctx context.Context, exec *Execution) error
}

// Orchestrator is the interface the core exposes: drive a workflow to
// completion or compensation and return the terminal Execution. No
// streaming interface is offered - callers receive the final record only
// (spec.md section 6).
type Orchestrator interface {
	Execute(ctx context.Context, workflow *WorkflowDefinition, input map[string]any) (*Execution, error)
}
