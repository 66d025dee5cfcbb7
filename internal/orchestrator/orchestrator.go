// SPDX-License-Identifier: AGPL-3.0-or-later

/*
SagaFlow - a data-driven saga orchestrator that drives sequences of HTTP
calls and message-bus publishes with reverse-order compensation on failure.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

// Package orchestrator implements the engine: the step loop, failure
// detection, the reverse-order compensation driver, and terminal-state
// finalization (spec.md section 4.4).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sagaflow/internal/sagactx"
	"sagaflow/internal/sagaexpr"
	"sagaflow/pkg/logging"
	"sagaflow/pkg/saga"
)

// Feature: CORE_ORCHESTRATOR
// Spec: spec.md section 4.4 (Orchestrator)

// Engine drives workflow definitions to a terminal Execution. It implements
// saga.Orchestrator.
type Engine struct {
	http    saga.HTTPClient
	bus     saga.BusPublisher
	journal saga.Journal
	logger  logging.Logger
}

// New wires an Engine to its adapters and journal.
func New(httpClient saga.HTTPClient, busPublisher saga.BusPublisher, journal saga.Journal, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger(false)
	}
	return &Engine{http: httpClient, bus: busPublisher, journal: journal, logger: logger}
}

// Execute runs workflow against input to a terminal Execution (spec.md
// section 4.4, steps 2-5). workflow is assumed already parsed and
// validated; a WORKFLOW_PARSE failure is the caller's responsibility to
// surface before calling Execute, since parsing happens once up front
// against the stored definition, not per execution.
func (e *Engine) Execute(ctx context.Context, workflow *saga.WorkflowDefinition, input map[string]any) (*saga.Execution, error) {
	correlationID := uuid.NewString()
	logger := e.logger.WithFields(
		logging.CorrelationField(correlationID),
		logging.NewField(logging.FieldWorkflow, workflow.Name),
	)

	exec := &saga.Execution{
		ID:            uuid.NewString(),
		WorkflowID:    workflow.ConfigID,
		WorkflowName:  workflow.Name,
		WorkflowVer:   workflow.Version,
		CorrelationID: correlationID,
		Input:         input,
		Status:        saga.ExecutionRunning,
		StartedAt:     time.Now().UTC(),
	}

	sctx := sagactx.New()
	sctx.Seed(correlationID, input)

	if err := e.journal.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution record: %w", err)
	}

	type completedStep struct {
		def *saga.StepDefinition
		rec *saga.StepRecord
	}
	completed := make([]completedStep, 0, len(workflow.Steps))

	var failure *saga.StepError

	for i := range workflow.Steps {
		def := &workflow.Steps[i]
		rec := &saga.StepRecord{
			ExecutionID: exec.ID,
			StepName:    def.Name,
			StepType:    def.Type,
			Status:      saga.StepRunning,
			StartedAt:   time.Now().UTC(),
		}
		if err := e.journal.CreateStep(ctx, rec); err != nil {
			return nil, fmt.Errorf("create step record %q: %w", def.Name, err)
		}

		stepErr := e.dispatch(ctx, def, rec, sctx)
		rec.CompletedAt = time.Now().UTC()

		if stepErr != nil {
			rec.Status = saga.StepFailed
			rec.ErrorMessage = stepErr.Error()
			if err := e.journal.UpdateStep(ctx, rec); err != nil {
				logger.Error("failed to persist failed step record", logging.StepField(def.Name), logging.ErrField(err))
			}
			failure = stepErr
			break
		}

		rec.Status = saga.StepCompleted
		if err := e.journal.UpdateStep(ctx, rec); err != nil {
			logger.Error("failed to persist completed step record", logging.StepField(def.Name), logging.ErrField(err))
		}
		completed = append(completed, completedStep{def: def, rec: rec})
	}

	if failure == nil {
		exec.Status = saga.ExecutionCompleted
		exec.OutputData = sctx.Snapshot()
		exec.CompletedAt = time.Now().UTC()
		if err := e.journal.FinalizeExecution(ctx, exec); err != nil {
			return nil, fmt.Errorf("finalize execution: %w", err)
		}
		return exec, nil
	}

	exec.Status = saga.ExecutionFailed
	exec.ErrorMessage = fmt.Sprintf("Step '%s' failed: %s", failure.StepName, failure.Reason)

	for i := len(completed) - 1; i >= 0; i-- {
		cs := completed[i]
		e.compensate(ctx, cs.def, cs.rec, sctx, logger)
		if err := e.journal.UpdateStep(ctx, cs.rec); err != nil {
			logger.Error("failed to persist rolled-back step record", logging.StepField(cs.def.Name), logging.ErrField(err))
		}
	}

	exec.Status = saga.ExecutionRolledBack
	exec.CompletedAt = time.Now().UTC()
	if err := e.journal.FinalizeExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("finalize execution: %w", err)
	}
	return exec, nil
}

// dispatch selects the adapter by step type, invokes it, and applies the
// success predicate for api steps (spec.md sections 4.2, 4.3, 4.4 step 3).
func (e *Engine) dispatch(ctx context.Context, def *saga.StepDefinition, rec *saga.StepRecord, sctx *sagactx.Context) *saga.StepError {
	switch def.Type {
	case saga.StepTypeAPI:
		return e.dispatchAPI(ctx, def, rec, sctx)
	case saga.StepTypeBus:
		return e.dispatchBus(ctx, def, rec, sctx)
	default:
		return &saga.StepError{
			Kind:     saga.ErrUnknownStepType,
			StepName: def.Name,
			Reason:   fmt.Sprintf("Unknown step type: %s", def.Type),
		}
	}
}

func (e *Engine) dispatchAPI(ctx context.Context, def *saga.StepDefinition, rec *saga.StepRecord, sctx *sagactx.Context) *saga.StepError {
	url := sagaexpr.ToString(sagaexpr.Interpolate(def.Endpoint.URL, sctx))
	method := def.Endpoint.Method
	if method == "" {
		method = "POST"
	}
	headers := sagaexpr.InterpolateHeaders(def.Headers, sctx)
	body := sagaexpr.Interpolate(def.Body, sctx)

	rec.Request = map[string]any{"url": url, "method": method, "headers": headers, "body": body}

	resp, err := e.http.Request(ctx, method, url, headers, body)
	if err != nil {
		return &saga.StepError{Kind: saga.ErrStepTransport, StepName: def.Name, Reason: err.Error()}
	}

	responseBody := responseBodyOrEmpty(resp.Body)
	responseValue := map[string]any{"status": resp.Status, "body": responseBody}
	sctx.Set(def.Name, map[string]any{"response": responseValue})
	rec.Response = responseValue

	// The success condition and extract paths reference the bare "response"
	// key - the current step's own result, not prefixed by the step's name
	// (spec.md section 4.2 and scenario 2's `success.extract: {id:
	// response.body.id}`). evalCtx overlays that binding without disturbing
	// the persistent, step-name-keyed context.
	evalCtx := sctx.Overlay("response", responseValue)

	condition := sagaexpr.DefaultSuccessCondition
	var extract map[string]string
	if def.Success != nil {
		if def.Success.Condition != "" {
			condition = def.Success.Condition
		}
		extract = def.Success.Extract
	}
	normalized := sagaexpr.NormalizeSuccessCondition(condition)

	if !sagaexpr.Evaluate(normalized, evalCtx) {
		return &saga.StepError{
			Kind:     saga.ErrStepPredicate,
			StepName: def.Name,
			Reason:   fmt.Sprintf("Condition not met: %s", condition),
		}
	}

	for name, path := range extract {
		normalizedPath := path
		if len(normalizedPath) < 2 || normalizedPath[0:2] != "${" {
			normalizedPath = "${" + normalizedPath + "}"
		}
		value := sagaexpr.Interpolate(normalizedPath, evalCtx)
		sctx.Extract(def.Name, name, value)
	}

	return nil
}

func (e *Engine) dispatchBus(ctx context.Context, def *saga.StepDefinition, rec *saga.StepRecord, sctx *sagactx.Context) *saga.StepError {
	topic := sagaexpr.ToString(sagaexpr.Interpolate(def.Endpoint.Topic, sctx))
	key := sagaexpr.ToString(sagaexpr.Interpolate(def.Endpoint.PartitionKey, sctx))
	headers := sagaexpr.InterpolateHeaders(def.Headers, sctx)
	value := sagaexpr.Interpolate(def.Body, sctx)

	rec.Request = map[string]any{"topic": topic, "key": key, "headers": headers, "value": value}

	ack, err := e.bus.Publish(ctx, topic, key, headers, value)
	if err != nil {
		return &saga.StepError{Kind: saga.ErrStepTransport, StepName: def.Name, Reason: err.Error()}
	}

	busSubtree := map[string]any{
		"topic":        topic,
		"partition":    ack.Partition,
		"offset":       ack.Offset,
		"ack_received": true,
	}
	sctx.Set(def.Name, map[string]any{"bus": busSubtree})
	rec.Response = busSubtree

	return nil
}

// compensate invokes a completed step's rollback clause, swallowing any
// error (spec.md section 4.4 - compensation semantics: ROLLBACK_FAILURE is
// always recovered locally).
func (e *Engine) compensate(ctx context.Context, def *saga.StepDefinition, rec *saga.StepRecord, sctx *sagactx.Context, logger logging.Logger) {
	if def.Rollback == nil {
		rec.Status = saga.StepRolledBack
		return
	}

	var err error
	switch def.Rollback.Type {
	case saga.StepTypeBus:
		topic := sagaexpr.ToString(sagaexpr.Interpolate(def.Rollback.Endpoint.Topic, sctx))
		key := sagaexpr.ToString(sagaexpr.Interpolate(def.Rollback.Endpoint.PartitionKey, sctx))
		headers := sagaexpr.InterpolateHeaders(def.Rollback.Headers, sctx)
		value := sagaexpr.Interpolate(def.Rollback.Body, sctx)
		_, err = e.bus.Publish(ctx, topic, key, headers, value)
	default:
		url := sagaexpr.ToString(sagaexpr.Interpolate(def.Rollback.Endpoint.URL, sctx))
		method := def.Rollback.Endpoint.Method
		if method == "" {
			method = "POST"
		}
		headers := sagaexpr.InterpolateHeaders(def.Rollback.Headers, sctx)
		body := sagaexpr.Interpolate(def.Rollback.Body, sctx)
		_, err = e.http.Request(ctx, method, url, headers, body)
	}

	if err != nil {
		logger.Warn("rollback failed, continuing compensation sweep",
			logging.StepField(def.Name),
			logging.ErrField(err),
		)
	}
	rec.Status = saga.StepRolledBack
}

func responseBodyOrEmpty(body any) any {
	if body == nil {
		return map[string]any{}
	}
	return body
}
