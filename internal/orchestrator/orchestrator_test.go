// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagaflow/internal/journal"
	"sagaflow/pkg/saga"
)

type stubHTTP struct {
	responses map[string]saga.HTTPResponse
	calls     []string
}

func (s *stubHTTP) Request(_ context.Context, method, url string, _ map[string]string, _ any) (saga.HTTPResponse, error) {
	s.calls = append(s.calls, method+" "+url)
	resp, ok := s.responses[method+" "+url]
	if !ok {
		return saga.HTTPResponse{}, errors.New("no stub response for " + method + " " + url)
	}
	return resp, nil
}

type stubBus struct {
	ack saga.BusAck
	err error
}

func (s *stubBus) Publish(_ context.Context, _, _ string, _ map[string]string, _ any) (saga.BusAck, error) {
	return s.ack, s.err
}

func twoStepWorkflow() *saga.WorkflowDefinition {
	return &saga.WorkflowDefinition{
		Name:    "order",
		Version: "1",
		Steps: []saga.StepDefinition{
			{
				Name: "validate",
				Type: saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/v", Method: "POST"},
				Body: map[string]any{"id": "${webhook.order_id}"},
			},
			{
				Name: "charge",
				Type: saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/c", Method: "POST"},
				Body: map[string]any{"order": "${webhook.order_id}"},
			},
		},
	}
}

func TestHappyPathTwoSteps(t *testing.T) {
	http := &stubHTTP{responses: map[string]saga.HTTPResponse{
		"POST http://svc/v": {Status: 200, Body: map[string]any{}},
		"POST http://svc/c": {Status: 200, Body: map[string]any{}},
	}}
	j := journal.NewMemory()
	eng := New(http, nil, j, nil)

	exec, err := eng.Execute(context.Background(), twoStepWorkflow(), map[string]any{"order_id": "O1"})
	require.NoError(t, err)

	assert.Equal(t, saga.ExecutionCompleted, exec.Status)
	assert.Len(t, exec.Steps, 2)
	assert.Equal(t, saga.StepCompleted, exec.Steps[0].Status)
	assert.Equal(t, saga.StepCompleted, exec.Steps[1].Status)

	webhook := exec.OutputData["webhook"].(map[string]any)
	assert.Equal(t, "O1", webhook["order_id"])
	assert.Equal(t, exec.CorrelationID, webhook["correlation_id"])
}

func TestPredicateFailureTriggersCompensation(t *testing.T) {
	http := &stubHTTP{responses: map[string]saga.HTTPResponse{
		"POST http://svc/a":      {Status: 200, Body: map[string]any{"ok": true, "id": "X"}},
		"POST http://svc/b":      {Status: 200, Body: map[string]any{"ok": false}},
		"DELETE http://svc/a/X": {Status: 200, Body: map[string]any{}},
	}}
	j := journal.NewMemory()
	eng := New(http, nil, j, nil)

	workflow := &saga.WorkflowDefinition{
		Name: "order",
		Steps: []saga.StepDefinition{
			{
				Name:     "A",
				Type:     saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/a", Method: "POST"},
				Success: &saga.SuccessSpec{
					Condition: "response.body.ok == true",
					Extract:   map[string]string{"id": "response.body.id"},
				},
				Rollback: &saga.Compensation{
					Type:     saga.StepTypeAPI,
					Endpoint: saga.Endpoint{URL: "http://svc/a/${A.id}", Method: "DELETE"},
				},
			},
			{
				Name:     "B",
				Type:     saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/b", Method: "POST"},
				Success: &saga.SuccessSpec{
					Condition: `response.body.ok == "true"`,
				},
			},
		},
	}

	exec, err := eng.Execute(context.Background(), workflow, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, saga.ExecutionRolledBack, exec.Status)
	assert.Contains(t, http.calls, "DELETE http://svc/a/X")
	assert.Equal(t, saga.StepRolledBack, exec.Steps[0].Status)
	assert.Equal(t, saga.StepFailed, exec.Steps[1].Status)
}

func TestWholeValueSplice(t *testing.T) {
	var capturedBody any
	http := &capturingHTTP{
		onRequest: func(body any) saga.HTTPResponse {
			capturedBody = body
			return saga.HTTPResponse{Status: 200, Body: map[string]any{}}
		},
	}
	j := journal.NewMemory()
	eng := New(http, nil, j, nil)

	workflow := &saga.WorkflowDefinition{
		Name: "order",
		Steps: []saga.StepDefinition{
			{
				Name:     "ship",
				Type:     saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/s", Method: "POST"},
				Body:     map[string]any{"items": "${webhook.items}"},
			},
		},
	}

	input := map[string]any{"items": []any{map[string]any{"sku": "S", "qty": float64(2)}}}
	_, err := eng.Execute(context.Background(), workflow, input)
	require.NoError(t, err)

	body := capturedBody.(map[string]any)
	assert.Equal(t, input["items"], body["items"])
}

func TestBusStepAck(t *testing.T) {
	bus := &stubBus{ack: saga.BusAck{Partition: 0, Offset: 42}}
	j := journal.NewMemory()
	eng := New(nil, bus, j, nil)

	workflow := &saga.WorkflowDefinition{
		Name: "events",
		Steps: []saga.StepDefinition{
			{
				Name: "publish",
				Type: saga.StepTypeBus,
				Endpoint: saga.Endpoint{
					Topic:        "events.${webhook.kind}",
					PartitionKey: "${webhook.id}",
				},
				Body: map[string]any{"payload": "${webhook}"},
			},
		},
	}

	input := map[string]any{"id": "1", "kind": "created", "x": float64(1)}
	exec, err := eng.Execute(context.Background(), workflow, input)
	require.NoError(t, err)

	assert.Equal(t, saga.ExecutionCompleted, exec.Status)
	busResult := exec.OutputData["publish"].(map[string]any)["bus"].(map[string]any)
	assert.Equal(t, "events.created", busResult["topic"])
	assert.Equal(t, int32(0), busResult["partition"])
	assert.Equal(t, int64(42), busResult["offset"])
	assert.Equal(t, true, busResult["ack_received"])
}

func TestRollbackFailureIsSwallowed(t *testing.T) {
	http := &stubHTTP{responses: map[string]saga.HTTPResponse{
		"POST http://svc/a": {Status: 200, Body: map[string]any{"ok": true, "id": "X"}},
		"POST http://svc/b": {Status: 200, Body: map[string]any{"ok": false}},
	}}
	delete(http.responses, "DELETE http://svc/a/X")
	j := journal.NewMemory()
	eng := New(http, nil, j, nil)

	workflow := &saga.WorkflowDefinition{
		Name: "order",
		Steps: []saga.StepDefinition{
			{
				Name:     "A",
				Type:     saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/a", Method: "POST"},
				Success:  &saga.SuccessSpec{Condition: "response.body.ok == true", Extract: map[string]string{"id": "response.body.id"}},
				Rollback: &saga.Compensation{Type: saga.StepTypeAPI, Endpoint: saga.Endpoint{URL: "http://svc/a/${A.id}", Method: "DELETE"}},
			},
			{
				Name:     "B",
				Type:     saga.StepTypeAPI,
				Endpoint: saga.Endpoint{URL: "http://svc/b", Method: "POST"},
				Success:  &saga.SuccessSpec{Condition: `response.body.ok == "true"`},
			},
		},
	}

	exec, err := eng.Execute(context.Background(), workflow, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, saga.ExecutionRolledBack, exec.Status)
	assert.Equal(t, saga.StepRolledBack, exec.Steps[0].Status)
}

func TestUnknownStepType(t *testing.T) {
	http := &stubHTTP{responses: map[string]saga.HTTPResponse{}}
	j := journal.NewMemory()
	eng := New(http, nil, j, nil)

	workflow := &saga.WorkflowDefinition{
		Name: "order",
		Steps: []saga.StepDefinition{
			{Name: "weird", Type: saga.StepType("grpc")},
		},
	}

	exec, err := eng.Execute(context.Background(), workflow, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, saga.ExecutionRolledBack, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "Unknown step type: grpc")
	assert.Empty(t, http.calls)
}

type capturingHTTP struct {
	onRequest func(body any) saga.HTTPResponse
}

func (c *capturingHTTP) Request(_ context.Context, _, _ string, _ map[string]string, body any) (saga.HTTPResponse, error) {
	return c.onRequest(body), nil
}
