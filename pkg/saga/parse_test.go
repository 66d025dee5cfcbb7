// SPDX-License-Identifier: AGPL-3.0-or-later

package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoStepYAML = `
executions:
  - name: validate
    type: api
    endpoint:
      url: "http://svc/v"
  - name: charge
    type: api
    endpoint:
      url: "http://svc/c"
      method: PUT
`

func TestParseValidDocument(t *testing.T) {
	steps, err := Parse([]byte(twoStepYAML))
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "validate", steps[0].Name)
	assert.Equal(t, "POST", steps[0].Endpoint.Method)
	assert.Equal(t, "PUT", steps[1].Endpoint.Method)
}

func TestParseRejectsEmptyExecutions(t *testing.T) {
	_, err := Parse([]byte("executions: []"))
	require.Error(t, err)
	assert.IsType(t, &ParseError{}, err)
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	doc := `
executions:
  - name: a
    type: api
    endpoint: { url: "http://svc/a" }
  - name: a
    type: api
    endpoint: { url: "http://svc/a2" }
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestParseAPIStepRequiresURL(t *testing.T) {
	doc := `
executions:
  - name: a
    type: api
    endpoint: {}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires url")
}

func TestParseBusStepRequiresTopic(t *testing.T) {
	doc := `
executions:
  - name: a
    type: bus
    endpoint: {}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires topic")
}

func TestParseAcceptsUnknownStepTypeAtParseTime(t *testing.T) {
	doc := `
executions:
  - name: a
    type: grpc
    endpoint: {}
`
	steps, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.EqualValues(t, "grpc", steps[0].Type)
}

func TestParseRollbackNilIsNoop(t *testing.T) {
	doc := `
executions:
  - name: a
    type: api
    endpoint: { url: "http://svc/a" }
`
	steps, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Nil(t, steps[0].Rollback)
}

func TestParseRollbackPresentButEmptyIsError(t *testing.T) {
	doc := `
executions:
  - name: a
    type: api
    endpoint: { url: "http://svc/a" }
    rollback: {}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback present but empty")
}

func TestDefineAssemblesWorkflowDefinition(t *testing.T) {
	wf, err := Define("order-saga", "1", []byte(twoStepYAML))
	require.NoError(t, err)
	assert.Equal(t, "order-saga", wf.Name)
	assert.Equal(t, "1", wf.Version)
	assert.Len(t, wf.Steps, 2)
}

func TestDefineRequiresName(t *testing.T) {
	_, err := Define("", "1", []byte(twoStepYAML))
	require.Error(t, err)
}
