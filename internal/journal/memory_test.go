// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagaflow/pkg/saga"
)

func TestMemoryExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	exec := &saga.Execution{ID: "exec-1", WorkflowID: "wf-1", WorkflowName: "order-saga", Status: saga.ExecutionRunning, StartedAt: time.Now()}
	require.NoError(t, m.CreateExecution(ctx, exec))

	step := &saga.StepRecord{ExecutionID: exec.ID, StepName: "validate", StepType: saga.StepTypeAPI, Status: saga.StepRunning, StartedAt: time.Now()}
	require.NoError(t, m.CreateStep(ctx, step))

	step.Status = saga.StepCompleted
	require.NoError(t, m.UpdateStep(ctx, step))

	exec.Status = saga.ExecutionCompleted
	require.NoError(t, m.FinalizeExecution(ctx, exec))

	fetched, err := m.Execution(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Steps, 1)
	assert.Equal(t, saga.StepCompleted, fetched.Steps[0].Status)

	_, err = m.Execution(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryExecutionsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	older := &saga.Execution{ID: "exec-older", WorkflowID: "wf-1", StartedAt: time.Now().Add(-time.Hour)}
	newer := &saga.Execution{ID: "exec-newer", WorkflowID: "wf-1", StartedAt: time.Now()}
	other := &saga.Execution{ID: "exec-other", WorkflowID: "wf-2", StartedAt: time.Now()}
	for _, e := range []*saga.Execution{older, newer, other} {
		require.NoError(t, m.CreateExecution(ctx, e))
	}

	all, err := m.Executions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := m.Executions(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "exec-newer", filtered[0].ID)
	assert.Equal(t, "exec-older", filtered[1].ID)
}

var _ Journal = (*Memory)(nil)
