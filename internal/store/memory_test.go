// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
executions:
  - name: validate
    type: api
    endpoint:
      url: "http://svc/v"
`

func TestMemoryCreateLoadEnable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.Create(ctx, "order-saga", "1", "first cut", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, rec.Status)

	enabled, err := m.Enabled(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	workflow, err := m.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, workflow.ConfigID)
	assert.Equal(t, "order-saga", workflow.Name)

	_, err = m.SetStatus(ctx, rec.ID, StatusActive)
	require.NoError(t, err)
	enabled, err = m.Enabled(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestMemoryCreateRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Create(ctx, "order-saga", "1", "", []byte(sampleYAML))
	require.NoError(t, err)

	_, err = m.Create(ctx, "order-saga", "2", "", []byte(sampleYAML))
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestMemoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.Create(ctx, "a-saga", "1", "", []byte(sampleYAML))
	require.NoError(t, err)
	_, err = m.Create(ctx, "b-saga", "1", "", []byte(sampleYAML))
	require.NoError(t, err)

	recs, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, m.Delete(ctx, a.ID))
	recs, err = m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = m.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateRevalidatesNameUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.Create(ctx, "a-saga", "1", "", []byte(sampleYAML))
	require.NoError(t, err)
	_, err = m.Create(ctx, "b-saga", "1", "", []byte(sampleYAML))
	require.NoError(t, err)

	conflicting := "b-saga"
	_, err = m.Update(ctx, a.ID, &conflicting, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNameConflict)
}

var _ Store = (*Memory)(nil)
