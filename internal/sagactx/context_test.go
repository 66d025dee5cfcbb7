// SPDX-License-Identifier: AGPL-3.0-or-later

package sagactx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAndResolve(t *testing.T) {
	ctx := New()
	ctx.Seed("corr-1", map[string]any{"order_id": "O1"})

	v, ok := ctx.Resolve("webhook.order_id")
	require.True(t, ok)
	assert.Equal(t, "O1", v)

	v, ok = ctx.Resolve("webhook.correlation_id")
	require.True(t, ok)
	assert.Equal(t, "corr-1", v)
}

func TestResolveMissingPath(t *testing.T) {
	ctx := New()
	ctx.Seed("corr-1", map[string]any{})

	_, ok := ctx.Resolve("does.not.exist")
	assert.False(t, ok)
}

func TestSetAndExtract(t *testing.T) {
	ctx := New()
	ctx.Set("A", map[string]any{"response": map[string]any{"status": float64(200)}})
	ctx.Extract("A", "id", "X")

	v, ok := ctx.Resolve("A.response.status")
	require.True(t, ok)
	assert.Equal(t, float64(200), v)

	v, ok = ctx.Resolve("A.id")
	require.True(t, ok)
	assert.Equal(t, "X", v)
}

func TestContextContainment(t *testing.T) {
	ctx := New()
	ctx.Seed("corr-1", map[string]any{"order_id": "O1"})

	snap := ctx.Snapshot()
	webhook, ok := snap["webhook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "corr-1", webhook["correlation_id"])
}
