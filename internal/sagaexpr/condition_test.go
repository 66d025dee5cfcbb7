// SPDX-License-Identifier: AGPL-3.0-or-later

package sagaexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sagaflow/internal/sagactx"
)

func conditionContext(response map[string]any) *sagactx.Context {
	ctx := sagactx.New()
	ctx.Set("response", response)
	return ctx
}

func TestDefaultPredicateEquivalence(t *testing.T) {
	ctx := conditionContext(map[string]any{"status": float64(200)})

	normalized := NormalizeSuccessCondition("")
	assert.Equal(t, DefaultSuccessCondition, normalized)
	assert.True(t, Evaluate(NormalizeSuccessCondition(normalized), ctx))
}

func TestNormalizeWrapsBareResponseReferences(t *testing.T) {
	normalized := NormalizeSuccessCondition("response.body.ok == true")
	assert.Equal(t, "${response.body.ok} == true", normalized)
}

func TestNumericComparison(t *testing.T) {
	ctx := conditionContext(map[string]any{"status": float64(200)})
	assert.True(t, Evaluate("${response.status} == 200", ctx))
	assert.False(t, Evaluate("${response.status} == 404", ctx))
}

func TestStringComparisonFallback(t *testing.T) {
	ctx := conditionContext(map[string]any{"body": map[string]any{"ok": "true"}})
	assert.True(t, Evaluate(`${response.body.ok} == "true"`, ctx))
}

func TestNotEqual(t *testing.T) {
	ctx := conditionContext(map[string]any{"status": float64(500)})
	assert.True(t, Evaluate("${response.status} != 200", ctx))
}

func TestAndOr(t *testing.T) {
	ctx := conditionContext(map[string]any{"status": float64(200), "body": map[string]any{"ok": true}})
	assert.True(t, Evaluate("${response.status} == 200 && ${response.body.ok} == true", ctx))
	assert.True(t, Evaluate("${response.status} == 404 || ${response.status} == 200", ctx))
	assert.False(t, Evaluate("${response.status} == 404 && ${response.status} == 200", ctx))
}

func TestBareValueTruthiness(t *testing.T) {
	ctx := conditionContext(map[string]any{"ok": true})
	assert.True(t, Evaluate("${response.ok}", ctx))

	ctx2 := conditionContext(map[string]any{"ok": false})
	assert.False(t, Evaluate("${response.ok}", ctx2))
}
