package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/pkg/schema"
)

func TestConditionEvaluator_EmptyConditionPasses(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	pass, err := ev.Evaluate("", nil)
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestConditionEvaluator_BooleanResults(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	data := map[string]any{
		"workflow": map[string]any{"name": "quarterly", "dataset_id": "ds-1"},
		"metadata": map[string]any{"run_reports": true},
	}

	tests := []struct {
		condition string
		want      bool
	}{
		{`workflow.name == "quarterly"`, true},
		{`workflow.name == "annual"`, false},
		{`workflow.dataset_id != ""`, true},
		{`metadata.run_reports == true`, true},
		{`1 > 2`, false},
	}

	for _, tt := range tests {
		pass, err := ev.Evaluate(tt.condition, data)
		require.NoError(t, err, "condition %q", tt.condition)
		assert.Equal(t, tt.want, pass, "condition %q", tt.condition)
	}
}

func TestConditionEvaluator_StepOutcomes(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	data := map[string]any{
		"steps": map[string]any{
			"test-step": map[string]any{
				"result": map[string]any{"significant": true, "p_value": 0.01},
			},
		},
	}

	pass, err := ev.Evaluate(`steps["test-step"].result.significant == true`, data)
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = ev.Evaluate(`steps["test-step"].result.p_value < 0.05`, data)
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestConditionEvaluator_MissingScopeDefaultsToEmpty(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	// No data at all: variables resolve to empty maps, not nil.
	pass, err := ev.Evaluate(`"x" in metadata`, nil)
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestConditionEvaluator_NonBooleanResult(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	_, err = ev.Evaluate(`1 + 2`, nil)
	require.Error(t, err)

	ferr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
	assert.Contains(t, ferr.Message, "boolean")
}

func TestConditionEvaluator_CompileError(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	_, err = ev.Evaluate(`this is not CEL ===`, nil)
	require.Error(t, err)

	ferr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
}

func TestConditionEvaluator_CachesPrograms(t *testing.T) {
	ev, err := NewConditionEvaluator()
	require.NoError(t, err)

	_, err = ev.Evaluate(`1 < 2`, nil)
	require.NoError(t, err)
	_, err = ev.Evaluate(`1 < 2`, nil)
	require.NoError(t, err)

	ev.mu.RLock()
	defer ev.mu.RUnlock()
	assert.Len(t, ev.cache, 1)
}
