package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

func step(id string, deps ...string) *store.WorkflowStep {
	return &store.WorkflowStep{ID: id, DependsOn: deps}
}

func TestDependenciesSatisfied(t *testing.T) {
	s := step("c", "a", "b")

	assert.True(t, DependenciesSatisfied(s, map[string]schema.StepStatus{
		"a": schema.StepStatusCompleted,
		"b": schema.StepStatusCompleted,
	}))

	// A skipped dependency does not count as completed.
	assert.False(t, DependenciesSatisfied(s, map[string]schema.StepStatus{
		"a": schema.StepStatusCompleted,
		"b": schema.StepStatusSkipped,
	}))

	// A dependency missing from the map is not satisfied.
	assert.False(t, DependenciesSatisfied(s, map[string]schema.StepStatus{
		"a": schema.StepStatusCompleted,
	}))

	// No dependencies is always satisfied.
	assert.True(t, DependenciesSatisfied(step("solo"), nil))
}

func TestDependents_Transitive(t *testing.T) {
	steps := []*store.WorkflowStep{
		step("a"),
		step("b", "a"),
		step("c", "b"),
		step("d"),
	}

	deps := Dependents(steps, "a")
	assert.ElementsMatch(t, []string{"b", "c"}, deps)

	assert.Empty(t, Dependents(steps, "d"))
	assert.Empty(t, Dependents(steps, "c"))
}

func TestValidateDependencies_SelfReference(t *testing.T) {
	err := ValidateDependencies([]*store.WorkflowStep{step("a", "a")})
	require.Error(t, err)

	ferr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
	assert.Contains(t, ferr.Message, "depends on itself")
}

func TestValidateDependencies_UnknownReference(t *testing.T) {
	err := ValidateDependencies([]*store.WorkflowStep{step("a", "ghost")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestValidateDependencies_Cycle(t *testing.T) {
	err := ValidateDependencies([]*store.WorkflowStep{
		step("a", "c"),
		step("b", "a"),
		step("c", "b"),
	})
	require.Error(t, err)

	ferr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
	assert.Contains(t, ferr.Message, "cycle")
}

func TestValidateDependencies_ValidDAG(t *testing.T) {
	require.NoError(t, ValidateDependencies([]*store.WorkflowStep{
		step("a"),
		step("b", "a"),
		step("c", "a", "b"),
	}))
}
