package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowError_Format(t *testing.T) {
	err := NewError(ErrCodeValidation, "name is required")
	assert.Equal(t, "[VALIDATION_ERROR] name is required", err.Error())

	withStep := NewErrorf(ErrCodeTimeout, "execution timed out").WithStep("step-3")
	assert.Equal(t, "[TIMEOUT_ERROR] step step-3: execution timed out", withStep.Error())
}

func TestFlowError_BuilderChain(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeStore, "persist step status").
		WithStep("step-1").
		WithCause(cause).
		WithDetails(map[string]any{"attempt": 2})

	assert.Equal(t, ErrCodeStore, err.Code)
	assert.Equal(t, "step-1", err.StepID)
	assert.Equal(t, 2, err.Details["attempt"])
	require.ErrorIs(t, err, cause)
}

func TestFlowError_UnwrapNilCause(t *testing.T) {
	err := NewError(ErrCodeNotFound, "workflow not found")
	assert.Nil(t, errors.Unwrap(err))
}

func TestTerminalWorkflowStatus(t *testing.T) {
	terminal := []WorkflowStatus{
		WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled, WorkflowStatusArchived,
	}
	for _, s := range terminal {
		assert.True(t, TerminalWorkflowStatus(s), string(s))
	}

	live := []WorkflowStatus{WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusInProgress}
	for _, s := range live {
		assert.False(t, TerminalWorkflowStatus(s), string(s))
	}
}

func TestTerminalStepStatus(t *testing.T) {
	terminal := []StepStatus{
		StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled,
	}
	for _, s := range terminal {
		assert.True(t, TerminalStepStatus(s), string(s))
	}

	assert.False(t, TerminalStepStatus(StepStatusPending))
	assert.False(t, TerminalStepStatus(StepStatusInProgress))
}

func TestValidStepType(t *testing.T) {
	for _, st := range AllStepTypes {
		assert.True(t, ValidStepType(st), string(st))
	}
	assert.False(t, ValidStepType(StepType("spreadsheet_macro")))
}
