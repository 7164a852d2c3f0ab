package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

func tstep(id string, status schema.StepStatus, required bool) *store.WorkflowStep {
	return &store.WorkflowStep{ID: id, ExecutionStatus: status, IsRequired: required}
}

func TestDeriveWorkflowStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []*store.WorkflowStep
		want  schema.WorkflowStatus
		ok    bool
	}{
		{
			name: "all completed",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCompleted, true),
				tstep("b", schema.StepStatusCompleted, true),
			},
			want: schema.WorkflowStatusCompleted,
			ok:   true,
		},
		{
			name: "completed and skipped",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCompleted, true),
				tstep("b", schema.StepStatusSkipped, false),
			},
			want: schema.WorkflowStatusCompleted,
			ok:   true,
		},
		{
			name: "required failure is decisive",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCompleted, true),
				tstep("b", schema.StepStatusFailed, true),
				tstep("c", schema.StepStatusPending, true),
			},
			want: schema.WorkflowStatusFailed,
			ok:   true,
		},
		{
			name: "optional failure completes around",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusFailed, false),
				tstep("b", schema.StepStatusSkipped, true),
				tstep("c", schema.StepStatusCompleted, true),
			},
			want: schema.WorkflowStatusCompleted,
			ok:   true,
		},
		{
			name: "optional failure with work left",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusFailed, false),
				tstep("b", schema.StepStatusPending, true),
			},
			want: "",
			ok:   false,
		},
		{
			name: "cancelled terminal",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCancelled, true),
				tstep("b", schema.StepStatusCompleted, true),
			},
			want: schema.WorkflowStatusCancelled,
			ok:   true,
		},
		{
			name: "required failure wins over cancelled",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusFailed, true),
				tstep("b", schema.StepStatusCancelled, true),
			},
			want: schema.WorkflowStatusFailed,
			ok:   true,
		},
		{
			name: "still running",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCompleted, true),
				tstep("b", schema.StepStatusInProgress, true),
			},
			want: schema.WorkflowStatusInProgress,
			ok:   true,
		},
		{
			name: "pending steps left",
			steps: []*store.WorkflowStep{
				tstep("a", schema.StepStatusCompleted, true),
				tstep("b", schema.StepStatusPending, true),
			},
			want: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveWorkflowStatus(tt.steps)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := DeriveWorkflowStatus(nil)
	assert.False(t, ok)
}

func TestDeriveRunStatus_ScopesToStartIndex(t *testing.T) {
	steps := []*store.WorkflowStep{
		tstep("a", schema.StepStatusPending, true),
		tstep("b", schema.StepStatusPending, true),
		tstep("c", schema.StepStatusPending, true),
	}
	exec := NewExecution("exec-1", "wf-1", "wf", "user-1", len(steps))
	exec.seedSteps(steps, 1)
	exec.stepStatuses["b"] = schema.StepStatusCompleted
	exec.stepStatuses["c"] = schema.StepStatusCompleted

	// The untouched head is outside the run and does not hold the fold open.
	status, ok := deriveRunStatus(steps, 1, exec)
	require.True(t, ok)
	assert.Equal(t, schema.WorkflowStatusCompleted, status)

	_, ok = deriveRunStatus(steps, 0, exec)
	assert.False(t, ok)
}

func TestCountStepOutcomes(t *testing.T) {
	completed, failed := CountStepOutcomes([]*store.WorkflowStep{
		tstep("a", schema.StepStatusCompleted, true),
		tstep("b", schema.StepStatusCompleted, true),
		tstep("c", schema.StepStatusFailed, true),
		tstep("d", schema.StepStatusSkipped, false),
		tstep("e", schema.StepStatusPending, true),
	})
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)
}
