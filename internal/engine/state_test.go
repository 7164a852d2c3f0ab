package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/pkg/schema"
)

func newExec(id, workflowID string) *Execution {
	return NewExecution(id, workflowID, "test workflow", "user-1", 3)
}

func TestExecution_SnapshotCountsOutcomes(t *testing.T) {
	exec := newExec("ex-1", "wf-1")

	exec.lock()
	exec.beginStep("s1", time.Minute, true, func() {})
	exec.endStep("s1", schema.StepStatusCompleted, "", map[string]any{"n": 5})
	exec.beginStep("s2", time.Minute, true, func() {})
	exec.endStep("s2", schema.StepStatusFailed, "boom", nil)
	exec.unlock()

	rec := exec.Snapshot()
	assert.Equal(t, "ex-1", rec.ID)
	assert.Equal(t, schema.WorkflowStatusInProgress, rec.Status)
	assert.Equal(t, 1, rec.CompletedSteps)
	assert.Equal(t, 1, rec.FailedSteps)
	assert.Equal(t, "boom", rec.StepErrors["s2"])
	assert.Contains(t, rec.StepOutcomes, "s1")
	assert.Empty(t, rec.CurrentStepID)
}

func TestExecution_FinishCancelsRunningStep(t *testing.T) {
	exec := newExec("ex-1", "wf-1")

	cancelled := false
	exec.lock()
	exec.beginStep("s1", time.Minute, true, func() { cancelled = true })
	exec.finish(schema.WorkflowStatusCancelled, CancelMessage)
	exec.unlock()

	assert.True(t, cancelled)
	assert.True(t, exec.terminal())

	rec := exec.Snapshot()
	assert.Equal(t, schema.WorkflowStatusCancelled, rec.Status)
	assert.Equal(t, CancelMessage, rec.Error)
	assert.False(t, rec.EndedAt.IsZero())
}

func TestExecution_CurrentStepOverdue(t *testing.T) {
	exec := newExec("ex-1", "wf-1")

	exec.lock()
	defer exec.unlock()

	// No running step.
	_, overdue := exec.currentStepOverdue(time.Now())
	assert.False(t, overdue)

	exec.beginStep("s1", 10*time.Millisecond, true, func() {})

	_, overdue = exec.currentStepOverdue(exec.currentStepStarted.Add(5 * time.Millisecond))
	assert.False(t, overdue)

	stepID, overdue := exec.currentStepOverdue(exec.currentStepStarted.Add(20 * time.Millisecond))
	assert.True(t, overdue)
	assert.Equal(t, "s1", stepID)
}

func TestExecutionStore_RegisterConflict(t *testing.T) {
	s := NewExecutionStore(10)

	require.NoError(t, s.Register(newExec("ex-1", "wf-1")))

	err := s.Register(newExec("ex-2", "wf-1"))
	require.Error(t, err)
	ferr, ok := err.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeConflict, ferr.Code)

	// A different workflow registers fine.
	require.NoError(t, s.Register(newExec("ex-3", "wf-2")))
	assert.Len(t, s.Live(), 2)
}

func TestExecutionStore_FinalizeIsIdempotent(t *testing.T) {
	s := NewExecutionStore(10)
	exec := newExec("ex-1", "wf-1")
	require.NoError(t, s.Register(exec))

	exec.lock()
	exec.finish(schema.WorkflowStatusCompleted, "")
	exec.unlock()

	assert.True(t, s.Finalize(exec))
	assert.False(t, s.Finalize(exec), "second finalize must be a no-op")

	_, live := s.LiveByID("ex-1")
	assert.False(t, live)
	_, live = s.LiveByWorkflow("wf-1")
	assert.False(t, live)

	rec, ok := s.FromHistory("ex-1")
	require.True(t, ok)
	assert.Equal(t, schema.WorkflowStatusCompleted, rec.Status)
	assert.Len(t, s.History(0), 1)
}

func TestExecutionStore_HistoryBounded(t *testing.T) {
	s := NewExecutionStore(3)

	for i := 0; i < 5; i++ {
		exec := newExec(fmt.Sprintf("ex-%d", i), fmt.Sprintf("wf-%d", i))
		require.NoError(t, s.Register(exec))
		exec.lock()
		exec.finish(schema.WorkflowStatusCompleted, "")
		exec.unlock()
		require.True(t, s.Finalize(exec))
	}

	history := s.History(0)
	require.Len(t, history, 3)
	// Newest first; the two oldest were evicted.
	assert.Equal(t, "ex-4", history[0].ID)
	assert.Equal(t, "ex-3", history[1].ID)
	assert.Equal(t, "ex-2", history[2].ID)

	_, ok := s.FromHistory("ex-0")
	assert.False(t, ok, "evicted record should be gone")

	assert.Len(t, s.History(2), 2)
}

func TestExecutionStore_DiscardLeavesNoTrace(t *testing.T) {
	s := NewExecutionStore(10)
	exec := newExec("ex-1", "wf-1")
	require.NoError(t, s.Register(exec))

	s.Discard(exec)

	_, live := s.LiveByID("ex-1")
	assert.False(t, live)
	_, ok := s.FromHistory("ex-1")
	assert.False(t, ok)
	assert.Empty(t, s.History(0))

	// The workflow slot is free again.
	require.NoError(t, s.Register(newExec("ex-2", "wf-1")))
}

func TestExecutionStore_DefaultSize(t *testing.T) {
	s := NewExecutionStore(0)
	assert.Equal(t, DefaultHistorySize, s.historySize)
}

func TestExecution_EndStepKeepsForeignCancel(t *testing.T) {
	// endStep for a step that is not current must not clear the running step.
	exec := newExec("ex-1", "wf-1")
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec.lock()
	exec.beginStep("s2", time.Minute, true, cancel)
	exec.endStep("s1", schema.StepStatusSkipped, SkipReasonDependencies, nil)
	current := exec.currentStepID
	exec.unlock()

	assert.Equal(t, "s2", current)
}
