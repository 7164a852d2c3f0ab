package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

func TestCreateWorkflow(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	wf, err := eng.CreateWorkflow(ctx, CreateWorkflowRequest{Name: "trial", UserID: "user-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, schema.WorkflowStatusDraft, wf.Status)

	_, err = eng.CreateWorkflow(ctx, CreateWorkflowRequest{UserID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)

	_, err = eng.CreateWorkflow(ctx, CreateWorkflowRequest{Name: "trial"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestGetWorkflow_Visibility(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	private := seedWorkflow(st, schema.WorkflowStatusActive)
	public := seedWorkflow(st, schema.WorkflowStatusActive)
	require.NoError(t, st.CreateWorkflow(ctx, &store.Workflow{
		ID: public.ID, Name: public.Name, UserID: public.UserID,
		Status: public.Status, Public: true,
	}))

	_, _, err := eng.GetWorkflow(ctx, private.ID, "user-1")
	require.NoError(t, err)

	_, _, err = eng.GetWorkflow(ctx, private.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodePermission, err.(*schema.FlowError).Code)

	_, _, err = eng.GetWorkflow(ctx, public.ID, "stranger")
	require.NoError(t, err)
}

func TestAddStep_Validation(t *testing.T) {
	st := newMemStore()
	strict := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		cfg: []byte(`{"type":"object","required":["test"],"additionalProperties":false,
			"properties":{"test":{"type":"string"}}}`),
	}
	eng := newTestEngine(t, st, Config{}, strict)
	ctx := context.Background()

	wf := seedWorkflow(st, schema.WorkflowStatusDraft)

	// Happy path: defaults to required.
	step, err := eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{
		Name:          "t-test",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"test":"t_test"}`),
	})
	require.NoError(t, err)
	assert.True(t, step.IsRequired)
	assert.Equal(t, schema.StepStatusPending, step.ExecutionStatus)

	// Explicitly optional.
	optional := false
	step2, err := eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{
		Name:          "optional",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"test":"t_test"}`),
		IsRequired:    &optional,
		DependsOn:     []string{step.ID},
	})
	require.NoError(t, err)
	assert.False(t, step2.IsRequired)

	// Unknown step type.
	_, err = eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{Name: "x", StepType: "quantum"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)

	// Configuration violating the analyzer schema.
	_, err = eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{
		Name:          "bad-config",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"nope":true}`),
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)

	// Broken run condition.
	_, err = eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{
		Name:          "bad-cond",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"test":"t_test"}`),
		Condition:     "=== not CEL",
	})
	require.Error(t, err)

	// Dependency on a step that does not exist.
	_, err = eng.AddStep(ctx, wf.ID, "user-1", AddStepRequest{
		Name:          "dangling",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"test":"t_test"}`),
		DependsOn:     []string{"ghost"},
	})
	require.Error(t, err)

	// Non-owner cannot add steps.
	_, err = eng.AddStep(ctx, wf.ID, "stranger", AddStepRequest{
		Name:          "steal",
		StepType:      schema.StepTypeStatisticalTest,
		Configuration: []byte(`{"test":"t_test"}`),
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodePermission, err.(*schema.FlowError).Code)
}

func TestAddStep_RejectedWhileExecuting(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})

	wf := seedWorkflow(st, schema.WorkflowStatusInProgress)
	_, err := eng.AddStep(context.Background(), wf.ID, "user-1", AddStepRequest{
		Name: "late", StepType: schema.StepTypeStatisticalTest,
	})
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeConflict, ferr.Code)
	assert.Contains(t, ferr.Message, "executing")
}

func TestUpdateStep(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	pending := seedStep("pending", schema.StepTypeStatisticalTest, 0, true)
	ran := seedStep("ran", schema.StepTypeStatisticalTest, 1, true)
	ran.ExecutionStatus = schema.StepStatusCompleted
	wf := seedWorkflow(st, schema.WorkflowStatusActive, pending, ran)

	pos := 5
	updated, err := eng.UpdateStep(ctx, wf.ID, "pending", "user-1", store.StepUpdate{Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Position)

	// Completed steps cannot be modified.
	_, err = eng.UpdateStep(ctx, wf.ID, "ran", "user-1", store.StepUpdate{Position: &pos})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.FlowError).Code)

	// Direct status writes are stripped, not applied.
	failed := schema.StepStatusFailed
	updated, err = eng.UpdateStep(ctx, wf.ID, "pending", "user-1", store.StepUpdate{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, schema.StepStatusPending, updated.ExecutionStatus)

	// Dependency updates revalidate the graph.
	_, err = eng.UpdateStep(ctx, wf.ID, "pending", "user-1", store.StepUpdate{DependsOn: []string{"pending"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestDeleteStep_DependentsBlock(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	base := seedStep("base", schema.StepTypeStatisticalTest, 0, true)
	child := seedStep("child", schema.StepTypeStatisticalTest, 1, true)
	child.DependsOn = []string{"base"}
	wf := seedWorkflow(st, schema.WorkflowStatusActive, base, child)

	err := eng.DeleteStep(ctx, wf.ID, "base", "user-1")
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeConflict, ferr.Code)
	assert.Equal(t, []string{"child"}, ferr.Details["dependents"])

	// Deleting the leaf works, then the base becomes deletable.
	require.NoError(t, eng.DeleteStep(ctx, wf.ID, "child", "user-1"))
	require.NoError(t, eng.DeleteStep(ctx, wf.ID, "base", "user-1"))

	steps, err := st.ListSteps(ctx, wf.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestDeleteStep_RanStepsBlocked(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	ran := seedStep("ran", schema.StepTypeStatisticalTest, 0, true)
	ran.ExecutionStatus = schema.StepStatusCompleted
	broken := seedStep("broken", schema.StepTypeStatisticalTest, 1, false)
	broken.ExecutionStatus = schema.StepStatusFailed
	wf := seedWorkflow(st, schema.WorkflowStatusActive, ran, broken)

	// A step that already ran cannot be deleted.
	err := eng.DeleteStep(ctx, wf.ID, "ran", "user-1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.FlowError).Code)
	assert.Equal(t, schema.StepStatusCompleted, st.stepByID(t, wf.ID, "ran").ExecutionStatus)

	// Failed steps stay deletable, same window as updates.
	require.NoError(t, eng.DeleteStep(ctx, wf.ID, "broken", "user-1"))
}

func TestUpdateStep_FailedWorkflowEditable(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	bad := seedStep("bad", schema.StepTypeStatisticalTest, 0, true)
	bad.ExecutionStatus = schema.StepStatusFailed
	wf := seedWorkflow(st, schema.WorkflowStatusFailed, bad)

	// A failed workflow's failed step can be repaired before the reset.
	cfg := []byte(`{"test":"anova"}`)
	updated, err := eng.UpdateStep(ctx, wf.ID, "bad", "user-1", store.StepUpdate{Configuration: cfg})
	require.NoError(t, err)
	assert.JSONEq(t, string(cfg), string(updated.Configuration))
}

func TestResetWorkflow(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	done := seedStep("done", schema.StepTypeStatisticalTest, 0, true)
	done.ExecutionStatus = schema.StepStatusCompleted
	done.Error = ""
	failedStep := seedStep("bad", schema.StepTypeStatisticalTest, 1, true)
	failedStep.ExecutionStatus = schema.StepStatusFailed
	failedStep.Error = "boom"
	wf := seedWorkflow(st, schema.WorkflowStatusFailed, done, failedStep)

	require.NoError(t, eng.ResetWorkflow(ctx, wf.ID, "user-1"))

	got, err := st.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.WorkflowStatusActive, got.Status)

	for _, id := range []string{"done", "bad"} {
		s := st.stepByID(t, wf.ID, id)
		assert.Equal(t, schema.StepStatusPending, s.ExecutionStatus)
		assert.Empty(t, s.Error)
	}
	assert.Contains(t, st.eventTypes(wf.ID), schema.EventWorkflowReset)

	// Permission and archive guards.
	require.Error(t, eng.ResetWorkflow(ctx, wf.ID, "stranger"))

	archived := seedWorkflow(st, schema.WorkflowStatusArchived)
	err = eng.ResetWorkflow(ctx, archived.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.FlowError).Code)
}

func TestArchiveWorkflow(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	wf := seedWorkflow(st, schema.WorkflowStatusCompleted)
	require.NoError(t, eng.ArchiveWorkflow(ctx, wf.ID, "user-1"))

	got, err := st.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.WorkflowStatusArchived, got.Status)

	// Archiving twice violates the transition table.
	require.Error(t, eng.ArchiveWorkflow(ctx, wf.ID, "user-1"))

	other := seedWorkflow(st, schema.WorkflowStatusActive)
	err = eng.ArchiveWorkflow(ctx, other.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodePermission, err.(*schema.FlowError).Code)
}

func TestGetEvents_Visibility(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(t, st, Config{}, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})
	ctx := context.Background()

	wf := seedWorkflow(st, schema.WorkflowStatusActive)
	require.NoError(t, st.AppendEvent(ctx, &store.Event{WorkflowID: wf.ID, Type: schema.EventWorkflowStarted}))
	require.NoError(t, st.AppendEvent(ctx, &store.Event{WorkflowID: wf.ID, Type: schema.EventWorkflowCompleted}))

	events, err := eng.GetEvents(ctx, wf.ID, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Since-cursor filters already seen events.
	events, err = eng.GetEvents(ctx, wf.ID, "user-1", events[0].Sequence)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = eng.GetEvents(ctx, wf.ID, "stranger", 0)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodePermission, err.(*schema.FlowError).Code)
}
