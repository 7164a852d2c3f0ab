package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, WorkflowID(ctx))
	assert.Empty(t, ExecutionID(ctx))
	assert.Empty(t, StepID(ctx))
	assert.Empty(t, UserID(ctx))

	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithExecutionID(ctx, "exec-1")
	ctx = WithStepID(ctx, "step-1")
	ctx = WithUserID(ctx, "user-1")
	assert.Equal(t, "wf-1", WorkflowID(ctx))
	assert.Equal(t, "exec-1", ExecutionID(ctx))
	assert.Equal(t, "step-1", StepID(ctx))
	assert.Equal(t, "user-1", UserID(ctx))

	// Setters override.
	ctx = WithStepID(ctx, "step-2")
	assert.Equal(t, "step-2", StepID(ctx))
	assert.Equal(t, "wf-1", WorkflowID(ctx))
}

func TestLogWith_AddsOnlyPresentIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithExecutionID(WithWorkflowID(context.Background(), "wf-9"), "exec-9")
	LogWith(ctx, logger).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "wf-9", record["workflow_id"])
	assert.Equal(t, "exec-9", record["execution_id"])
	assert.NotContains(t, record, "step_id")
	assert.NotContains(t, record, "user_id")
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithWorkflowID(context.Background(), "wf-1")
	ctx = WithExecutionID(ctx, "exec-1")
	ctx = WithStepID(ctx, "step-1")
	ctx = WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "step started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "step started", record["msg"])
	assert.Equal(t, "wf-1", record["workflow_id"])
	assert.Equal(t, "exec-1", record["execution_id"])
	assert.Equal(t, "step-1", record["step_id"])
	assert.Equal(t, "user-1", record["user_id"])
}

func TestCorrelationHandler_PlainContextUntouched(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("no correlation")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "workflow_id")
	assert.NotContains(t, record, "execution_id")
}

func TestCorrelationHandler_WithAttrsPreservesWrapping(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))
	logger = logger.With(slog.String("component", "executor"))

	ctx := WithWorkflowID(context.Background(), "wf-1")
	logger.InfoContext(ctx, "working")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "executor", record["component"])
	assert.Equal(t, "wf-1", record["workflow_id"])
}
