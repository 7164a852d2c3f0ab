package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// CreateWorkflowRequest describes a new workflow.
type CreateWorkflowRequest struct {
	Name      string          `json:"name"`
	UserID    string          `json:"user_id"`
	DatasetID string          `json:"dataset_id,omitempty"`
	Public    bool            `json:"is_public,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// AddStepRequest describes a new step appended to a workflow.
type AddStepRequest struct {
	Name           string          `json:"name"`
	StepType       schema.StepType `json:"step_type"`
	Position       int             `json:"position"`
	Configuration  json.RawMessage `json:"configuration,omitempty"`
	DependsOn      []string        `json:"depends_on,omitempty"`
	Condition      string          `json:"condition,omitempty"`
	IsRequired     *bool           `json:"is_required,omitempty"` // nil means required
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
}

// CreateWorkflow creates a workflow in draft status.
func (e *Engine) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*store.Workflow, error) {
	if req.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow name is required")
	}
	if req.UserID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "user_id is required")
	}

	wf := &store.Workflow{
		ID:        uuid.NewString(),
		Name:      req.Name,
		UserID:    req.UserID,
		DatasetID: req.DatasetID,
		Status:    schema.WorkflowStatusDraft,
		Public:    req.Public,
		Metadata:  req.Metadata,
	}
	if err := e.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "create workflow").WithCause(err)
	}

	e.logger.Info("workflow created",
		slog.String("workflow_id", wf.ID),
		slog.String("user_id", wf.UserID))
	return wf, nil
}

// GetWorkflow returns a workflow with its steps. Non-owners only see public
// workflows.
func (e *Engine) GetWorkflow(ctx context.Context, workflowID, userID string) (*store.Workflow, []*store.WorkflowStep, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	if wf.UserID != userID && !wf.Public {
		return nil, nil, schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot view workflow %q", userID, workflowID)
	}
	steps, err := e.store.ListSteps(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	return wf, steps, nil
}

// ListWorkflows returns the user's workflows.
func (e *Engine) ListWorkflows(ctx context.Context, userID string, limit, offset int) ([]*store.Workflow, error) {
	return e.store.ListWorkflows(ctx, store.WorkflowFilter{UserID: userID, Limit: limit, Offset: offset})
}

// AddStep appends a step to a workflow that is not executing. The step type,
// configuration, dependencies, and run condition are all validated up front.
func (e *Engine) AddStep(ctx context.Context, workflowID, userID string, req AddStepRequest) (*store.WorkflowStep, error) {
	wf, err := e.ownedEditableWorkflow(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "step name is required")
	}
	if !schema.ValidStepType(req.StepType) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown step type %q", req.StepType)
	}

	analyzer, err := e.registry.Get(req.StepType)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(analyzer, req.Configuration); err != nil {
		return nil, err
	}
	if req.Condition != "" {
		if _, err := e.conditions.getOrCompile(req.Condition); err != nil {
			return nil, err
		}
	}

	required := true
	if req.IsRequired != nil {
		required = *req.IsRequired
	}

	step := &store.WorkflowStep{
		ID:              uuid.NewString(),
		WorkflowID:      wf.ID,
		Name:            req.Name,
		StepType:        req.StepType,
		Position:        req.Position,
		Configuration:   req.Configuration,
		ExecutionStatus: schema.StepStatusPending,
		DependsOn:       req.DependsOn,
		Condition:       req.Condition,
		IsRequired:      required,
		TimeoutSeconds:  req.TimeoutSeconds,
	}

	existing, err := e.store.ListSteps(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	if err := ValidateDependencies(append(existing, step)); err != nil {
		return nil, err
	}

	if err := e.store.CreateStep(ctx, step); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "create step").WithCause(err)
	}
	return step, nil
}

// UpdateStep modifies a step that has not run (or ran and failed). Changes to
// dependencies re-validate the whole graph.
func (e *Engine) UpdateStep(ctx context.Context, workflowID, stepID, userID string, update store.StepUpdate) (*store.WorkflowStep, error) {
	wf, err := e.ownedEditableWorkflow(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}

	step, err := e.store.GetStep(ctx, workflowID, stepID)
	if err != nil {
		return nil, err
	}
	if step.ExecutionStatus != schema.StepStatusPending && step.ExecutionStatus != schema.StepStatusFailed {
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"step %q is %s and cannot be modified", stepID, step.ExecutionStatus).WithStep(stepID)
	}

	if update.Configuration != nil {
		analyzer, err := e.registry.Get(step.StepType)
		if err != nil {
			return nil, err
		}
		if err := e.validator.Validate(analyzer, update.Configuration); err != nil {
			return nil, err
		}
	}
	if update.Condition != nil && *update.Condition != "" {
		if _, err := e.conditions.getOrCompile(*update.Condition); err != nil {
			return nil, err
		}
	}
	if update.DependsOn != nil {
		steps, err := e.store.ListSteps(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range steps {
			if s.ID == stepID {
				s.DependsOn = update.DependsOn
			}
		}
		if err := ValidateDependencies(steps); err != nil {
			return nil, err
		}
	}
	// Status changes go through execution paths, never direct updates.
	update.Status = nil

	if err := e.store.UpdateStep(ctx, stepID, update); err != nil {
		return nil, err
	}
	return e.store.GetStep(ctx, workflowID, stepID)
}

// DeleteStep removes a step that has not run (or ran and failed). Steps that
// others depend on must be detached first.
func (e *Engine) DeleteStep(ctx context.Context, workflowID, stepID, userID string) error {
	wf, err := e.ownedEditableWorkflow(ctx, workflowID, userID)
	if err != nil {
		return err
	}

	step, err := e.store.GetStep(ctx, workflowID, stepID)
	if err != nil {
		return err
	}
	if step.ExecutionStatus != schema.StepStatusPending && step.ExecutionStatus != schema.StepStatusFailed {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"step %q is %s and cannot be deleted", stepID, step.ExecutionStatus).WithStep(stepID)
	}

	steps, err := e.store.ListSteps(ctx, wf.ID)
	if err != nil {
		return err
	}
	if deps := Dependents(steps, stepID); len(deps) > 0 {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"step %q has dependent steps and cannot be deleted", stepID).
			WithStep(stepID).
			WithDetails(map[string]any{"dependents": deps})
	}

	return e.store.DeleteStep(ctx, stepID)
}

// ResetWorkflow returns a terminal workflow to active and all of its steps to
// pending so it can run again. A workflow with a live execution cannot be
// reset.
func (e *Engine) ResetWorkflow(ctx context.Context, workflowID, userID string) error {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.UserID != userID {
		return schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot reset workflow %q", userID, workflowID)
	}
	if _, live := e.executions.LiveByWorkflow(workflowID); live {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q has a running execution", workflowID)
	}
	if wf.Status == schema.WorkflowStatusArchived {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q is archived", workflowID)
	}

	steps, err := e.store.ListSteps(ctx, workflowID)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if s.ExecutionStatus == schema.StepStatusPending {
			continue
		}
		if err := e.store.SaveStepStatus(ctx, s.ID, schema.StepStatusPending, ""); err != nil {
			return err
		}
	}
	if err := e.store.SaveWorkflowStatus(ctx, workflowID, schema.WorkflowStatusActive); err != nil {
		return err
	}

	e.appendEvent(ctx, &store.Event{
		WorkflowID: workflowID,
		Type:       schema.EventWorkflowReset,
	})
	e.logger.Info("workflow reset", slog.String("workflow_id", workflowID))
	return nil
}

// ArchiveWorkflow retires a workflow. Archived workflows cannot run or be
// edited.
func (e *Engine) ArchiveWorkflow(ctx context.Context, workflowID, userID string) error {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.UserID != userID {
		return schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot archive workflow %q", userID, workflowID)
	}
	if _, live := e.executions.LiveByWorkflow(workflowID); live {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q has a running execution", workflowID)
	}

	if err := e.wfFSM.Transition(ctx, workflowID, wf.Status, schema.WorkflowStatusArchived); err != nil {
		return err
	}
	return e.store.SaveWorkflowStatus(ctx, workflowID, schema.WorkflowStatusArchived)
}

// GetEvents returns the workflow's audit log after the given sequence number.
func (e *Engine) GetEvents(ctx context.Context, workflowID, userID string, since int64) ([]*store.Event, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.UserID != userID && !wf.Public {
		return nil, schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot view workflow %q", userID, workflowID)
	}
	return e.store.GetEvents(ctx, workflowID, since)
}

// ownedEditableWorkflow loads a workflow and checks the caller owns it and
// that it is in an editable state. Draft, active, and failed workflows are
// editable; failed stays open so a broken step can be repaired before the
// reset that re-arms the run. Per-step gates still apply on top.
func (e *Engine) ownedEditableWorkflow(ctx context.Context, workflowID, userID string) (*store.Workflow, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.UserID != userID {
		return nil, schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot modify workflow %q", userID, workflowID)
	}
	switch wf.Status {
	case schema.WorkflowStatusDraft, schema.WorkflowStatusActive, schema.WorkflowStatusFailed:
		return wf, nil
	case schema.WorkflowStatusInProgress:
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q is executing and cannot be modified", workflowID)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q is %s and cannot be modified", workflowID, wf.Status)
	}
}
