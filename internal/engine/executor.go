package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statflow/statflow/internal/analysis"
	"github.com/statflow/statflow/internal/logging"
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// User-visible error messages recorded on steps and runs.
const (
	TimeoutMessage  = "execution timed out"
	CancelMessage   = "cancelled by user"
	RestartMessage  = "interrupted by process restart"
	SkipReasonGuard = "run condition evaluated to false"
)

// Config holds the engine's tunables.
type Config struct {
	// PoolSize caps concurrent workflow executions. Defaults to DefaultPoolSize.
	PoolSize int
	// HistorySize bounds the in-memory finished-execution ring. Defaults to
	// DefaultHistorySize.
	HistorySize int
	// SupervisorInterval is how often the timeout supervisor scans live
	// executions. Defaults to DefaultSupervisorInterval.
	SupervisorInterval time.Duration
}

// Engine executes workflows: it validates them, walks their steps in order on
// a bounded worker pool, supervises timeouts, and maintains execution history.
type Engine struct {
	cfg        Config
	store      store.Store
	registry   *analysis.Registry
	validator  *analysis.ConfigValidator
	executions *ExecutionStore
	pool       *WorkerPool
	runner     *StepRunner
	conditions *ConditionEvaluator
	wfFSM      *WorkflowFSM
	stepFSM    *StepFSM
	supervisor *TimeoutSupervisor
	logger     *slog.Logger

	mu         sync.Mutex
	baseCtx    context.Context
	baseCancel context.CancelFunc
	started    bool
}

// New creates an Engine wired to the given store, analyzer registry, and
// dataset provider.
func New(cfg Config, st store.Store, registry *analysis.Registry, datasets analysis.Provider, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conditions, err := NewConditionEvaluator()
	if err != nil {
		return nil, err
	}

	validator := analysis.NewConfigValidator()
	e := &Engine{
		cfg:        cfg,
		store:      st,
		registry:   registry,
		validator:  validator,
		executions: NewExecutionStore(cfg.HistorySize),
		pool:       NewWorkerPool(cfg.PoolSize),
		runner:     NewStepRunner(registry, validator, datasets, logger),
		conditions: conditions,
		wfFSM:      NewWorkflowFSM(st),
		stepFSM:    NewStepFSM(st),
		logger:     logger,
	}
	e.supervisor = NewTimeoutSupervisor(e, cfg.SupervisorInterval)
	return e, nil
}

// Start recovers executions interrupted by a previous shutdown and starts the
// timeout supervisor. It must be called once before StartExecution.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.baseCtx, e.baseCancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	if err := e.recoverInterrupted(ctx); err != nil {
		return err
	}
	e.supervisor.Start(e.baseCtx)
	return nil
}

// Stop shuts the engine down: no new executions are accepted, running steps
// are cancelled, and the supervisor and pool drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.baseCancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.supervisor.Stop()
	e.pool.Shutdown()
}

// PoolMetrics exposes worker pool counters for diagnostics.
func (e *Engine) PoolMetrics() PoolMetrics { return e.pool.Metrics() }

// recoverInterrupted marks workflows that were mid-execution when the process
// died as failed, so their state is not stuck at in_progress forever.
func (e *Engine) recoverInterrupted(ctx context.Context) error {
	status := schema.WorkflowStatusInProgress
	workflows, err := e.store.ListWorkflows(ctx, store.WorkflowFilter{Status: &status})
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		steps, err := e.store.ListSteps(ctx, wf.ID)
		if err != nil {
			e.logger.Error("recovery: list steps", slog.String("workflow_id", wf.ID), slog.Any("error", err))
			continue
		}
		var completed, failed int
		for _, s := range steps {
			if s.ExecutionStatus == schema.StepStatusInProgress {
				if err := e.store.SaveStepStatus(ctx, s.ID, schema.StepStatusFailed, RestartMessage); err != nil {
					e.logger.Error("recovery: fail step", slog.String("step_id", s.ID), slog.Any("error", err))
				}
				failed++
				continue
			}
			c, f := CountStepOutcomes([]*store.WorkflowStep{s})
			completed += c
			failed += f
		}
		if err := e.store.SaveWorkflowStatus(ctx, wf.ID, schema.WorkflowStatusFailed); err != nil {
			e.logger.Error("recovery: fail workflow", slog.String("workflow_id", wf.ID), slog.Any("error", err))
			continue
		}

		payload, _ := json.Marshal(map[string]any{"reason": RestartMessage})
		e.appendEvent(ctx, &store.Event{
			WorkflowID: wf.ID,
			Type:       schema.EventExecutionRecovered,
			Payload:    payload,
		})

		run := &store.WorkflowRun{
			ID:             uuid.NewString(),
			WorkflowID:     wf.ID,
			WorkflowName:   wf.Name,
			UserID:         wf.UserID,
			Status:         schema.WorkflowStatusFailed,
			StartedAt:      wf.UpdatedAt,
			EndedAt:        time.Now().UTC(),
			TotalSteps:     len(steps),
			CompletedSteps: completed,
			FailedSteps:    failed,
			Error:          RestartMessage,
		}
		if err := e.store.CreateRun(ctx, run); err != nil {
			e.logger.Error("recovery: record run", slog.String("workflow_id", wf.ID), slog.Any("error", err))
		}

		e.logger.Warn("recovered interrupted execution",
			slog.String("workflow_id", wf.ID),
			slog.Int("steps", len(steps)))
	}
	return nil
}

// StartExecution validates the workflow and begins running it asynchronously
// on the worker pool. It returns the initial execution snapshot; progress is
// observed through GetExecutionStatus.
func (e *Engine) StartExecution(ctx context.Context, workflowID, userID string) (*ExecutionRecord, error) {
	return e.StartExecutionFrom(ctx, workflowID, userID, 0)
}

// StartExecutionFrom is StartExecution beginning at the step with the given
// index in position order. Steps before the index are left untouched.
func (e *Engine) StartExecutionFrom(ctx context.Context, workflowID, userID string, startFrom int) (*ExecutionRecord, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, schema.NewError(schema.ErrCodeExecution, "engine is not running")
	}
	baseCtx := e.baseCtx
	e.mu.Unlock()

	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.UserID != userID && !wf.Public {
		return nil, schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot execute workflow %q", userID, workflowID)
	}

	// Validation before state conflicts: a malformed request is reported as
	// such even when the workflow also happens to be busy or terminal.
	steps, err := e.store.ListSteps(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q has no steps", workflowID)
	}
	if startFrom < 0 || startFrom >= len(steps) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"start index %d out of range [0, %d)", startFrom, len(steps))
	}
	for _, s := range steps {
		if !schema.ValidStepType(s.StepType) {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"step %q has unknown type %q", s.ID, s.StepType).WithStep(s.ID)
		}
	}
	if err := ValidateDependencies(steps); err != nil {
		return nil, err
	}

	if wf.Status == schema.WorkflowStatusInProgress {
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q is already executing", workflowID)
	}
	if schema.TerminalWorkflowStatus(wf.Status) {
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q is %s; reset it before running again", workflowID, wf.Status)
	}

	exec := NewExecution(uuid.NewString(), wf.ID, wf.Name, userID, len(steps))
	exec.seedSteps(steps, startFrom)
	if err := e.executions.Register(exec); err != nil {
		return nil, err
	}

	if err := e.wfFSM.Transition(ctx, wf.ID, wf.Status, schema.WorkflowStatusInProgress); err != nil {
		e.executions.Discard(exec)
		return nil, err
	}
	if err := e.store.SaveWorkflowStatus(ctx, wf.ID, schema.WorkflowStatusInProgress); err != nil {
		e.executions.Discard(exec)
		return nil, err
	}

	err = e.pool.Submit(baseCtx, func(ctx context.Context) error {
		e.traverse(ctx, exec, startFrom)
		return nil
	})
	if err != nil {
		e.executions.Discard(exec)
		if saveErr := e.store.SaveWorkflowStatus(ctx, wf.ID, schema.WorkflowStatusFailed); saveErr != nil {
			e.logger.Error("revert workflow status", slog.String("workflow_id", wf.ID), slog.Any("error", saveErr))
		}
		return nil, schema.NewError(schema.ErrCodeExecution, "engine is shutting down").WithCause(err)
	}

	e.logger.Info("execution started",
		slog.String("workflow_id", wf.ID),
		slog.String("execution_id", exec.ID),
		slog.Int("steps", len(steps)))

	return exec.Snapshot(), nil
}

// traverse walks the workflow's steps in order. Steps whose dependencies did
// not complete are skipped; a required-step failure aborts the rest.
func (e *Engine) traverse(ctx context.Context, exec *Execution, startFrom int) {
	wf, err := e.store.GetWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		e.abortExecution(ctx, exec, err.Error())
		return
	}
	steps, err := e.store.ListSteps(ctx, exec.WorkflowID)
	if err != nil {
		e.abortExecution(ctx, exec, err.Error())
		return
	}

	ctx = logging.WithWorkflowID(ctx, exec.WorkflowID)
	ctx = logging.WithExecutionID(ctx, exec.ID)
	ctx = logging.WithUserID(ctx, exec.UserID)

	for i, step := range steps {
		if i < startFrom {
			continue
		}
		exec.lock()
		if exec.terminal() {
			exec.unlock()
			e.finalize(exec)
			return
		}
		if schema.TerminalStepStatus(exec.stepStatus(step.ID)) {
			exec.unlock()
			continue
		}

		statuses := make(map[string]schema.StepStatus, len(exec.stepStatuses))
		for k, v := range exec.stepStatuses {
			statuses[k] = v
		}

		if !DependenciesSatisfied(step, statuses) {
			exec.endStep(step.ID, schema.StepStatusSkipped, SkipReasonDependencies, nil)
			exec.unlock()
			e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusPending, schema.StepStatusSkipped, SkipReasonDependencies)
			continue
		}

		if step.Condition != "" {
			pass, condErr := e.conditions.Evaluate(step.Condition, e.conditionScope(wf, exec))
			if condErr != nil {
				msg := condErr.Error()
				exec.endStep(step.ID, schema.StepStatusFailed, msg, nil)
				wfStatus, decided := deriveRunStatus(steps, startFrom, exec)
				aborted := decided && (wfStatus == schema.WorkflowStatusFailed || wfStatus == schema.WorkflowStatusCancelled)
				if aborted {
					exec.finish(wfStatus, msg)
				}
				exec.unlock()
				e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusPending, schema.StepStatusFailed, msg)
				if aborted {
					e.persistWorkflowTerminal(ctx, exec, wfStatus)
					e.finalize(exec)
					return
				}
				continue
			}
			if !pass {
				exec.endStep(step.ID, schema.StepStatusSkipped, SkipReasonGuard, nil)
				exec.unlock()
				e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusPending, schema.StepStatusSkipped, SkipReasonGuard)
				continue
			}
		}

		stepCtx, cancel := context.WithCancel(logging.WithStepID(ctx, step.ID))
		timeout := time.Duration(step.TimeoutSeconds) * time.Second
		if step.TimeoutSeconds <= 0 {
			timeout = schema.DefaultStepTimeoutSeconds * time.Second
		}
		exec.beginStep(step.ID, timeout, step.IsRequired, cancel)
		outcomes := make(map[string]any, len(exec.outcomes))
		for k, v := range exec.outcomes {
			outcomes[k] = v
		}
		exec.unlock()

		e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusPending, schema.StepStatusInProgress, "")

		out, runErr := e.runner.Run(stepCtx, wf, step, outcomes)
		cancel()

		exec.lock()
		if exec.stepStatus(step.ID) != schema.StepStatusInProgress {
			// The supervisor or a cancel already settled this step; adopt its
			// decision instead of overwriting it.
			terminal := exec.terminal()
			exec.unlock()
			if terminal {
				e.finalize(exec)
				return
			}
			continue
		}

		if runErr == nil {
			outcome := map[string]any{"summary": out.Summary, "result": out.Result}
			exec.endStep(step.ID, schema.StepStatusCompleted, "", outcome)
			exec.unlock()
			e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusInProgress, schema.StepStatusCompleted, "")
			continue
		}

		status := schema.StepStatusFailed
		msg := runErr.Error()
		if errors.Is(runErr, context.Canceled) {
			status = schema.StepStatusCancelled
			msg = CancelMessage
		}
		exec.endStep(step.ID, status, msg, nil)
		wfStatus, decided := deriveRunStatus(steps, startFrom, exec)
		aborted := decided && (wfStatus == schema.WorkflowStatusFailed || wfStatus == schema.WorkflowStatusCancelled)
		if aborted {
			exec.finish(wfStatus, msg)
		}
		exec.unlock()

		e.persistStepTransition(ctx, exec, step.ID, schema.StepStatusInProgress, status, msg)
		if aborted {
			e.persistWorkflowTerminal(ctx, exec, wfStatus)
			e.finalize(exec)
			return
		}
	}

	exec.lock()
	if exec.terminal() {
		exec.unlock()
		e.finalize(exec)
		return
	}
	// All in-scope steps have settled; the aggregator folds them into the
	// run's terminal status. Required failures already returned above, so
	// this is completed unless a step ended cancelled under our feet.
	final, decided := deriveRunStatus(steps, startFrom, exec)
	if !decided || !schema.TerminalWorkflowStatus(final) {
		final = schema.WorkflowStatusCompleted
	}
	exec.finish(final, "")
	exec.unlock()

	e.persistWorkflowTerminal(ctx, exec, final)
	e.finalize(exec)
}

// conditionScope builds the CEL variable scope for a step's run condition.
// Callers must hold the execution lock.
func (e *Engine) conditionScope(wf *store.Workflow, exec *Execution) map[string]any {
	outcomes := make(map[string]any, len(exec.outcomes))
	for k, v := range exec.outcomes {
		outcomes[k] = v
	}
	metadata := map[string]any{}
	if len(wf.Metadata) > 0 {
		_ = json.Unmarshal(wf.Metadata, &metadata)
	}
	return map[string]any{
		"steps": outcomes,
		"workflow": map[string]any{
			"id":         wf.ID,
			"name":       wf.Name,
			"dataset_id": wf.DatasetID,
		},
		"metadata": metadata,
	}
}

// abortExecution fails an execution that could not even begin traversal.
func (e *Engine) abortExecution(ctx context.Context, exec *Execution, msg string) {
	exec.lock()
	if !exec.terminal() {
		exec.finish(schema.WorkflowStatusFailed, msg)
	}
	exec.unlock()
	e.persistWorkflowTerminal(ctx, exec, schema.WorkflowStatusFailed)
	e.finalize(exec)
}

// persistStepTransition records a step status change in the store and runs it
// through the step FSM so the matching event lands in the audit log. Errors
// are logged, not propagated: in-memory state is authoritative mid-run.
func (e *Engine) persistStepTransition(ctx context.Context, exec *Execution, stepID string, from, to schema.StepStatus, errMsg string) {
	if err := e.stepFSM.Transition(ctx, exec.WorkflowID, stepID, from, to); err != nil {
		e.logger.Error("step transition",
			slog.String("workflow_id", exec.WorkflowID),
			slog.String("step_id", stepID),
			slog.Any("error", err))
	}
	if err := e.store.SaveStepStatus(ctx, stepID, to, errMsg); err != nil {
		e.logger.Error("persist step status",
			slog.String("workflow_id", exec.WorkflowID),
			slog.String("step_id", stepID),
			slog.Any("error", err))
	}
}

// persistWorkflowTerminal records the workflow's terminal status and its event.
func (e *Engine) persistWorkflowTerminal(ctx context.Context, exec *Execution, to schema.WorkflowStatus) {
	if err := e.wfFSM.Transition(ctx, exec.WorkflowID, schema.WorkflowStatusInProgress, to); err != nil {
		e.logger.Error("workflow transition",
			slog.String("workflow_id", exec.WorkflowID),
			slog.Any("error", err))
	}
	if err := e.store.SaveWorkflowStatus(ctx, exec.WorkflowID, to); err != nil {
		e.logger.Error("persist workflow status",
			slog.String("workflow_id", exec.WorkflowID),
			slog.Any("error", err))
	}
}

// finalize moves the execution into in-memory history and writes its durable
// run record. Exactly one caller wins; the rest are no-ops.
func (e *Engine) finalize(exec *Execution) {
	if !e.executions.Finalize(exec) {
		return
	}
	rec, ok := e.executions.FromHistory(exec.ID)
	if !ok {
		rec = exec.Snapshot()
	}

	run := &store.WorkflowRun{
		ID:             rec.ID,
		WorkflowID:     rec.WorkflowID,
		WorkflowName:   rec.WorkflowName,
		UserID:         rec.UserID,
		Status:         rec.Status,
		StartedAt:      rec.StartedAt,
		EndedAt:        rec.EndedAt,
		TotalSteps:     rec.TotalSteps,
		CompletedSteps: rec.CompletedSteps,
		FailedSteps:    rec.FailedSteps,
		Error:          rec.Error,
	}
	ctx, cancelWrite := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWrite()
	if err := e.store.CreateRun(ctx, run); err != nil {
		e.logger.Error("record run",
			slog.String("execution_id", rec.ID),
			slog.String("workflow_id", rec.WorkflowID),
			slog.Any("error", err))
	}

	e.logger.Info("execution finished",
		slog.String("workflow_id", rec.WorkflowID),
		slog.String("execution_id", rec.ID),
		slog.String("status", string(rec.Status)),
		slog.Int("completed_steps", rec.CompletedSteps),
		slog.Int("failed_steps", rec.FailedSteps))
}

// CancelExecution cooperatively cancels a live execution by execution ID or
// workflow ID. Only the user who started the run or the workflow owner may
// cancel. The running step is marked cancelled, remaining pending steps are
// cancelled, and the workflow ends as cancelled.
func (e *Engine) CancelExecution(ctx context.Context, id, userID string) error {
	exec, ok := e.executions.LiveByID(id)
	if !ok {
		exec, ok = e.executions.LiveByWorkflow(id)
	}
	if !ok {
		if _, found := e.executions.FromHistory(id); found {
			return schema.NewErrorf(schema.ErrCodeConflict, "execution %q has already finished", id)
		}
		return schema.NewErrorf(schema.ErrCodeNotFound, "no running execution for %q", id)
	}

	if exec.UserID != userID {
		wf, err := e.store.GetWorkflow(ctx, exec.WorkflowID)
		if err != nil || wf.UserID != userID {
			return schema.NewErrorf(schema.ErrCodePermission,
				"user %q cannot cancel execution %q", userID, exec.ID)
		}
	}

	exec.lock()
	if exec.terminal() {
		exec.unlock()
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %q has already finished", exec.ID)
	}

	type stepChange struct {
		id   string
		from schema.StepStatus
	}
	var changes []stepChange

	if cur := exec.currentStepID; cur != "" {
		exec.endStep(cur, schema.StepStatusCancelled, CancelMessage, nil)
		changes = append(changes, stepChange{cur, schema.StepStatusInProgress})
	}
	for stepID, status := range exec.stepStatuses {
		if status == schema.StepStatusPending {
			exec.stepStatuses[stepID] = schema.StepStatusCancelled
			changes = append(changes, stepChange{stepID, schema.StepStatusPending})
		}
	}
	exec.finish(schema.WorkflowStatusCancelled, CancelMessage)
	exec.unlock()

	for _, c := range changes {
		e.persistStepTransition(ctx, exec, c.id, c.from, schema.StepStatusCancelled, CancelMessage)
	}
	e.persistWorkflowTerminal(ctx, exec, schema.WorkflowStatusCancelled)
	e.finalize(exec)

	e.logger.Info("execution cancelled",
		slog.String("workflow_id", exec.WorkflowID),
		slog.String("execution_id", exec.ID))
	return nil
}

// StatusSnapshot is the answer to a status query, with Source saying where
// the answer came from: "live", "history", "store", or "not_found".
type StatusSnapshot struct {
	Source string           `json:"source"`
	Record *ExecutionRecord `json:"record,omitempty"`
}

// GetExecutionStatus resolves an execution by execution ID or workflow ID,
// falling back from live state to in-memory history to the durable run table.
// It never errors; an unknown ID yields a not_found snapshot.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID string) *StatusSnapshot {
	if exec, ok := e.executions.LiveByID(executionID); ok {
		return &StatusSnapshot{Source: "live", Record: exec.Snapshot()}
	}
	if exec, ok := e.executions.LiveByWorkflow(executionID); ok {
		return &StatusSnapshot{Source: "live", Record: exec.Snapshot()}
	}
	if rec, ok := e.executions.FromHistory(executionID); ok {
		return &StatusSnapshot{Source: "history", Record: rec}
	}
	if run, err := e.store.GetRun(ctx, executionID); err == nil {
		return &StatusSnapshot{Source: "store", Record: recordFromRun(run)}
	}
	// The ID may be a workflow ID whose runs predate this process; the newest
	// persisted run for it answers the query.
	if runs, err := e.store.ListRuns(ctx, store.RunFilter{WorkflowID: executionID, Limit: 1}); err == nil && len(runs) > 0 {
		return &StatusSnapshot{Source: "store", Record: recordFromRun(runs[0])}
	}
	return &StatusSnapshot{Source: "not_found"}
}

// GetExecutionHistory lists finished executions for a user, newest first.
// In-memory records come first; the durable run table fills the remainder
// after restarts or history eviction.
func (e *Engine) GetExecutionHistory(ctx context.Context, userID string, limit int) ([]*ExecutionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}

	var out []*ExecutionRecord
	seen := make(map[string]bool)
	for _, rec := range e.executions.History(0) {
		if userID != "" && rec.UserID != userID {
			continue
		}
		out = append(out, rec)
		seen[rec.ID] = true
		if len(out) >= limit {
			return out, nil
		}
	}

	runs, err := e.store.ListRuns(ctx, store.RunFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if seen[run.ID] {
			continue
		}
		out = append(out, recordFromRun(run))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func recordFromRun(run *store.WorkflowRun) *ExecutionRecord {
	return &ExecutionRecord{
		ID:             run.ID,
		WorkflowID:     run.WorkflowID,
		WorkflowName:   run.WorkflowName,
		UserID:         run.UserID,
		Status:         run.Status,
		StartedAt:      run.StartedAt,
		EndedAt:        run.EndedAt,
		TotalSteps:     run.TotalSteps,
		CompletedSteps: run.CompletedSteps,
		FailedSteps:    run.FailedSteps,
		Error:          run.Error,
	}
}

// appendEvent writes an audit event, logging failures instead of surfacing
// them.
func (e *Engine) appendEvent(ctx context.Context, event *store.Event) {
	if err := e.store.AppendEvent(ctx, event); err != nil {
		e.logger.Error("append event",
			slog.String("workflow_id", event.WorkflowID),
			slog.String("event_type", event.Type),
			slog.Any("error", err))
	}
}
