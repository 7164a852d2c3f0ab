package engine

import (
	"context"
	"sync"
	"time"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// DefaultHistorySize bounds how many finished executions stay in memory.
const DefaultHistorySize = 100

// Execution is the live in-memory state of one running workflow. Its mutex is
// the per-workflow lock: the traversal loop, the timeout supervisor, and
// cancellation all serialize on it, so only one of them ever decides a step's
// fate.
type Execution struct {
	ID           string
	WorkflowID   string
	WorkflowName string
	UserID       string
	TotalSteps   int
	StartedAt    time.Time

	mu      sync.Mutex
	status  schema.WorkflowStatus
	endedAt time.Time
	errMsg  string

	currentStepID       string
	currentStepStarted  time.Time
	currentStepTimeout  time.Duration
	currentStepRequired bool
	cancelStep          context.CancelFunc

	stepStatuses map[string]schema.StepStatus
	stepErrors   map[string]string
	outcomes     map[string]any
}

// NewExecution creates a live execution in the in_progress state.
func NewExecution(id, workflowID, workflowName, userID string, totalSteps int) *Execution {
	return &Execution{
		ID:           id,
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		UserID:       userID,
		TotalSteps:   totalSteps,
		StartedAt:    time.Now().UTC(),
		status:       schema.WorkflowStatusInProgress,
		stepStatuses: make(map[string]schema.StepStatus),
		stepErrors:   make(map[string]string),
		outcomes:     make(map[string]any),
	}
}

// seedSteps primes the status map before the execution is published. Steps in
// the run's scope start pending so cancellation can find the ones the
// traversal never reached; steps before the start index keep any terminal
// status a previous run persisted, which is what dependency checks across the
// start index read.
func (e *Execution) seedSteps(steps []*store.WorkflowStep, startFrom int) {
	for i, s := range steps {
		if i < startFrom {
			if schema.TerminalStepStatus(s.ExecutionStatus) {
				e.stepStatuses[s.ID] = s.ExecutionStatus
			}
			continue
		}
		e.stepStatuses[s.ID] = schema.StepStatusPending
	}
}

// lock and unlock expose the per-workflow lock to the executor and supervisor.
func (e *Execution) lock()   { e.mu.Lock() }
func (e *Execution) unlock() { e.mu.Unlock() }

// Callers of the methods below must hold the lock unless noted.

func (e *Execution) beginStep(stepID string, timeout time.Duration, required bool, cancel context.CancelFunc) {
	e.currentStepID = stepID
	e.currentStepStarted = time.Now().UTC()
	e.currentStepTimeout = timeout
	e.currentStepRequired = required
	e.cancelStep = cancel
	e.stepStatuses[stepID] = schema.StepStatusInProgress
}

func (e *Execution) endStep(stepID string, status schema.StepStatus, errMsg string, outcome any) {
	e.stepStatuses[stepID] = status
	if errMsg != "" {
		e.stepErrors[stepID] = errMsg
	}
	if outcome != nil {
		e.outcomes[stepID] = outcome
	}
	if e.currentStepID == stepID {
		e.currentStepID = ""
		e.cancelStep = nil
	}
}

func (e *Execution) stepStatus(stepID string) schema.StepStatus {
	return e.stepStatuses[stepID]
}

func (e *Execution) terminal() bool {
	return schema.TerminalWorkflowStatus(e.status)
}

func (e *Execution) finish(status schema.WorkflowStatus, errMsg string) {
	e.status = status
	e.errMsg = errMsg
	e.endedAt = time.Now().UTC()
	if e.cancelStep != nil {
		e.cancelStep()
		e.cancelStep = nil
	}
}

// currentStepOverdue reports whether the running step has exceeded its
// timeout as of now. False when no step is running.
func (e *Execution) currentStepOverdue(now time.Time) (string, bool) {
	if e.currentStepID == "" || e.currentStepTimeout <= 0 {
		return "", false
	}
	if now.Sub(e.currentStepStarted) > e.currentStepTimeout {
		return e.currentStepID, true
	}
	return "", false
}

// Snapshot returns a point-in-time copy of the execution state. Safe to call
// without holding the lock.
func (e *Execution) Snapshot() *ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Execution) snapshotLocked() *ExecutionRecord {
	statuses := make(map[string]schema.StepStatus, len(e.stepStatuses))
	for k, v := range e.stepStatuses {
		statuses[k] = v
	}
	errs := make(map[string]string, len(e.stepErrors))
	for k, v := range e.stepErrors {
		errs[k] = v
	}
	outs := make(map[string]any, len(e.outcomes))
	for k, v := range e.outcomes {
		outs[k] = v
	}

	var completed, failed int
	for _, s := range statuses {
		switch s {
		case schema.StepStatusCompleted:
			completed++
		case schema.StepStatusFailed:
			failed++
		}
	}

	return &ExecutionRecord{
		ID:             e.ID,
		WorkflowID:     e.WorkflowID,
		WorkflowName:   e.WorkflowName,
		UserID:         e.UserID,
		Status:         e.status,
		StartedAt:      e.StartedAt,
		EndedAt:        e.endedAt,
		TotalSteps:     e.TotalSteps,
		CompletedSteps: completed,
		FailedSteps:    failed,
		CurrentStepID:  e.currentStepID,
		Error:          e.errMsg,
		StepStatuses:   statuses,
		StepErrors:     errs,
		StepOutcomes:   outs,
	}
}

// ExecutionRecord is an immutable snapshot of an execution, live or finished.
type ExecutionRecord struct {
	ID             string                       `json:"id"`
	WorkflowID     string                       `json:"workflow_id"`
	WorkflowName   string                       `json:"workflow_name"`
	UserID         string                       `json:"user_id"`
	Status         schema.WorkflowStatus        `json:"status"`
	StartedAt      time.Time                    `json:"started_at"`
	EndedAt        time.Time                    `json:"ended_at,omitempty"`
	TotalSteps     int                          `json:"total_steps"`
	CompletedSteps int                          `json:"completed_steps"`
	FailedSteps    int                          `json:"failed_steps"`
	CurrentStepID  string                       `json:"current_step_id,omitempty"`
	Error          string                       `json:"error,omitempty"`
	StepStatuses   map[string]schema.StepStatus `json:"step_statuses,omitempty"`
	StepErrors     map[string]string            `json:"step_errors,omitempty"`
	StepOutcomes   map[string]any               `json:"step_outcomes,omitempty"`
}

// ExecutionStore tracks live executions (one per workflow) and a bounded
// in-memory history of finished ones, newest first. Safe for concurrent use.
type ExecutionStore struct {
	mu          sync.RWMutex
	byWorkflow  map[string]*Execution
	byID        map[string]*Execution
	history     []*ExecutionRecord
	historySize int
}

// NewExecutionStore creates an execution store keeping up to historySize
// finished records in memory.
func NewExecutionStore(historySize int) *ExecutionStore {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &ExecutionStore{
		byWorkflow:  make(map[string]*Execution),
		byID:        make(map[string]*Execution),
		historySize: historySize,
	}
}

// Register adds a live execution. Fails with a conflict when the workflow
// already has one running.
func (s *ExecutionStore) Register(e *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byWorkflow[e.WorkflowID]; ok {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"workflow %q already has a running execution %q", e.WorkflowID, existing.ID)
	}
	s.byWorkflow[e.WorkflowID] = e
	s.byID[e.ID] = e
	return nil
}

// LiveByWorkflow returns the live execution for a workflow, if any.
func (s *ExecutionStore) LiveByWorkflow(workflowID string) (*Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byWorkflow[workflowID]
	return e, ok
}

// LiveByID returns a live execution by execution ID.
func (s *ExecutionStore) LiveByID(executionID string) (*Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[executionID]
	return e, ok
}

// Live returns all live executions.
func (s *ExecutionStore) Live() []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Execution, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	return out
}

// Finalize moves an execution from the live set into the history ring. It is
// idempotent: the second caller gets false and the record is not duplicated.
// Callers must not hold the execution's lock; Finalize snapshots internally.
func (s *ExecutionStore) Finalize(e *Execution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; !ok {
		return false
	}
	delete(s.byID, e.ID)
	delete(s.byWorkflow, e.WorkflowID)

	s.history = append([]*ExecutionRecord{e.Snapshot()}, s.history...)
	if len(s.history) > s.historySize {
		s.history = s.history[:s.historySize]
	}
	return true
}

// Discard removes a live execution without recording history. Used to back
// out a registration that failed later in StartExecution.
func (s *ExecutionStore) Discard(e *Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, e.ID)
	delete(s.byWorkflow, e.WorkflowID)
}

// FromHistory returns a finished execution record by ID.
func (s *ExecutionStore) FromHistory(executionID string) (*ExecutionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.history {
		if r.ID == executionID {
			return r, true
		}
	}
	return nil, false
}

// History returns up to limit finished records, newest first. A limit of 0
// returns everything retained.
func (s *ExecutionStore) History(limit int) []*ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*ExecutionRecord, n)
	copy(out, s.history[:n])
	return out
}
