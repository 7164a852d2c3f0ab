package schema

// Event type constants for the append-only workflow event log.
const (
	EventWorkflowStarted   = "workflow_started"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowFailed    = "workflow_failed"
	EventWorkflowCancelled = "workflow_cancelled"
	EventWorkflowArchived  = "workflow_archived"
	EventWorkflowReset     = "workflow_reset"

	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
	EventStepCancelled = "step_cancelled"
	EventStepTimedOut  = "step_timed_out"

	EventExecutionRecovered = "execution_recovered"
	EventScheduledRunFired  = "scheduled_run_fired"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft      WorkflowStatus = "draft"
	WorkflowStatusActive     WorkflowStatus = "active"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusCancelled  WorkflowStatus = "cancelled"
	WorkflowStatusArchived   WorkflowStatus = "archived"
)

// TerminalWorkflowStatus reports whether s is a run-terminal status. A
// terminal workflow cannot be executed again without an explicit reset.
func TerminalWorkflowStatus(s WorkflowStatus) bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled, WorkflowStatusArchived:
		return true
	}
	return false
}

// StepStatus represents the lifecycle state of a single step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
	StepStatusCancelled  StepStatus = "cancelled"
)

// TerminalStepStatus reports whether s is terminal for one execution run.
func TerminalStepStatus(s StepStatus) bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	}
	return false
}
