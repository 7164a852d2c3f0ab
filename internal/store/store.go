package store

import (
	"context"

	"github.com/statflow/statflow/pkg/schema"
)

// Store defines the persistence layer contract. The engine treats it as the
// source of truth for anything not currently live in the execution store.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflows
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// SaveWorkflowStatus is the narrow status-transition write used by the
	// scheduler and status aggregator.
	SaveWorkflowStatus(ctx context.Context, workflowID string, status schema.WorkflowStatus) error

	// Steps (ordered by position, insertion order breaking ties)
	CreateStep(ctx context.Context, step *WorkflowStep) error
	GetStep(ctx context.Context, workflowID, stepID string) (*WorkflowStep, error)
	UpdateStep(ctx context.Context, stepID string, update StepUpdate) error
	ListSteps(ctx context.Context, workflowID string) ([]*WorkflowStep, error)
	DeleteStep(ctx context.Context, stepID string) error

	// SaveStepStatus records a step status transition together with its error
	// message (empty clears it) and maintains started_at/completed_at.
	SaveStepStatus(ctx context.Context, stepID string, status schema.StepStatus, errMsg string) error

	// Terminal run history
	CreateRun(ctx context.Context, run *WorkflowRun) error
	GetRun(ctx context.Context, id string) (*WorkflowRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error)

	// Audit log (append-only, per-workflow monotonic sequence)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, workflowID string, since int64) ([]*Event, error)

	// Scheduled runs
	CreateScheduledRun(ctx context.Context, run *ScheduledRun) error
	GetScheduledRun(ctx context.Context, id string) (*ScheduledRun, error)
	UpdateScheduledRun(ctx context.Context, id string, update ScheduledRunUpdate) error
	ListScheduledRuns(ctx context.Context, filter ScheduledRunFilter) ([]*ScheduledRun, error)
	DeleteScheduledRun(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
