package store

import (
	"encoding/json"
	"time"

	"github.com/statflow/statflow/pkg/schema"
)

// Workflow is the persisted representation of a user's analysis workflow.
type Workflow struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	UserID      string                `json:"user_id"`
	DatasetID   string                `json:"dataset_id,omitempty"`
	Status      schema.WorkflowStatus `json:"status"`
	Public      bool                  `json:"is_public"`
	Metadata    json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// WorkflowStep is one persisted unit of work within a workflow. Steps execute
// in ascending Position; ties break by insertion order.
type WorkflowStep struct {
	ID              string            `json:"id"`
	WorkflowID      string            `json:"workflow_id"`
	Name            string            `json:"name"`
	StepType        schema.StepType   `json:"step_type"`
	Position        int               `json:"position"`
	Configuration   json.RawMessage   `json:"configuration,omitempty"`
	ExecutionStatus schema.StepStatus `json:"execution_status"`
	DependsOn       []string          `json:"depends_on,omitempty"`
	Condition       string            `json:"condition,omitempty"` // optional CEL run condition
	IsRequired      bool              `json:"is_required"`
	TimeoutSeconds  int               `json:"timeout_seconds"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// WorkflowRun is the durable record of one terminal execution, written when a
// live execution leaves memory. Backs the execution-history query across
// process restarts.
type WorkflowRun struct {
	ID             string                `json:"id"`
	WorkflowID     string                `json:"workflow_id"`
	WorkflowName   string                `json:"workflow_name"`
	UserID         string                `json:"user_id"`
	Status         schema.WorkflowStatus `json:"status"`
	StartedAt      time.Time             `json:"started_at"`
	EndedAt        time.Time             `json:"ended_at"`
	TotalSteps     int                   `json:"total_steps"`
	CompletedSteps int                   `json:"completed_steps"`
	FailedSteps    int                   `json:"failed_steps"`
	Error          string                `json:"error,omitempty"`
}

// Event is an immutable entry in the per-workflow audit log.
type Event struct {
	ID         int64           `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	StepID     string          `json:"step_id,omitempty"`
	Type       string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}

// ScheduledRun is a cron-triggered recurring execution of a workflow.
type ScheduledRun struct {
	ID             string     `json:"id"`
	WorkflowID     string     `json:"workflow_id"`
	UserID         string     `json:"user_id"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// --- Filter and update types ---

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Status *schema.WorkflowStatus `json:"status,omitempty"`
	UserID string                 `json:"user_id,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// WorkflowUpdate specifies mutable fields of a workflow.
type WorkflowUpdate struct {
	Name        *string                `json:"name,omitempty"`
	Status      *schema.WorkflowStatus `json:"status,omitempty"`
	DatasetID   *string                `json:"dataset_id,omitempty"`
	Metadata    json.RawMessage        `json:"metadata,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// StepUpdate specifies mutable fields of a workflow step.
type StepUpdate struct {
	Name           *string            `json:"name,omitempty"`
	Position       *int               `json:"position,omitempty"`
	Configuration  json.RawMessage    `json:"configuration,omitempty"`
	Status         *schema.StepStatus `json:"status,omitempty"`
	DependsOn      []string           `json:"depends_on,omitempty"`
	Condition      *string            `json:"condition,omitempty"`
	IsRequired     *bool              `json:"is_required,omitempty"`
	TimeoutSeconds *int               `json:"timeout_seconds,omitempty"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	Error          *string            `json:"error,omitempty"`
}

// RunFilter specifies criteria for listing terminal run records.
type RunFilter struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ScheduledRunUpdate specifies mutable fields of a scheduled run.
type ScheduledRunUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledRunFilter specifies criteria for listing scheduled runs.
type ScheduledRunFilter struct {
	Enabled *bool  `json:"enabled,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}
