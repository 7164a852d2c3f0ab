package engine

import (
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// DeriveWorkflowStatus folds step statuses into a workflow-level status.
// Rules, in order:
//
//	any required step failed                           -> failed
//	any step cancelled                                 -> cancelled
//	any step in progress                               -> in_progress
//	every step completed, skipped, or failed-optional  -> completed
//
// The second return value is false when no rule applies yet (pending steps
// remain), meaning the workflow status should be left unchanged. A failed
// optional step counts as settled: it is recorded on the step and the run
// completes around it.
func DeriveWorkflowStatus(steps []*store.WorkflowStep) (schema.WorkflowStatus, bool) {
	if len(steps) == 0 {
		return "", false
	}

	var anyCancelled, anyInProgress, anyPending bool
	for _, s := range steps {
		switch s.ExecutionStatus {
		case schema.StepStatusFailed:
			if s.IsRequired {
				return schema.WorkflowStatusFailed, true
			}
		case schema.StepStatusCancelled:
			anyCancelled = true
		case schema.StepStatusInProgress:
			anyInProgress = true
		case schema.StepStatusCompleted, schema.StepStatusSkipped:
		default:
			anyPending = true
		}
	}

	switch {
	case anyCancelled:
		return schema.WorkflowStatusCancelled, true
	case anyInProgress:
		return schema.WorkflowStatusInProgress, true
	case anyPending:
		return "", false
	}
	return schema.WorkflowStatusCompleted, true
}

// deriveRunStatus applies the aggregator to the steps a run covers, overlaying
// the execution's in-memory statuses onto the persisted rows. Steps before the
// start index are outside the run and do not participate in the fold. Callers
// must hold the execution lock.
func deriveRunStatus(steps []*store.WorkflowStep, startFrom int, exec *Execution) (schema.WorkflowStatus, bool) {
	if startFrom < 0 || startFrom > len(steps) {
		return "", false
	}
	scope := make([]*store.WorkflowStep, 0, len(steps)-startFrom)
	for _, s := range steps[startFrom:] {
		cp := *s
		if st, ok := exec.stepStatuses[s.ID]; ok && st != "" {
			cp.ExecutionStatus = st
		}
		scope = append(scope, &cp)
	}
	return DeriveWorkflowStatus(scope)
}

// CountStepOutcomes tallies completed and failed steps for run summaries.
func CountStepOutcomes(steps []*store.WorkflowStep) (completed, failed int) {
	for _, s := range steps {
		switch s.ExecutionStatus {
		case schema.StepStatusCompleted:
			completed++
		case schema.StepStatusFailed:
			failed++
		}
	}
	return completed, failed
}
