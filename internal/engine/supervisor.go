package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// DefaultSupervisorInterval is how often live executions are scanned for
// overdue steps.
const DefaultSupervisorInterval = 5 * time.Second

// TimeoutSupervisor periodically scans live executions and force-fails steps
// that have exceeded their timeout budget. A timed-out required step ends the
// whole execution.
type TimeoutSupervisor struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewTimeoutSupervisor creates a supervisor for the engine's live executions.
func NewTimeoutSupervisor(engine *Engine, interval time.Duration) *TimeoutSupervisor {
	if interval <= 0 {
		interval = DefaultSupervisorInterval
	}
	return &TimeoutSupervisor{engine: engine, interval: interval}
}

// Start launches the scan loop. Calling Start on a running supervisor is a
// no-op.
func (s *TimeoutSupervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx)
}

// Stop halts the scan loop and waits for the in-flight scan to finish.
func (s *TimeoutSupervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *TimeoutSupervisor) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan force-fails any overdue current step across live executions.
func (s *TimeoutSupervisor) scan(ctx context.Context) {
	now := time.Now().UTC()
	for _, exec := range s.engine.executions.Live() {
		exec.lock()
		stepID, overdue := exec.currentStepOverdue(now)
		if !overdue {
			exec.unlock()
			continue
		}

		// Capture before endStep clears them.
		cancelStep := exec.cancelStep
		required := exec.currentStepRequired

		exec.endStep(stepID, schema.StepStatusFailed, TimeoutMessage, nil)
		if cancelStep != nil {
			cancelStep()
		}
		finished := false
		if required {
			exec.finish(schema.WorkflowStatusFailed, TimeoutMessage)
			finished = true
		}
		exec.unlock()

		s.engine.logger.Warn("step timed out",
			slog.String("workflow_id", exec.WorkflowID),
			slog.String("execution_id", exec.ID),
			slog.String("step_id", stepID),
			slog.Bool("required", required))

		s.engine.persistStepTransition(ctx, exec, stepID,
			schema.StepStatusInProgress, schema.StepStatusFailed, TimeoutMessage)
		s.engine.appendEvent(ctx, &store.Event{
			WorkflowID: exec.WorkflowID,
			StepID:     stepID,
			Type:       schema.EventStepTimedOut,
		})

		if finished {
			s.engine.persistWorkflowTerminal(ctx, exec, schema.WorkflowStatusFailed)
			s.engine.finalize(exec)
		}
	}
}
