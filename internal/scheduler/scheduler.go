package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// Starter is the interface the scheduler uses to kick off workflow
// executions on behalf of the schedule's owner. Satisfied by a thin adapter
// over the engine (avoids an import cycle).
type Starter interface {
	StartExecution(ctx context.Context, workflowID, userID string) error
}

// StarterFunc adapts a function to the Starter interface.
type StarterFunc func(ctx context.Context, workflowID, userID string) error

func (f StarterFunc) StartExecution(ctx context.Context, workflowID, userID string) error {
	return f(ctx, workflowID, userID)
}

// Scheduler polls the store for due scheduled runs and starts their
// workflows.
type Scheduler struct {
	store   store.Store
	starter Starter
	parser  cron.Parser
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // schedule IDs currently firing (dedup)
}

// New creates a Scheduler.
func New(s store.Store, starter Starter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		starter:  starter,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Schedule registers a recurring run for a workflow and computes its first
// fire time.
func (s *Scheduler) Schedule(ctx context.Context, workflowID, userID, cronExpr string) (*store.ScheduledRun, error) {
	next, err := s.CalculateNextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid cron expression %q", cronExpr).WithCause(err)
	}

	run := &store.ScheduledRun{
		ID:             uuid.NewString(),
		WorkflowID:     workflowID,
		UserID:         userID,
		CronExpression: cronExpr,
		Enabled:        true,
		NextRunAt:      &next,
	}
	if err := s.store.CreateScheduledRun(ctx, run); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "create scheduled run").WithCause(err)
	}
	return run, nil
}

// Unschedule removes a scheduled run.
func (s *Scheduler) Unschedule(ctx context.Context, scheduleID, userID string) error {
	run, err := s.store.GetScheduledRun(ctx, scheduleID)
	if err != nil {
		return err
	}
	if run.UserID != userID {
		return schema.NewErrorf(schema.ErrCodePermission,
			"user %q cannot delete schedule %q", userID, scheduleID)
	}
	return s.store.DeleteScheduledRun(ctx, scheduleID)
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires all enabled schedules that are due.
func (s *Scheduler) tick(ctx context.Context) {
	enabled := true
	runs, err := s.store.ListScheduledRuns(ctx, store.ScheduledRunFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("failed to list scheduled runs", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, run := range runs {
		if run.NextRunAt == nil || !run.NextRunAt.After(now) {
			if !s.tryAcquire(run.ID) {
				continue // already firing (dedup)
			}
			if err := s.fire(ctx, run, now); err != nil {
				s.logger.Error("failed to fire scheduled run",
					slog.String("schedule_id", run.ID),
					slog.String("workflow_id", run.WorkflowID),
					slog.String("error", err.Error()),
				)
			}
			s.release(run.ID)
		}
	}
}

// fire starts the workflow and updates the schedule's timestamps.
func (s *Scheduler) fire(ctx context.Context, run *store.ScheduledRun, now time.Time) error {
	s.logger.Info("firing scheduled run",
		slog.String("schedule_id", run.ID),
		slog.String("workflow_id", run.WorkflowID),
	)

	err := s.starter.StartExecution(ctx, run.WorkflowID, run.UserID)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error("scheduled execution failed to start",
			slog.String("schedule_id", run.ID),
			slog.String("workflow_id", run.WorkflowID),
			slog.String("error", err.Error()),
		)
	} else {
		s.appendFiredEvent(ctx, run)
	}

	return s.updateRunStatus(ctx, run, now, status)
}

func (s *Scheduler) appendFiredEvent(ctx context.Context, run *store.ScheduledRun) {
	event := &store.Event{
		WorkflowID: run.WorkflowID,
		Type:       schema.EventScheduledRunFired,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.Error("append scheduled run event",
			slog.String("schedule_id", run.ID),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) updateRunStatus(ctx context.Context, run *store.ScheduledRun, now time.Time, status string) error {
	nextRun, err := s.CalculateNextRun(run.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for schedule %q: %w", run.ID, err)
	}

	return s.store.UpdateScheduledRun(ctx, run.ID, store.ScheduledRunUpdate{
		LastRunAt:     &now,
		NextRunAt:     &nextRun,
		LastRunStatus: status,
	})
}

// tryAcquire marks the schedule in-flight; false when it already is.
func (s *Scheduler) tryAcquire(scheduleID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[scheduleID]; ok {
		return false
	}
	s.inflight[scheduleID] = struct{}{}
	return true
}

// release removes the schedule from the in-flight set.
func (s *Scheduler) release(scheduleID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, scheduleID)
}

// CalculateNextRun computes the next fire time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

// RecoverMissed fires schedules whose next_run_at passed while the process
// was down, once each.
func (s *Scheduler) RecoverMissed(ctx context.Context) error {
	enabled := true
	runs, err := s.store.ListScheduledRuns(ctx, store.ScheduledRunFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("list missed runs: %w", err)
	}

	now := time.Now().UTC()
	recovered := 0
	for _, run := range runs {
		if run.NextRunAt != nil && run.NextRunAt.Before(now) {
			if !s.tryAcquire(run.ID) {
				continue
			}
			if err := s.fire(ctx, run, now); err != nil {
				s.logger.Error("failed to recover missed run",
					slog.String("schedule_id", run.ID),
					slog.String("error", err.Error()),
				)
				s.release(run.ID)
				continue
			}
			s.release(run.ID)
			recovered++
		}
	}

	if recovered > 0 {
		s.logger.Info("recovered missed runs", slog.Int("count", recovered))
	}
	return nil
}
