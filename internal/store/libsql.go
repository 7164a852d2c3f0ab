package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/statflow/statflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/statflow.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some return rows, so QueryRow is used.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Workflows ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, user_id, dataset_id, status, is_public, metadata, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.UserID, nullStr(wf.DatasetID), string(wf.Status), boolInt(wf.Public),
		nullRaw(wf.Metadata), timeOrNow(wf.CreatedAt), timeOrNow(wf.UpdatedAt), nullTime(wf.CompletedAt),
	)
	return err
}

const workflowColumns = `id, name, user_id, dataset_id, status, is_public, metadata, created_at, updated_at, completed_at`

func scanWorkflow(row interface{ Scan(...any) error }) (*Workflow, error) {
	wf := &Workflow{}
	var (
		datasetID, metadata sql.NullString
		status              string
		public              int
		completedAt         sql.NullTime
	)
	err := row.Scan(&wf.ID, &wf.Name, &wf.UserID, &datasetID, &status, &public,
		&metadata, &wf.CreatedAt, &wf.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	wf.DatasetID = datasetID.String
	wf.Status = schema.WorkflowStatus(status)
	wf.Public = public != 0
	wf.Metadata = rawOrNil(metadata)
	if completedAt.Valid {
		wf.CompletedAt = &completedAt.Time
	}
	return wf, nil
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *LibSQLStore) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.DatasetID != nil {
		sets = append(sets, "dataset_id = ?")
		args = append(args, nullStr(*update.DatasetID))
	}
	if update.Metadata != nil {
		sets = append(sets, "metadata = ?")
		args = append(args, string(update.Metadata))
	}
	if update.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *update.CompletedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE workflows SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

func (s *LibSQLStore) SaveWorkflowStatus(ctx context.Context, workflowID string, status schema.WorkflowStatus) error {
	var query string
	if schema.TerminalWorkflowStatus(status) {
		query = `UPDATE workflows SET status = ?, completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	} else {
		query = `UPDATE workflows SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, query, string(status), workflowID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", workflowID)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Steps ---

const stepColumns = `id, workflow_id, name, step_type, position, configuration, execution_status, depends_on, condition, is_required, timeout_seconds, started_at, completed_at, error, created_at`

func (s *LibSQLStore) CreateStep(ctx context.Context, step *WorkflowStep) error {
	deps, err := marshalDeps(step.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	if step.TimeoutSeconds <= 0 {
		step.TimeoutSeconds = schema.DefaultStepTimeoutSeconds
	}
	if step.ExecutionStatus == "" {
		step.ExecutionStatus = schema.StepStatusPending
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_steps (id, workflow_id, name, step_type, position, configuration, execution_status, depends_on, condition, is_required, timeout_seconds, started_at, completed_at, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.WorkflowID, step.Name, string(step.StepType), step.Position,
		nullRaw(step.Configuration), string(step.ExecutionStatus), deps, nullStr(step.Condition),
		boolInt(step.IsRequired), step.TimeoutSeconds,
		nullTime(step.StartedAt), nullTime(step.CompletedAt), nullStr(step.Error), timeOrNow(step.CreatedAt),
	)
	return err
}

func scanStep(row interface{ Scan(...any) error }) (*WorkflowStep, error) {
	st := &WorkflowStep{}
	var (
		config, deps, cond, errMsg sql.NullString
		stepType, status           string
		required                   int
		startedAt, completedAt     sql.NullTime
	)
	err := row.Scan(&st.ID, &st.WorkflowID, &st.Name, &stepType, &st.Position, &config,
		&status, &deps, &cond, &required, &st.TimeoutSeconds, &startedAt, &completedAt, &errMsg, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	st.StepType = schema.StepType(stepType)
	st.ExecutionStatus = schema.StepStatus(status)
	st.Configuration = rawOrNil(config)
	st.Condition = cond.String
	st.IsRequired = required != 0
	st.Error = errMsg.String
	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &st.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on: %w", err)
		}
	}
	if startedAt.Valid {
		st.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		st.CompletedAt = &completedAt.Time
	}
	return st, nil
}

func (s *LibSQLStore) GetStep(ctx context.Context, workflowID, stepID string) (*WorkflowStep, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE workflow_id = ? AND id = ?`, workflowID, stepID)
	st, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("step", stepID)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *LibSQLStore) UpdateStep(ctx context.Context, stepID string, update StepUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Position != nil {
		sets = append(sets, "position = ?")
		args = append(args, *update.Position)
	}
	if update.Configuration != nil {
		sets = append(sets, "configuration = ?")
		args = append(args, string(update.Configuration))
	}
	if update.Status != nil {
		sets = append(sets, "execution_status = ?")
		args = append(args, string(*update.Status))
	}
	if update.DependsOn != nil {
		deps, err := marshalDeps(update.DependsOn)
		if err != nil {
			return fmt.Errorf("marshal depends_on: %w", err)
		}
		sets = append(sets, "depends_on = ?")
		args = append(args, deps)
	}
	if update.Condition != nil {
		sets = append(sets, "condition = ?")
		args = append(args, nullStr(*update.Condition))
	}
	if update.IsRequired != nil {
		sets = append(sets, "is_required = ?")
		args = append(args, boolInt(*update.IsRequired))
	}
	if update.TimeoutSeconds != nil {
		sets = append(sets, "timeout_seconds = ?")
		args = append(args, *update.TimeoutSeconds)
	}
	if update.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *update.StartedAt)
	}
	if update.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *update.CompletedAt)
	}
	if update.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullStr(*update.Error))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, stepID)

	query := fmt.Sprintf("UPDATE workflow_steps SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "step", stepID)
}

func (s *LibSQLStore) SaveStepStatus(ctx context.Context, stepID string, status schema.StepStatus, errMsg string) error {
	var query string
	args := []any{string(status)}

	switch {
	case status == schema.StepStatusInProgress:
		query = `UPDATE workflow_steps SET execution_status = ?, started_at = CURRENT_TIMESTAMP, completed_at = NULL, error = NULL WHERE id = ?`
	case status == schema.StepStatusPending:
		query = `UPDATE workflow_steps SET execution_status = ?, started_at = NULL, completed_at = NULL, error = NULL WHERE id = ?`
	case schema.TerminalStepStatus(status):
		query = `UPDATE workflow_steps SET execution_status = ?, completed_at = CURRENT_TIMESTAMP, error = ? WHERE id = ?`
		args = append(args, nullStr(errMsg))
	default:
		query = `UPDATE workflow_steps SET execution_status = ?, error = ? WHERE id = ?`
		args = append(args, nullStr(errMsg))
	}
	args = append(args, stepID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "step", stepID)
}

func (s *LibSQLStore) ListSteps(ctx context.Context, workflowID string) ([]*WorkflowStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM workflow_steps WHERE workflow_id = ?
		 ORDER BY position ASC, created_at ASC, id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*WorkflowStep
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *LibSQLStore) DeleteStep(ctx context.Context, stepID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_steps WHERE id = ?`, stepID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "step", stepID)
}

// --- Runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *WorkflowRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, workflow_name, user_id, status, started_at, ended_at, total_steps, completed_steps, failed_steps, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.WorkflowName, run.UserID, string(run.Status),
		run.StartedAt, run.EndedAt, run.TotalSteps, run.CompletedSteps, run.FailedSteps, nullStr(run.Error),
	)
	return err
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*WorkflowRun, error) {
	r := &WorkflowRun{}
	var status string
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, workflow_name, user_id, status, started_at, ended_at, total_steps, completed_steps, failed_steps, error
		 FROM workflow_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.WorkflowID, &r.WorkflowName, &r.UserID, &status,
		&r.StartedAt, &r.EndedAt, &r.TotalSteps, &r.CompletedSteps, &r.FailedSteps, &errMsg)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	r.Status = schema.WorkflowStatus(status)
	r.Error = errMsg.String
	return r, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error) {
	var where []string
	var args []any

	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT id, workflow_id, workflow_name, user_id, status, started_at, ended_at, total_steps, completed_steps, failed_steps, error FROM workflow_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ended_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*WorkflowRun
	for rows.Next() {
		r := &WorkflowRun{}
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.WorkflowID, &r.WorkflowName, &r.UserID, &status,
			&r.StartedAt, &r.EndedAt, &r.TotalSteps, &r.CompletedSteps, &r.FailedSteps, &errMsg); err != nil {
			return nil, err
		}
		r.Status = schema.WorkflowStatus(status)
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Events ---

// AppendEvent appends an event with a monotonically increasing per-workflow
// sequence. The sequence read and insert run in one transaction so concurrent
// writers cannot interleave.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE workflow_id = ?`, event.WorkflowID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (workflow_id, step_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.WorkflowID, nullStr(event.StepID), event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, workflowID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, step_id, event_type, payload, timestamp, sequence
		 FROM events WHERE workflow_id = ? AND sequence > ? ORDER BY sequence ASC`,
		workflowID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var stepID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkflowID, &stepID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.StepID = stepID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Scheduled runs ---

func (s *LibSQLStore) CreateScheduledRun(ctx context.Context, run *ScheduledRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_runs (id, workflow_id, user_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.UserID, run.CronExpression, boolInt(run.Enabled),
		nullTime(run.LastRunAt), nullTime(run.NextRunAt), nullStr(run.LastRunStatus), timeOrNow(run.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledRun(ctx context.Context, id string) (*ScheduledRun, error) {
	r := &ScheduledRun{}
	var enabled int
	var lastRunAt, nextRunAt sql.NullTime
	var lastStatus sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, user_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at
		 FROM scheduled_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.WorkflowID, &r.UserID, &r.CronExpression, &enabled, &lastRunAt, &nextRunAt, &lastStatus, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled_run", id)
	}
	if err != nil {
		return nil, err
	}
	r.Enabled = enabled != 0
	r.LastRunStatus = lastStatus.String
	if lastRunAt.Valid {
		r.LastRunAt = &lastRunAt.Time
	}
	if nextRunAt.Valid {
		r.NextRunAt = &nextRunAt.Time
	}
	return r, nil
}

func (s *LibSQLStore) UpdateScheduledRun(ctx context.Context, id string, update ScheduledRunUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_runs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_run", id)
}

func (s *LibSQLStore) ListScheduledRuns(ctx context.Context, filter ScheduledRunFilter) ([]*ScheduledRun, error) {
	var where []string
	var args []any

	if filter.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, boolInt(*filter.Enabled))
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT id, workflow_id, user_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at FROM scheduled_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScheduledRun
	for rows.Next() {
		r := &ScheduledRun{}
		var enabled int
		var lastRunAt, nextRunAt sql.NullTime
		var lastStatus sql.NullString
		if err := rows.Scan(&r.ID, &r.WorkflowID, &r.UserID, &r.CronExpression, &enabled,
			&lastRunAt, &nextRunAt, &lastStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Enabled = enabled != 0
		r.LastRunStatus = lastStatus.String
		if lastRunAt.Valid {
			r.LastRunAt = &lastRunAt.Time
		}
		if nextRunAt.Valid {
			r.NextRunAt = &nextRunAt.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_run", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalDeps(deps []string) (any, error) {
	if len(deps) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(deps)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
