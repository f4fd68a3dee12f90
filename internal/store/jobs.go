package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kubev2v/prio-scheduler/internal/models"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const jobsTable = "jobs"

var jobColumns = []string{
	"id", "kind", "priority", "state", "input", "result", "error",
	"attempts", "preemptions", "delay_ms", "created_at", "updated_at",
}

type JobStore struct {
	db QueryInterceptor
}

func NewJobStore(db QueryInterceptor) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job. CreatedAt and UpdatedAt are set when zero.
func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	level, err := scheduler.ParsePriority(job.Priority)
	if err != nil {
		return srvErrors.NewInvalidRequestError("%v", err)
	}

	query, args, err := sq.Insert(jobsTable).
		Columns(append(jobColumns, "priority_level")...).
		Values(
			job.ID, job.Kind, job.Priority, string(job.State), job.Input, job.Result, job.Error,
			job.Attempts, job.Preemptions, job.Delay.Milliseconds(), job.CreatedAt, job.UpdatedAt,
			int(level),
		).ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	query, args, err := sq.Select(jobColumns...).From(jobsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, srvErrors.NewJobNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) List(ctx context.Context, opts ...ListOption) ([]models.Job, error) {
	builder := sq.Select(jobColumns...).From(jobsTable)
	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *JobStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From(jobsTable)
	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// UpdateState moves a job to state and records its result or error.
// A job already in a terminal state is left untouched.
func (s *JobStore) UpdateState(ctx context.Context, id string, state models.JobState, result, errMsg string) error {
	query, args, err := sq.Update(jobsTable).
		Set("state", string(state)).
		Set("result", result).
		Set("error", errMsg).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": terminalStates()}).
		ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, id, query, args)
}

// RecordAttempt marks the job running and bumps its attempt counter.
func (s *JobStore) RecordAttempt(ctx context.Context, id string, attempt int) error {
	query, args, err := sq.Update(jobsTable).
		Set("state", string(models.JobStateRunning)).
		Set("attempts", attempt).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": terminalStates()}).
		ToSql()
	if err != nil {
		return err
	}
	if err := s.execOne(ctx, id, query, args); err != nil {
		return err
	}
	return s.addEvent(ctx, id, "dispatched", attempt)
}

// RecordPreemption puts the job back to queued and bumps its preemption counter.
func (s *JobStore) RecordPreemption(ctx context.Context, id string, attempt int) error {
	query, args, err := sq.Update(jobsTable).
		Set("state", string(models.JobStateQueued)).
		Set("preemptions", sq.Expr("preemptions + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": terminalStates()}).
		ToSql()
	if err != nil {
		return err
	}
	if err := s.execOne(ctx, id, query, args); err != nil {
		return err
	}
	return s.addEvent(ctx, id, "preempted", attempt)
}

// FailUnfinished fails every job left in a non-terminal state, such as jobs
// pending when a previous process stopped. It returns the number of jobs failed.
func (s *JobStore) FailUnfinished(ctx context.Context, reason string) (int, error) {
	query, args, err := sq.Update(jobsTable).
		Set("state", string(models.JobStateFailed)).
		Set("error", reason).
		Set("updated_at", time.Now().UTC()).
		Where(sq.NotEq{"state": terminalStates()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Events returns the dispatch and preemption history of a job, oldest first.
func (s *JobStore) Events(ctx context.Context, id string) ([]models.JobEvent, error) {
	query, args, err := sq.Select("kind", "attempt", "created_at").
		From("job_events").
		Where(sq.Eq{"job_id": id}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.JobEvent{}
	for rows.Next() {
		var e models.JobEvent
		if err := rows.Scan(&e.Kind, &e.Attempt, &e.Time); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *JobStore) addEvent(ctx context.Context, id, kind string, attempt int) error {
	query, args, err := sq.Insert("job_events").
		Columns("job_id", "kind", "attempt", "created_at").
		Values(id, kind, attempt, time.Now().UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// execOne runs an update that must hit the job. No row affected means the job
// is missing or already finished; the two are told apart with a lookup.
func (s *JobStore) execOne(ctx context.Context, id, query string, args []any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return srvErrors.NewJobFinishedError(id, string(job.State))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job     models.Job
		state   string
		delayMs int64
	)
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Priority,
		&state,
		&job.Input,
		&job.Result,
		&job.Error,
		&job.Attempts,
		&job.Preemptions,
		&delayMs,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.State = models.JobState(state)
	job.Delay = time.Duration(delayMs) * time.Millisecond
	return &job, nil
}

func terminalStates() []string {
	return []string{
		string(models.JobStateCompleted),
		string(models.JobStateFailed),
		string(models.JobStateCancelled),
	}
}

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

func ByStates(states ...models.JobState) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(states) == 0 {
			return b
		}
		values := make([]string, 0, len(states))
		for _, st := range states {
			values = append(values, string(st))
		}
		return b.Where(sq.Eq{"state": values})
	}
}

func ByPriorities(priorities ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(priorities) == 0 {
			return b
		}
		return b.Where(sq.Eq{"priority": priorities})
	}
}

func ByKinds(kinds ...string) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(kinds) == 0 {
			return b
		}
		return b.Where(sq.Eq{"kind": kinds})
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}

type SortParam struct {
	Field string
	Desc  bool
}

var apiFieldToDBColumn = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"priority":  "priority_level",
	"state":     "state",
	"kind":      "kind",
	"attempts":  "attempts",
}

// WithDefaultSort lists newest jobs first.
func WithDefaultSort() ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.OrderBy("created_at DESC", "id")
	}
}

func WithSort(sorts []SortParam) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		var orderClauses []string
		for _, s := range sorts {
			col, ok := apiFieldToDBColumn[s.Field]
			if !ok {
				continue
			}
			if s.Desc {
				orderClauses = append(orderClauses, col+" DESC")
			} else {
				orderClauses = append(orderClauses, col+" ASC")
			}
		}
		// tie-breaker for stable pagination
		orderClauses = append(orderClauses, "id")
		return b.OrderBy(orderClauses...)
	}
}
