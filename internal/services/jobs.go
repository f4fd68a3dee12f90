package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubev2v/prio-scheduler/internal/models"
	"github.com/kubev2v/prio-scheduler/internal/store"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const restartReason = "scheduler restarted before the job finished"

type JobService struct {
	scheduler       *scheduler.Scheduler
	store           *store.Store
	journal         *Journal
	registry        *Registry
	defaultPriority scheduler.Priority
	log             *zap.SugaredLogger

	mu      sync.Mutex
	futures map[string]*scheduler.Future[string]
}

// NewJobService wires the service. The journal must also be registered as an
// observer of s so dispatches and preemptions are recorded.
func NewJobService(s *scheduler.Scheduler, st *store.Store, journal *Journal, registry *Registry, defaultPriority scheduler.Priority) *JobService {
	return &JobService{
		scheduler:       s,
		store:           st,
		journal:         journal,
		registry:        registry,
		defaultPriority: defaultPriority,
		log:             zap.S().Named("job_service"),
		futures:         make(map[string]*scheduler.Future[string]),
	}
}

// Recover fails jobs a previous process left unfinished. Pending work is not
// resumed.
func (s *JobService) Recover(ctx context.Context) error {
	n, err := s.store.Jobs().FailUnfinished(ctx, restartReason)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Infow("unfinished jobs from a previous run marked failed", "count", n)
	}
	return nil
}

// Submit journals the job and hands it to the scheduler. It returns as soon as
// the job is queued or delayed.
func (s *JobService) Submit(ctx context.Context, req models.JobRequest) (*models.Job, error) {
	fn, ok := s.registry.Lookup(req.Kind)
	if !ok {
		return nil, srvErrors.NewInvalidRequestError("unknown job kind %q", req.Kind)
	}

	priority := s.defaultPriority
	if req.Priority != "" {
		p, err := scheduler.ParsePriority(req.Priority)
		if err != nil {
			return nil, srvErrors.NewInvalidRequestError("%v", err)
		}
		priority = p
	}

	if req.Delay < 0 {
		return nil, srvErrors.NewInvalidRequestError("delay must not be negative")
	}

	if s.scheduler.Stats().Closed {
		return nil, srvErrors.NewClosedError()
	}

	job := &models.Job{
		ID:       uuid.NewString(),
		Kind:     req.Kind,
		Priority: priority.String(),
		State:    models.JobStateQueued,
		Input:    req.Input,
		Delay:    req.Delay,
	}
	if req.Delay > 0 {
		job.State = models.JobStateDelayed
	}

	if err := s.create(ctx, job); err != nil {
		return nil, err
	}

	f := scheduler.SubmitDelayed(s.scheduler, priority, fn, req.Input, req.Delay, scheduler.WithLabel(job.ID))

	s.mu.Lock()
	s.futures[job.ID] = f
	s.mu.Unlock()

	id := job.ID
	f.OnComplete(func(r scheduler.Result[string]) {
		s.mu.Lock()
		delete(s.futures, id)
		s.mu.Unlock()

		state, errMsg := models.JobStateCompleted, ""
		switch {
		case errors.Is(r.Err, scheduler.ErrCancelled):
			state, errMsg = models.JobStateCancelled, r.Err.Error()
		case r.Err != nil:
			state, errMsg = models.JobStateFailed, r.Err.Error()
		}
		s.journal.Finish(id, state, r.Data, errMsg)
		s.log.Debugw("job finished", "id", id, "state", state)
	})

	s.log.Debugw("job submitted", "id", job.ID, "kind", job.Kind, "priority", job.Priority, "delay", job.Delay)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	return s.store.Jobs().Get(ctx, id)
}

func (s *JobService) Events(ctx context.Context, id string) ([]models.JobEvent, error) {
	if _, err := s.store.Jobs().Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Jobs().Events(ctx, id)
}

func (s *JobService) List(ctx context.Context, filter models.JobFilter, sorts ...store.SortParam) (*models.JobList, error) {
	opts := buildListOptions(filter)

	if len(sorts) > 0 {
		opts = append(opts, store.WithSort(sorts))
	} else {
		opts = append(opts, store.WithDefaultSort())
	}
	if filter.Limit > 0 {
		opts = append(opts, store.WithLimit(filter.Limit))
	}
	if filter.Offset > 0 {
		opts = append(opts, store.WithOffset(filter.Offset))
	}

	jobs, err := s.store.Jobs().List(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// total without pagination
	total, err := s.store.Jobs().Count(ctx, buildListOptions(filter)...)
	if err != nil {
		return nil, err
	}

	return &models.JobList{Jobs: jobs, Total: total}, nil
}

// Cancel cancels a delayed, queued or running job. A running job finishes its
// current pass and its result is discarded.
func (s *JobService) Cancel(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.store.Jobs().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State.Finished() {
		return nil, srvErrors.NewJobFinishedError(id, string(job.State))
	}

	s.mu.Lock()
	f, ok := s.futures[id]
	s.mu.Unlock()

	if !ok || !f.Cancel() {
		// resolved between the lookup and the cancel
		return nil, srvErrors.NewJobFinishedError(id, "finished")
	}

	if err := s.journal.Flush(ctx); err != nil {
		return nil, err
	}
	return s.store.Jobs().Get(ctx, id)
}

func (s *JobService) Stats() scheduler.Stats {
	return s.scheduler.Stats()
}

func (s *JobService) Kinds() []string {
	return s.registry.Kinds()
}

// create retries the insert on transient DuckDB errors.
func (s *JobService) create(ctx context.Context, job *models.Job) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.store.Jobs().Create(ctx, job)
		if srvErrors.IsInvalidRequestError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(newJournalBackOff()), backoff.WithMaxTries(journalMaxTries), backoff.WithMaxElapsedTime(2*time.Second))
	return err
}

func buildListOptions(filter models.JobFilter) []store.ListOption {
	var opts []store.ListOption

	if len(filter.States) > 0 {
		opts = append(opts, store.ByStates(filter.States...))
	}
	if len(filter.Priorities) > 0 {
		opts = append(opts, store.ByPriorities(filter.Priorities...))
	}
	if len(filter.Kinds) > 0 {
		opts = append(opts, store.ByKinds(filter.Kinds...))
	}

	return opts
}
