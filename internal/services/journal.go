package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kubev2v/prio-scheduler/internal/models"
	"github.com/kubev2v/prio-scheduler/internal/store"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const (
	journalWriteTimeout = 5 * time.Second
	journalMaxTries     = 5
)

type journalOp struct {
	id   string
	what string
	fn   func(ctx context.Context) error
}

// Journal turns scheduler events into job journal writes. Observe is called
// under the scheduler lock, so writes are queued and applied in order by a
// single goroutine. Transient DuckDB errors are retried with backoff.
type Journal struct {
	store *store.Store
	log   *zap.SugaredLogger

	mu      sync.Mutex
	ops     []journalOp
	delayed map[string]struct{}
	closed  bool
	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewJournal(st *store.Store) *Journal {
	j := &Journal{
		store:   st,
		log:     zap.S().Named("journal"),
		delayed: make(map[string]struct{}),
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Observe implements scheduler.Observer. Tasks are matched to jobs by label.
func (j *Journal) Observe(e scheduler.Event) {
	id := e.Label
	if id == "" {
		return
	}

	switch e.Kind {
	case scheduler.EventDelayed:
		j.mu.Lock()
		j.delayed[id] = struct{}{}
		j.mu.Unlock()
	case scheduler.EventEnqueued:
		j.mu.Lock()
		_, wasDelayed := j.delayed[id]
		delete(j.delayed, id)
		j.mu.Unlock()
		if wasDelayed {
			j.enqueue(journalOp{id: id, what: "queued", fn: func(ctx context.Context) error {
				return j.store.Jobs().UpdateState(ctx, id, models.JobStateQueued, "", "")
			}})
		}
	case scheduler.EventDispatched:
		attempt := e.Attempt
		j.enqueue(journalOp{id: id, what: "dispatched", fn: func(ctx context.Context) error {
			return j.store.Jobs().RecordAttempt(ctx, id, attempt)
		}})
	case scheduler.EventFinished:
		if e.Outcome != scheduler.OutcomePreempted {
			return
		}
		attempt := e.Attempt
		j.enqueue(journalOp{id: id, what: "preempted", fn: func(ctx context.Context) error {
			return j.store.Jobs().RecordPreemption(ctx, id, attempt)
		}})
	case scheduler.EventDropped:
		j.mu.Lock()
		delete(j.delayed, id)
		j.mu.Unlock()
	}
}

// Finish records the terminal state of a job.
func (j *Journal) Finish(id string, state models.JobState, result, errMsg string) {
	j.enqueue(journalOp{id: id, what: string(state), fn: func(ctx context.Context) error {
		return j.store.Jobs().UpdateState(ctx, id, state, result, errMsg)
	}})
}

// Flush waits until every write queued before the call has been applied.
func (j *Journal) Flush(ctx context.Context) error {
	reached := make(chan struct{})
	if !j.enqueue(journalOp{what: "flush", fn: func(context.Context) error {
		close(reached)
		return nil
	}}) {
		return nil
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close applies the writes still queued and stops the writer. It is idempotent.
func (j *Journal) Close() {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()
		close(j.stop)
		<-j.done
	})
}

func (j *Journal) enqueue(op journalOp) bool {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.log.Warnw("journal closed, write dropped", "job", op.id, "op", op.what)
		return false
	}
	j.ops = append(j.ops, op)
	j.mu.Unlock()

	select {
	case j.signal <- struct{}{}:
	default:
	}
	return true
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case <-j.signal:
			j.drain()
		case <-j.stop:
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	for {
		j.mu.Lock()
		ops := j.ops
		j.ops = nil
		j.mu.Unlock()

		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			j.apply(op)
		}
	}
}

func (j *Journal) apply(op journalOp) {
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()

		err := op.fn(ctx)
		switch {
		case err == nil:
			return struct{}{}, nil
		case srvErrors.IsJobFinishedError(err), srvErrors.IsResourceNotFoundError(err):
			return struct{}{}, backoff.Permanent(err)
		default:
			return struct{}{}, err
		}
	}, backoff.WithBackOff(newJournalBackOff()), backoff.WithMaxTries(journalMaxTries))

	switch {
	case err == nil:
	case srvErrors.IsJobFinishedError(err):
		// late event for a job already finished, e.g. a dispatch racing a cancel
		j.log.Debugw("journal write skipped", "job", op.id, "op", op.what, "reason", err)
	default:
		j.log.Errorw("journal write failed", "job", op.id, "op", op.what, "error", err)
	}
}

func newJournalBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}
