package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Option func(*Scheduler)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

type SubmitOption func(*task)

// WithLabel names the task in logs and events.
func WithLabel(label string) SubmitOption {
	return func(t *task) {
		t.label = label
	}
}

// running is the state of the one task the worker holds.
type running struct {
	task    *task
	token   *Token
	started time.Time
}

type Scheduler struct {
	mu        sync.Mutex
	queues    *queueTable
	current   *running
	delayed   map[*task]*time.Timer
	work      chan *running
	closed    bool
	done      chan any
	once      sync.Once
	workerID  atomic.Uint64
	notify    *notifier
	observers []Observer
	log       *zap.SugaredLogger
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		queues:  newQueueTable(),
		delayed: make(map[*task]*time.Timer),
		// at most one task is in flight, so a send under the lock never blocks
		work: make(chan *running, 1),
		done: make(chan any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.S().Named("scheduler")
	}
	s.notify = newNotifier(s.log)
	go s.run()
	return s
}

// Submit queues fn(input) at priority p and returns its future without blocking.
func Submit[I, R any](s *Scheduler, p Priority, fn Compute[I, R], input I, opts ...SubmitOption) *Future[R] {
	f, t := newTask(s, p, fn, input, opts)
	if !p.Valid() {
		f.fail(fmt.Errorf("invalid priority: %d", int(p)))
		return f
	}
	s.enqueue(t)
	return f
}

// SubmitDelayed is Submit with the task entering the queue only once delay has
// elapsed. A future cancelled during the delay never reaches the queue.
func SubmitDelayed[I, R any](s *Scheduler, p Priority, fn Compute[I, R], input I, delay time.Duration, opts ...SubmitOption) *Future[R] {
	f, t := newTask(s, p, fn, input, opts)
	if !p.Valid() {
		f.fail(fmt.Errorf("invalid priority: %d", int(p)))
		return f
	}
	if delay <= 0 {
		s.enqueue(t)
		return f
	}
	s.delay(t, delay)
	return f
}

func newTask[I, R any](s *Scheduler, p Priority, fn Compute[I, R], input I, opts []SubmitOption) (*Future[R], *task) {
	f := NewFuture[R]()
	t := &task{
		priority: p,
		run: func(token *Token) (any, error) {
			return fn(input, token)
		},
		complete: func(v any) bool {
			r, _ := v.(R)
			return f.complete(r)
		},
		fail:      f.fail,
		cancelled: f.IsCancelled,
	}
	for _, opt := range opts {
		opt(t)
	}
	f.setOnCancel(func() { s.forget(t) })
	return f, t
}

// Close stops the scheduler. Delayed and queued tasks resolve to ErrClosed, the
// running task's token is cancelled and Close waits for it to return and for
// every future to be resolved. Close may be called from a task or from a
// future continuation: it then waits for nothing it is itself part of.
func (s *Scheduler) Close() {
	s.once.Do(s.shutdown)

	gid := goroutineID()
	if gid == s.workerID.Load() {
		return
	}
	<-s.done
	if gid == s.notify.gid.Load() {
		return
	}
	<-s.notify.done
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.closed = true

	var abandoned []*task
	for t, timer := range s.delayed {
		// a timer already firing finds its task gone from the map
		timer.Stop()
		abandoned = append(abandoned, t)
	}
	s.delayed = make(map[*task]*time.Timer)
	abandoned = append(abandoned, s.queues.drain()...)
	for _, t := range abandoned {
		s.emitTask(EventDropped, t)
	}

	// pushed before the worker can exit and close the notifier
	s.notify.push(func() {
		for _, t := range abandoned {
			t.fail(ErrClosed)
		}
	})

	var fire func()
	if s.current != nil {
		fire = s.current.token.cancel()
	}
	close(s.work)
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
	s.log.Debugw("scheduler closing", "abandoned", len(abandoned))
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Pending: make(map[Priority]int),
		Delayed: len(s.delayed),
		Closed:  s.closed,
	}
	for _, p := range Priorities() {
		st.Pending[p] = s.queues.len(p)
	}
	if s.current != nil {
		st.Running = true
		st.CurrentPriority = s.current.task.priority
		st.CurrentLabel = s.current.task.label
	}
	return st
}

func (s *Scheduler) enqueue(t *task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.fail(ErrClosed)
		return
	}
	fire := s.admitLocked(t)
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

func (s *Scheduler) delay(t *task, d time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.fail(ErrClosed)
		return
	}
	if t.cancelled() {
		s.mu.Unlock()
		return
	}
	s.delayed[t] = time.AfterFunc(d, func() { s.admitDelayed(t) })
	s.emitTask(EventDelayed, t)
	s.mu.Unlock()
}

func (s *Scheduler) admitDelayed(t *task) {
	s.mu.Lock()
	if _, ok := s.delayed[t]; !ok {
		// cancelled or closed while waiting
		s.mu.Unlock()
		return
	}
	delete(s.delayed, t)
	fire := s.admitLocked(t)
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// admitLocked appends t to its level and runs dispatch.
func (s *Scheduler) admitLocked(t *task) func() {
	if t.cancelled() {
		s.emitTask(EventDropped, t)
		return nil
	}
	s.queues.pushBack(t)
	s.emitTask(EventEnqueued, t)
	return s.dispatch()
}

// forget drops a task whose future was cancelled before it started.
func (s *Scheduler) forget(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.delayed[t]; ok {
		timer.Stop()
		delete(s.delayed, t)
		s.emitTask(EventDropped, t)
		return
	}
	if s.queues.remove(t) {
		s.emitTask(EventDropped, t)
	}
}

// dispatch starts the highest priority task when idle, or signals the running
// task when a strictly higher priority is waiting. It must be called with s.mu
// held and returns the token callback to run once the lock is released.
func (s *Scheduler) dispatch() func() {
	for {
		p, ok := s.queues.highest()
		if !ok {
			return nil
		}
		if head := s.queues.peek(p); head.cancelled() {
			s.queues.popFront(p)
			s.emitTask(EventDropped, head)
			continue
		}

		if s.current == nil {
			t := s.queues.popFront(p)
			t.attempts++
			s.current = &running{task: t, token: newToken(), started: time.Now()}
			s.emitTask(EventDispatched, t)
			s.log.Debugw("task dispatched", "priority", p, "label", t.label, "attempt", t.attempts)
			s.work <- s.current
			return nil
		}

		cur := s.current
		if cur.task.priority < p && !cur.token.IsCancelled() {
			s.emitTask(EventPreemptSignal, cur.task)
			s.log.Debugw("preempting running task", "running", cur.task.priority, "waiting", p, "label", cur.task.label)
			return cur.token.cancel()
		}
		return nil
	}
}

func (s *Scheduler) run() {
	s.workerID.Store(goroutineID())
	defer close(s.done)
	// the last reconcile has pushed its resolution by now
	defer s.notify.close()

	for r := range s.work {
		var (
			v   any
			err error
		)
		if !s.isClosed() {
			v, err = s.execute(r)
		}
		s.reconcile(r, v, err)
	}
}

func (s *Scheduler) execute(r *running) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return r.task.run(r.token)
}

// reconcile records the outcome of one attempt and dispatches the next task.
// The future is resolved on the notifier goroutine, in completion order.
func (s *Scheduler) reconcile(r *running, v any, err error) {
	t := r.task

	s.mu.Lock()
	var (
		outcome Outcome
		finish  func()
	)
	preempted := r.token.IsCancelled()
	switch {
	case t.cancelled():
		outcome = OutcomeCancelled
	case err != nil && !(preempted && errors.Is(err, ErrPreempted)):
		outcome = OutcomeFailed
		finish = func() { t.fail(err) }
	case preempted:
		outcome = OutcomePreempted
		if s.closed {
			finish = func() { t.fail(ErrClosed) }
		} else {
			s.queues.pushFront(t)
		}
	default:
		outcome = OutcomeCompleted
		finish = func() { t.complete(v) }
	}

	s.current = nil
	requeued := outcome == OutcomePreempted && !s.closed
	s.emitFinished(t, outcome, time.Since(r.started), requeued)
	if outcome == OutcomeFailed {
		s.log.Debugw("task failed", "priority", t.priority, "label", t.label, "error", err)
	}

	var fire func()
	if !s.closed {
		fire = s.dispatch()
	}
	if finish != nil {
		s.notify.push(finish)
	}
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
