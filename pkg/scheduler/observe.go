package scheduler

import "time"

type EventKind int

const (
	// EventDelayed: a task is waiting out its admission delay.
	EventDelayed EventKind = iota
	// EventEnqueued: a task entered the queue table (tail, or front on requeue).
	EventEnqueued
	// EventDispatched: a task was handed to the worker.
	EventDispatched
	// EventPreemptSignal: the running token was cancelled for a higher priority arrival.
	EventPreemptSignal
	// EventFinished: a dispatch attempt ended; Outcome is set.
	EventFinished
	// EventDropped: a task left the scheduler without running (cancelled while queued or delayed, or closed).
	EventDropped
)

func (k EventKind) String() string {
	switch k {
	case EventDelayed:
		return "delayed"
	case EventEnqueued:
		return "enqueued"
	case EventDispatched:
		return "dispatched"
	case EventPreemptSignal:
		return "preempt-signal"
	case EventFinished:
		return "finished"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

type Event struct {
	Time     time.Time
	Kind     EventKind
	Priority Priority
	Label    string
	// Attempt counts dispatches of the same task, starting at 1.
	Attempt  int
	Outcome  Outcome
	Duration time.Duration
	// Pending is the number of queued tasks after the event was applied.
	Pending int
}

// Observer receives scheduler events. Observe is called with the scheduler
// lock held: it must not block or call back into the scheduler.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// WithObserver registers an observer receiving scheduler events. Observers are
// called in registration order with the scheduler lock held and must not block.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observers = append(s.observers, o)
	}
}

// emit must be called with s.mu held.
func (s *Scheduler) emit(e Event) {
	if len(s.observers) == 0 {
		return
	}
	e.Time = time.Now()
	e.Pending = s.queues.total()
	for _, o := range s.observers {
		o.Observe(e)
	}
}

func (s *Scheduler) emitTask(kind EventKind, t *task) {
	s.emit(Event{Kind: kind, Priority: t.priority, Label: t.label, Attempt: t.attempts})
}

// emitFinished reports the end of an attempt and, for a requeued task, its
// return to the queue.
func (s *Scheduler) emitFinished(t *task, outcome Outcome, elapsed time.Duration, requeued bool) {
	s.emit(Event{Kind: EventFinished, Priority: t.priority, Label: t.label, Attempt: t.attempts, Outcome: outcome, Duration: elapsed})
	if requeued {
		s.emitTask(EventEnqueued, t)
	}
}
