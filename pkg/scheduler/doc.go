// Package scheduler implements a priority-preemptive, single-worker task scheduler.
//
// Work is submitted with a priority and returns a Future right away. At most one
// task runs at any time. When a task of strictly higher priority arrives while a
// lower one runs, the running task's Token is cancelled: the task is asked to
// yield, never interrupted. A task that yields is put back at the front of its
// priority level and runs again from its original input.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                           Scheduler                                 │
//	│                                                                     │
//	│   Submit(p, fn, in)      SubmitDelayed(p, fn, in, d)                │
//	│          │                        │                                 │
//	│          │                 ┌──────┴──────┐                          │
//	│          │                 │ delay timer │  (invisible until fired) │
//	│          │                 └──────┬──────┘                          │
//	│          ▼                        ▼                                 │
//	│  ┌─────────────────────────────────────────────────────────┐        │
//	│  │                   Queue Table                           │        │
//	│  │  higher    [t] [t]                                      │        │
//	│  │  high      [t]                                          │        │
//	│  │  normal    [t] [t] [t]                                  │        │
//	│  │  low                                                    │        │
//	│  │  below_low [t]                                          │        │
//	│  └────────────────────────────┬────────────────────────────┘        │
//	│                               │                                     │
//	│                        ┌──────┴──────┐                              │
//	│                        │  dispatch() │── cancel token (preempt)     │
//	│                        └──────┬──────┘                              │
//	│                               ▼                                     │
//	│                        ┌──────────────┐                             │
//	│                        │    Worker    │  fn(input, token)           │
//	│                        └──────┬───────┘                             │
//	│                               ▼                                     │
//	│                         reconcile()                                 │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Dispatch
//
// dispatch() runs under the scheduler mutex on every submission, every delayed
// admission and every task completion:
//
//  1. Find the highest priority level with a queued task. Nothing queued: stay idle.
//  2. Idle: pop that task, mint a fresh Token and hand both to the worker.
//  3. Running at priority p and the waiting level is strictly higher than p:
//     cancel the running token. Nothing else changes.
//  4. Otherwise the waiting task keeps waiting. Equal priorities never preempt.
//
// # Reconciliation
//
// When the function returns, the attempt is classified in this order:
//
//	┌────────────┬─────────────────────────────────────┬─────────────────────────────┐
//	│ Outcome    │ Condition                           │ Effect                      │
//	├────────────┼─────────────────────────────────────┼─────────────────────────────┤
//	│ Cancelled  │ caller cancelled the future         │ result dropped, no requeue  │
//	│ Failed     │ fn returned an error                │ future fails with the error │
//	│ Preempted  │ token cancelled                     │ task requeued at the front  │
//	│ Completed  │ otherwise                           │ future resolves to value    │
//	└────────────┴─────────────────────────────────────┴─────────────────────────────┘
//
// A function that notices its token and returns token.Err() (ErrPreempted) is
// reconciled as Preempted, not Failed. Panics are recovered and reported as
// failures. The scheduler then goes back to idle and dispatches again.
//
// Futures are resolved on a notifier goroutine in completion order, so
// OnComplete continuations never delay the next dispatch. A panicking
// continuation is logged and skipped.
//
// # Cancellation
//
// Two independent channels exist:
//   - future.Cancel(): the caller gives up. A queued or delayed task is dropped and
//     never runs; a running task finishes its pass and its result is discarded.
//   - Token: the scheduler asks the running task to yield for higher priority work.
//
// Functions poll token.IsCancelled(), select on token.Done() or register a
// callback with token.RegisterCancel().
//
// # Usage Example
//
//	s := scheduler.NewScheduler()
//	defer s.Close()
//
//	f := scheduler.Submit(s, scheduler.Normal, func(path string, tok *scheduler.Token) (int, error) {
//	    n := 0
//	    for _, line := range lines(path) {
//	        if tok.IsCancelled() {
//	            return 0, tok.Err()
//	        }
//	        n += len(line)
//	    }
//	    return n, nil
//	}, "/tmp/file")
//
//	n, err := f.Wait(ctx)
//
// # Graceful Shutdown
//
// Close() stops admissions. Delayed and queued futures resolve to ErrClosed. The
// running token is cancelled and Close waits for the function to return and
// for every future to be resolved. Close is idempotent and may be called from
// a task or a continuation, in which case it does not wait on itself.
package scheduler
