// Package services implements the business logic layer for prioschedd.
//
// Services sit between the HTTP handlers and the store. They own the scheduler
// and translate job requests into scheduler submissions.
//
// # Service Dependency Graph
//
//	Handlers (HTTP endpoints)
//	    │
//	    ▼
//	Services Layer
//	    ├── JobService ──► Scheduler, Store, Journal, Registry
//	    ├── Journal ─────► Store          (scheduler.Observer)
//	    └── Replayer ────► Registry, private Scheduler
//
// # JobService
//
// Submit validates the request, journals the job, and submits it with the job
// id as task label. The future's continuation records the terminal state.
//
// Job lifecycle:
//
//	┌─────────┐  delay   ┌────────┐ dispatch ┌─────────┐  value   ┌───────────┐
//	│ delayed │─────────►│ queued │─────────►│ running │─────────►│ completed │
//	└─────────┘          └────────┘          └─────────┘          └───────────┘
//	     │                 ▲    │               │    │
//	     │                 │    │    preempted  │    │ error / closed
//	     │                 └────┼───────────────┘    ▼
//	     │                      │               ┌────────┐
//	     │                      │               │ failed │
//	     │                      │               └────────┘
//	     │      cancel          ▼
//	     └──────────────►┌───────────┐
//	                     │ cancelled │◄──── cancel while running
//	                     └───────────┘
//
// A preempted job goes back to queued and restarts from its original input.
// The journal counts attempts and preemptions so re-runs are visible.
//
// Cancel on a finished job returns JobFinishedError. Recover, called at
// startup, fails jobs left unfinished by a previous process: the journal is
// history, pending work is never resumed.
//
// # Journal
//
// Journal implements scheduler.Observer and matches events to jobs by label:
//
//	┌─────────────────────────┬────────────────────────────────────┐
//	│ Event                   │ Journal write                      │
//	├─────────────────────────┼────────────────────────────────────┤
//	│ Enqueued after a delay  │ state queued                       │
//	│ Dispatched              │ RecordAttempt (state running)      │
//	│ Finished / Preempted    │ RecordPreemption (state queued)    │
//	│ future resolved         │ UpdateState (terminal)             │
//	└─────────────────────────┴────────────────────────────────────┘
//
// Observe runs under the scheduler lock, so writes are queued and applied in
// order by one goroutine. Each write is retried with exponential backoff
// (cenkalti/backoff) since DuckDB reports conflicting row updates as errors.
//
// # Computations
//
// Builtin job kinds:
//   - sleep: waits for the duration given as input and yields on preemption
//   - checksum: iterated sha256 of the input, "<rounds>:" prefix optional
//   - fail: always fails with the input as message
//
// # Replayer
//
// Replayer reads a YAML workload and submits each step at its offset to a
// private scheduler. It returns the timeline of dispatches, preemption signals
// and finishes, plus the result of every step:
//
//	name: preemption
//	steps:
//	  - name: background
//	    kind: sleep
//	    priority: low
//	    input: 300ms
//	  - name: urgent
//	    kind: checksum
//	    priority: higher
//	    at: 50ms
//	    input: "20000:payload"
package services
