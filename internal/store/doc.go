// Package store implements the job journal for prioschedd.
//
// The journal records every submitted job and how it moved through the
// scheduler. It is history, not a durable queue: pending work is never reloaded
// from it after a restart.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│                           JobStore                              │
//	│                   ▼                         ▼                   │
//	│                 jobs                    job_events              │
//	├─────────────────────────────────────────────────────────────────┤
//	│                QueryInterceptor (zap debug)                     │
//	├─────────────────────────────────────────────────────────────────┤
//	│                    DuckDB (duckdb-go/v2)                        │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Tables
//
// Created by migrations (internal/store/migrations/sql/):
//
//	┌────────────────────┬─────────────────────────────────────────────┐
//	│  Table             │  Purpose                                    │
//	├────────────────────┼─────────────────────────────────────────────┤
//	│  jobs              │  One row per job, current state + counters  │
//	│  job_events        │  Dispatch and preemption history            │
//	│  schema_migrations │  Migration version tracking                 │
//	└────────────────────┴─────────────────────────────────────────────┘
//
// jobs stores the priority twice: by name for filtering and as an integer
// level for sorting.
//
// # Initialization Flow
//
//	NewDB(path) / NewDBInFolder(folder)
//	    └── sql.Open("duckdb", ...)
//
//	migrations.Run(ctx, db)
//	    └── applies sql/NNN_*.sql not yet in schema_migrations
//
//	NewStore(db)
//	    └── JobStore over a QueryInterceptor
//
// # JobStore
//
// Methods:
//   - Create(ctx, job)
//   - Get(ctx, id) → *models.Job, ResourceNotFoundError when missing
//   - List(ctx, opts...) / Count(ctx, opts...)
//   - UpdateState(ctx, id, state, result, err)
//   - RecordAttempt(ctx, id, attempt) → state running, event "dispatched"
//   - RecordPreemption(ctx, id, attempt) → state queued, event "preempted"
//   - Events(ctx, id)
//
// Updates never move a job out of a terminal state (completed, failed,
// cancelled). Such an update returns JobFinishedError.
//
// # List Options
//
// Each ListOption modifies a squirrel.SelectBuilder and options compose:
//
//	jobs, err := store.Jobs().List(ctx,
//	    store.ByStates(models.JobStateQueued, models.JobStateRunning),
//	    store.ByPriorities("high", "higher"),
//	    store.WithSort([]store.SortParam{{Field: "priority", Desc: true}}),
//	    store.WithLimit(50),
//	    store.WithOffset(0),
//	)
//
// Sort Field Mapping:
//
//	┌──────────────┬─────────────────────────────┐
//	│  API Field   │  Database Column            │
//	├──────────────┼─────────────────────────────┤
//	│  createdAt   │  created_at                 │
//	│  updatedAt   │  updated_at                 │
//	│  priority    │  priority_level             │
//	│  state       │  state                      │
//	│  kind        │  kind                       │
//	│  attempts    │  attempts                   │
//	└──────────────┴─────────────────────────────┘
//
// WithSort always appends id as tie-breaker. WithDefaultSort lists newest first.
//
// # QueryInterceptor
//
// All statements go through a QueryInterceptor that logs them at debug level
// under the "store" logger.
package store
