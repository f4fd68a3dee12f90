// Package handlers implements the HTTP API layer for prioschedd.
//
// Handlers delegate to the services layer and focus on request validation,
// response formatting and HTTP semantics.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     HTTP Request (Gin)                          │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Handler (this package)                     │
//	│  - Request validation                                           │
//	│  - Parameter parsing                                            │
//	│  - Error mapping to HTTP status codes                           │
//	│  - Model-to-API conversion                                      │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Services Layer                             │
//	│                        JobService                               │
//	└─────────────────────────────────────────────────────────────────┘
//
// Handler implements v1.ServerInterface and is registered with:
//
//	v1.RegisterHandlers(router, handler)
//
// # API Endpoints
//
//	┌────────┬───────────────────┬──────────────────────────────────────────┐
//	│ Method │ Endpoint          │ Description                              │
//	├────────┼───────────────────┼──────────────────────────────────────────┤
//	│ POST   │ /jobs             │ Submit a job (202 Accepted)              │
//	│ GET    │ /jobs             │ List jobs with filtering/pagination      │
//	│ GET    │ /jobs/{id}        │ Get one job                              │
//	│ DELETE │ /jobs/{id}        │ Cancel a job                             │
//	│ GET    │ /jobs/{id}/events │ Dispatch and preemption history          │
//	│ GET    │ /scheduler        │ Scheduler state and pending counts       │
//	└────────┴───────────────────┴──────────────────────────────────────────┘
//
// # Submitting
//
// POST /jobs:
//
//	{
//	    "kind": "checksum",      // required, see GET /scheduler for kinds
//	    "priority": "high",      // below_low|low|normal|high|higher
//	    "delay": "500ms",        // optional admission delay
//	    "input": "20000:data"
//	}
//
// Errors:
//   - 400 Bad Request: unknown kind, priority or malformed delay
//   - 503 Service Unavailable: scheduler shutting down
//
// # Listing
//
// Query Parameters:
//
//	┌────────────┬──────────┬─────────────────────────────────────────────┐
//	│ Parameter  │ Type     │ Description                                 │
//	├────────────┼──────────┼─────────────────────────────────────────────┤
//	│ state      │ []string │ Filter by job state (OR logic)              │
//	│ priority   │ []string │ Filter by priority (OR logic)               │
//	│ kind       │ []string │ Filter by kind (OR logic)                   │
//	│ sort       │ []string │ Sort fields, "-" prefix for descending      │
//	│ page       │ int      │ Page number (default: 1)                    │
//	│ pageSize   │ int      │ Items per page (default: 20, max: 100)      │
//	└────────────┴──────────┴─────────────────────────────────────────────┘
//
// Example: /jobs?state=queued,running&sort=-priority&page=1&pageSize=50
//
// # Cancelling
//
// DELETE /jobs/{id} returns the cancelled job. A running job finishes its
// current pass and its result is discarded.
//
// Errors:
//   - 404 Not Found: unknown job
//   - 409 Conflict: job already completed, failed or cancelled
package handlers
