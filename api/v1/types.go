package v1

import "time"

// JobRequest is the body of POST /jobs.
type JobRequest struct {
	Kind string `json:"kind" binding:"required"`
	// Priority is one of below_low, low, normal, high, higher. Empty means the
	// server default.
	Priority string `json:"priority,omitempty"`
	// Delay is a Go duration string such as "500ms".
	Delay string `json:"delay,omitempty"`
	Input string `json:"input,omitempty"`
}

type JobState string

const (
	JobStateDelayed   JobState = "delayed"
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

type Job struct {
	Id          string    `json:"id"`
	Kind        string    `json:"kind"`
	Priority    string    `json:"priority"`
	State       JobState  `json:"state"`
	Input       string    `json:"input,omitempty"`
	Result      *string   `json:"result,omitempty"`
	Error       *string   `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	Preemptions int       `json:"preemptions"`
	Delay       string    `json:"delay,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type JobListResponse struct {
	Jobs      []Job `json:"jobs"`
	Page      int   `json:"page"`
	PageCount int   `json:"pageCount"`
	Total     int   `json:"total"`
}

type JobEvent struct {
	Kind    string    `json:"kind"`
	Attempt int       `json:"attempt"`
	Time    time.Time `json:"time"`
}

type SchedulerStatus struct {
	Running         bool           `json:"running"`
	CurrentPriority *string        `json:"currentPriority,omitempty"`
	CurrentJob      *string        `json:"currentJob,omitempty"`
	Pending         map[string]int `json:"pending"`
	TotalPending    int            `json:"totalPending"`
	Delayed         int            `json:"delayed"`
	Closed          bool           `json:"closed"`
	Kinds           []string       `json:"kinds"`
}

type Error struct {
	Error string `json:"error"`
}

// GetJobsParams are the query parameters of GET /jobs.
type GetJobsParams struct {
	State    []string `form:"state"`
	Priority []string `form:"priority"`
	Kind     []string `form:"kind"`
	Sort     []string `form:"sort"`
	Page     *int     `form:"page"`
	PageSize *int     `form:"pageSize"`
}
