package models

import (
	"fmt"
	"time"
)

type JobState string

const (
	// JobStateDelayed - waiting for its delay to elapse, not yet queued
	JobStateDelayed JobState = "delayed"
	// JobStateQueued - waiting in its priority level
	JobStateQueued JobState = "queued"
	// JobStateRunning - dispatched to the worker
	JobStateRunning JobState = "running"
	// JobStateCompleted - computation returned a value
	JobStateCompleted JobState = "completed"
	// JobStateFailed - computation returned an error or the scheduler closed
	JobStateFailed JobState = "failed"
	// JobStateCancelled - cancelled by the caller
	JobStateCancelled JobState = "cancelled"
)

func ParseJobState(s string) (JobState, error) {
	switch JobState(s) {
	case JobStateDelayed, JobStateQueued, JobStateRunning,
		JobStateCompleted, JobStateFailed, JobStateCancelled:
		return JobState(s), nil
	default:
		return "", fmt.Errorf("invalid job state: %s", s)
	}
}

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

type Job struct {
	ID          string
	Kind        string
	Priority    string
	State       JobState
	Input       string
	Result      string
	Error       string
	Attempts    int
	Preemptions int
	Delay       time.Duration
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobRequest is what a client submits. Priority may be empty for the default.
type JobRequest struct {
	Kind     string
	Priority string
	Delay    time.Duration
	Input    string
}

// JobFilter narrows a job listing. Zero values mean no filter.
type JobFilter struct {
	States     []JobState
	Priorities []string
	Kinds      []string
	Limit      uint64
	Offset     uint64
}

type JobList struct {
	Jobs  []Job
	Total int
}

// JobEvent is one entry of a job's dispatch history.
type JobEvent struct {
	Kind    string
	Attempt int
	Time    time.Time
}
