package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled is the result of a future cancelled by its caller.
	ErrCancelled = errors.New("task cancelled")
	// ErrPreempted is returned by Token.Err once the scheduler asked the task to yield.
	ErrPreempted = errors.New("task preempted")
	// ErrClosed is the result of work still pending when the scheduler was closed.
	ErrClosed = errors.New("scheduler closed")
)

type Priority int

const (
	BelowLow Priority = iota
	Low
	Normal
	High
	Higher
)

// Priorities lists every level from highest to lowest, the dispatch scan order.
func Priorities() []Priority {
	return []Priority{Higher, High, Normal, Low, BelowLow}
}

func (p Priority) Valid() bool {
	return p >= BelowLow && p <= Higher
}

func (p Priority) String() string {
	switch p {
	case BelowLow:
		return "below_low"
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Higher:
		return "higher"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "below_low", "belowlow", "below-low":
		return BelowLow, nil
	case "low":
		return Low, nil
	case "normal", "":
		return Normal, nil
	case "high":
		return High, nil
	case "higher":
		return Higher, nil
	default:
		return 0, fmt.Errorf("invalid priority: %q", s)
	}
}

// Compute is the unit of work. It must be safe to re-run from input: a preempted
// task starts over with a fresh token.
type Compute[I, R any] func(input I, token *Token) (R, error)

type Result[T any] struct {
	Data T
	Err  error
}

// Outcome is how one dispatch attempt ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
	OutcomePreempted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomePreempted:
		return "preempted"
	default:
		return "unknown"
	}
}

type Stats struct {
	Running         bool
	CurrentPriority Priority
	CurrentLabel    string
	Pending         map[Priority]int
	Delayed         int
	Closed          bool
}

// TotalPending sums pending tasks over all levels.
func (s Stats) TotalPending() int {
	total := 0
	for _, n := range s.Pending {
		total += n
	}
	return total
}
