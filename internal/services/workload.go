package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	yaml "github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

// workloadFile mirrors the YAML layout. Durations are Go duration strings.
type workloadFile struct {
	Name  string `yaml:"name"`
	Steps []struct {
		Name        string `yaml:"name"`
		Kind        string `yaml:"kind"`
		Priority    string `yaml:"priority"`
		At          string `yaml:"at"`
		Delay       string `yaml:"delay"`
		CancelAfter string `yaml:"cancel_after"`
		Input       string `yaml:"input"`
	} `yaml:"steps"`
}

type Workload struct {
	Name  string
	Steps []WorkloadStep
}

// WorkloadStep is one submission. At is the offset from the start of the
// replay, Delay is passed to SubmitDelayed and CancelAfter, when set, cancels
// the future that long after submission.
type WorkloadStep struct {
	Name        string
	Kind        string
	Priority    scheduler.Priority
	At          time.Duration
	Delay       time.Duration
	CancelAfter time.Duration
	Input       string
}

func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload: %w", err)
	}
	return ParseWorkload(data)
}

// ParseWorkload decodes and validates a workload. Steps are returned ordered by
// At, keeping file order for equal offsets.
func ParseWorkload(data []byte) (*Workload, error) {
	var f workloadFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse workload: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("workload has no steps")
	}

	w := &Workload{Name: f.Name}
	seen := make(map[string]bool)
	for i, s := range f.Steps {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate step name %q", name)
		}
		seen[name] = true

		if s.Kind == "" {
			return nil, fmt.Errorf("step %q: kind is required", name)
		}
		p, err := scheduler.ParsePriority(s.Priority)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", name, err)
		}
		at, err := parseOffset(s.At)
		if err != nil {
			return nil, fmt.Errorf("step %q: at: %w", name, err)
		}
		delay, err := parseOffset(s.Delay)
		if err != nil {
			return nil, fmt.Errorf("step %q: delay: %w", name, err)
		}
		cancelAfter, err := parseOffset(s.CancelAfter)
		if err != nil {
			return nil, fmt.Errorf("step %q: cancel_after: %w", name, err)
		}

		w.Steps = append(w.Steps, WorkloadStep{
			Name:        name,
			Kind:        s.Kind,
			Priority:    p,
			At:          at,
			Delay:       delay,
			CancelAfter: cancelAfter,
			Input:       s.Input,
		})
	}

	sort.SliceStable(w.Steps, func(i, j int) bool { return w.Steps[i].At < w.Steps[j].At })
	return w, nil
}

func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// TimelineEvent is a scheduler event relative to the start of the replay.
type TimelineEvent struct {
	Offset   time.Duration
	Kind     scheduler.EventKind
	Step     string
	Priority scheduler.Priority
	Attempt  int
	Outcome  scheduler.Outcome
	Duration time.Duration
}

type StepResult struct {
	Step     string
	Priority scheduler.Priority
	Attempts int
	Result   string
	Err      error
}

type Timeline struct {
	Workload string
	Events   []TimelineEvent
	// Results follow the order of the workload steps.
	Results []StepResult
	Elapsed time.Duration
}

// Replayer runs a workload against a private scheduler and records what
// happened.
type Replayer struct {
	registry *Registry
	log      *zap.SugaredLogger
}

func NewReplayer(registry *Registry) *Replayer {
	return &Replayer{registry: registry, log: zap.S().Named("replayer")}
}

func (r *Replayer) Run(ctx context.Context, w *Workload) (*Timeline, error) {
	for _, step := range w.Steps {
		if _, ok := r.registry.Lookup(step.Kind); !ok {
			return nil, fmt.Errorf("step %q: unknown job kind %q", step.Name, step.Kind)
		}
	}

	start := time.Now()
	var (
		mu     sync.Mutex
		events []TimelineEvent
	)
	recorder := scheduler.ObserverFunc(func(e scheduler.Event) {
		switch e.Kind {
		case scheduler.EventDispatched, scheduler.EventPreemptSignal, scheduler.EventFinished, scheduler.EventDropped:
		default:
			return
		}
		mu.Lock()
		events = append(events, TimelineEvent{
			Offset:   e.Time.Sub(start),
			Kind:     e.Kind,
			Step:     e.Label,
			Priority: e.Priority,
			Attempt:  e.Attempt,
			Outcome:  e.Outcome,
			Duration: e.Duration,
		})
		mu.Unlock()
	})

	s := scheduler.NewScheduler(scheduler.WithObserver(recorder), scheduler.WithLogger(r.log))
	defer s.Close()

	futures := make([]*scheduler.Future[string], 0, len(w.Steps))
	var timers []*time.Timer
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for _, step := range w.Steps {
		wait := time.Until(start.Add(step.At))
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		fn, _ := r.registry.Lookup(step.Kind)
		f := scheduler.SubmitDelayed(s, step.Priority, fn, step.Input, step.Delay, scheduler.WithLabel(step.Name))
		if step.CancelAfter > 0 {
			timers = append(timers, time.AfterFunc(step.CancelAfter, func() { f.Cancel() }))
		}
		futures = append(futures, f)
		r.log.Debugw("step submitted", "step", step.Name, "priority", step.Priority)
	}

	results := make([]StepResult, len(w.Steps))
	for i, f := range futures {
		data, err := f.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results[i] = StepResult{
			Step:     w.Steps[i].Name,
			Priority: w.Steps[i].Priority,
			Result:   data,
			Err:      err,
		}
	}
	elapsed := time.Since(start)

	// a cancelled step may still be running; its finish event belongs in the timeline
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	attempts := make(map[string]int)
	for _, e := range events {
		if e.Kind == scheduler.EventDispatched && e.Attempt > attempts[e.Step] {
			attempts[e.Step] = e.Attempt
		}
	}
	for i := range results {
		results[i].Attempts = attempts[results[i].Step]
	}

	return &Timeline{
		Workload: w.Name,
		Events:   append([]TimelineEvent(nil), events...),
		Results:  results,
		Elapsed:  elapsed,
	}, nil
}
