package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const (
	KindSleep    = "sleep"
	KindChecksum = "checksum"
	KindFail     = "fail"

	defaultSleep    = 100 * time.Millisecond
	sleepTick       = 10 * time.Millisecond
	checksumRounds  = 50000
	checksumCheckIn = 500
)

// Computation is the shape every job kind implements. Input and result are
// opaque strings so jobs can be journaled and served as-is.
type Computation = scheduler.Compute[string, string]

// Registry maps job kinds to computations.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Computation
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Computation)}
}

// NewBuiltinRegistry returns a registry holding sleep, checksum and fail.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSleep, Sleep)
	r.Register(KindChecksum, Checksum)
	r.Register(KindFail, Fail)
	return r
}

func (r *Registry) Register(kind string, fn Computation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = fn
}

func (r *Registry) Lookup(kind string) (Computation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.kinds[kind]
	return fn, ok
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Sleep waits for the duration in input (default 100ms) and yields as soon as
// its token is cancelled.
func Sleep(input string, token *scheduler.Token) (string, error) {
	d := defaultSleep
	if s := strings.TrimSpace(input); s != "" {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return "", fmt.Errorf("invalid sleep duration %q: %w", input, err)
		}
		d = parsed
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(sleepTick)
	defer ticker.Stop()

	for {
		select {
		case <-token.Done():
			return "", token.Err()
		case <-deadline.C:
			return "slept " + d.String(), nil
		case <-ticker.C:
		}
	}
}

// Checksum hashes input repeatedly. Input may be prefixed with "<rounds>:" to
// override the default number of rounds. The token is polled between batches.
func Checksum(input string, token *scheduler.Token) (string, error) {
	rounds := checksumRounds
	payload := input
	if prefix, rest, ok := strings.Cut(input, ":"); ok {
		if n, err := strconv.Atoi(prefix); err == nil {
			if n <= 0 {
				return "", fmt.Errorf("invalid checksum rounds: %d", n)
			}
			rounds, payload = n, rest
		}
	}

	sum := sha256.Sum256([]byte(payload))
	for i := 1; i < rounds; i++ {
		if i%checksumCheckIn == 0 && token.IsCancelled() {
			return "", token.Err()
		}
		sum = sha256.Sum256(sum[:])
	}
	return hex.EncodeToString(sum[:]), nil
}

// Fail always returns an error carrying input as its message.
func Fail(input string, _ *scheduler.Token) (string, error) {
	if input == "" {
		input = "job failed"
	}
	return "", errors.New(input)
}
