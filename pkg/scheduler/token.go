package scheduler

import (
	"sync"
	"sync/atomic"
)

// Token is the cooperative cancellation flag of one dispatch attempt.
// The scheduler cancels it to ask the running task to yield; the task is never
// interrupted otherwise.
type Token struct {
	cancelled atomic.Bool
	done      chan struct{}

	mu       sync.Mutex
	callback func()
}

func newToken() *Token {
	return &Token{done: make(chan struct{})}
}

func (t *Token) IsCancelled() bool {
	return t.cancelled.Load()
}

// Done is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Err returns ErrPreempted once the token is cancelled, nil before.
func (t *Token) Err() error {
	if t.IsCancelled() {
		return ErrPreempted
	}
	return nil
}

// RegisterCancel sets the callback run on cancellation, replacing any earlier one.
// If the token is already cancelled the callback runs right away.
func (t *Token) RegisterCancel(fn func()) {
	t.mu.Lock()
	if !t.cancelled.Load() {
		t.callback = fn
		t.mu.Unlock()
		return
	}
	t.callback = nil
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// cancel flips the flag and returns the registered callback, if any, for the
// caller to run once it has released its own locks. Only the first call
// returns a callback.
func (t *Token) cancel() func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled.Load() {
		return nil
	}
	t.cancelled.Store(true)
	close(t.done)

	fn := t.callback
	t.callback = nil
	return fn
}
