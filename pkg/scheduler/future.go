package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type futureState int

const (
	futurePending futureState = iota
	futureResolved
	futureCancelled
)

// Future is the caller's handle on a submitted task. It outlives every
// preemption of the task and resolves exactly once.
type Future[T any] struct {
	mu        sync.Mutex
	state     futureState
	result    Result[T]
	done      chan struct{}
	callbacks []func(Result[T])
	// onCancel lets the scheduler drop a task that has not started yet.
	onCancel func()
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Cancel resolves the future with ErrCancelled. It returns false if the future
// was already resolved or cancelled. A running task is not interrupted: its
// result is discarded once it returns.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.state != futurePending {
		f.mu.Unlock()
		return false
	}
	f.state = futureCancelled
	f.result = Result[T]{Err: ErrCancelled}
	callbacks, onCancel := f.release()
	f.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
	f.notify(callbacks)
	return true
}

func (f *Future[T]) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != futurePending
}

func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == futureCancelled
}

// Done is closed once the future is resolved or cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// OnComplete registers a continuation. Futures resolved by the scheduler run
// their continuations on its notifier goroutine, never on the worker. A
// cancelled future runs them on the cancelling goroutine, and an already
// done future runs fn immediately. A panicking continuation is logged and
// does not affect the others.
func (f *Future[T]) OnComplete(fn func(Result[T])) {
	f.mu.Lock()
	if f.state == futurePending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()
	invoke(fn, r)
}

// C returns a channel that receives the result once.
func (f *Future[T]) C() <-chan Result[T] {
	c := make(chan Result[T], 1)
	f.OnComplete(func(r Result[T]) {
		c <- r
	})
	return c
}

// Wait blocks until the future is done or ctx expires.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		r := f.result
		f.mu.Unlock()
		return r.Data, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(v T) bool {
	return f.resolve(Result[T]{Data: v})
}

func (f *Future[T]) fail(err error) bool {
	return f.resolve(Result[T]{Err: err})
}

func (f *Future[T]) resolve(r Result[T]) bool {
	f.mu.Lock()
	if f.state != futurePending {
		f.mu.Unlock()
		return false
	}
	f.state = futureResolved
	f.result = r
	callbacks, _ := f.release()
	f.mu.Unlock()

	f.notify(callbacks)
	return true
}

func (f *Future[T]) setOnCancel(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCancel = fn
}

// release must be called with f.mu held.
func (f *Future[T]) release() ([]func(Result[T]), func()) {
	close(f.done)
	callbacks, onCancel := f.callbacks, f.onCancel
	f.callbacks, f.onCancel = nil, nil
	return callbacks, onCancel
}

func (f *Future[T]) notify(callbacks []func(Result[T])) {
	r := f.result
	for _, fn := range callbacks {
		invoke(fn, r)
	}
}

func invoke[T any](fn func(Result[T]), r Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Named("scheduler").Errorw("future continuation panicked", "panic", rec)
		}
	}()
	fn(r)
}
