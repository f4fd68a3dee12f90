package scheduler

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// notifier resolves futures on its own goroutine, in the order the worker
// hands them over, so continuations never hold up dispatch.
type notifier struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	signal  chan struct{}
	done    chan struct{}
	gid     atomic.Uint64
	log     *zap.SugaredLogger
}

func newNotifier(log *zap.SugaredLogger) *notifier {
	n := &notifier{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		log:    log,
	}
	go n.run()
	return n
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	n.pending = append(n.pending, fn)
	n.mu.Unlock()
	n.wake()
}

// close lets the goroutine exit once everything pushed so far has run.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.wake()
}

func (n *notifier) wake() {
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	n.gid.Store(goroutineID())
	defer close(n.done)
	for {
		n.mu.Lock()
		batch, closed := n.pending, n.closed
		n.pending = nil
		n.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-n.signal
			continue
		}
		for _, fn := range batch {
			n.call(fn)
		}
	}
}

func (n *notifier) call(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			n.log.Errorw("future resolution panicked", "panic", rec)
		}
	}()
	fn()
}

// goroutineID parses the id from the "goroutine N [state]:" header of the
// current stack. It only serves Close to detect calls from the scheduler's
// own goroutines.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
