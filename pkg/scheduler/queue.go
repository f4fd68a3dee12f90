package scheduler

import (
	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// task is the type-erased descriptor the scheduler moves between the queue
// table and the worker. compute and input are bound inside run.
type task struct {
	priority Priority
	label    string
	run      func(token *Token) (any, error)
	complete func(v any) bool
	fail     func(err error) bool
	// cancelled reports whether the caller cancelled the future.
	cancelled func() bool
	attempts  int
}

// queueTable maps each priority to a FIFO list of pending tasks.
type queueTable struct {
	levels map[Priority]*doublylinkedlist.List
}

func newQueueTable() *queueTable {
	q := &queueTable{levels: make(map[Priority]*doublylinkedlist.List)}
	for _, p := range Priorities() {
		q.levels[p] = doublylinkedlist.New()
	}
	return q
}

func (q *queueTable) pushBack(t *task) {
	q.levels[t.priority].Append(t)
}

// pushFront puts a preempted task ahead of the tasks of its level that have not started.
func (q *queueTable) pushFront(t *task) {
	q.levels[t.priority].Prepend(t)
}

// highest returns the highest priority level holding at least one task.
func (q *queueTable) highest() (Priority, bool) {
	for _, p := range Priorities() {
		if !q.levels[p].Empty() {
			return p, true
		}
	}
	return 0, false
}

func (q *queueTable) peek(p Priority) *task {
	v, ok := q.levels[p].Get(0)
	if !ok {
		return nil
	}
	return v.(*task)
}

func (q *queueTable) popFront(p Priority) *task {
	l := q.levels[p]
	v, ok := l.Get(0)
	if !ok {
		return nil
	}
	l.Remove(0)
	return v.(*task)
}

func (q *queueTable) remove(t *task) bool {
	l := q.levels[t.priority]
	i := l.IndexOf(t)
	if i < 0 {
		return false
	}
	l.Remove(i)
	return true
}

func (q *queueTable) len(p Priority) int {
	return q.levels[p].Size()
}

func (q *queueTable) total() int {
	n := 0
	for _, l := range q.levels {
		n += l.Size()
	}
	return n
}

// drain empties every level, highest first.
func (q *queueTable) drain() []*task {
	var out []*task
	for _, p := range Priorities() {
		for _, v := range q.levels[p].Values() {
			out = append(out, v.(*task))
		}
		q.levels[p].Clear()
	}
	return out
}
