package sched

import (
	"container/heap"
	"sync"
	"time"
)

// Virtual is a manually driven scheduler. Actions run only from AdvanceBy,
// AdvanceTo or Flush, on the calling goroutine, in due-time order; actions with
// equal due times run in scheduling order.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue actionQueue
}

// NewVirtual returns a virtual scheduler whose clock starts at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) Schedule(delay time.Duration, action func()) func() {
	if delay < 0 {
		delay = 0
	}
	v.mu.Lock()
	v.seq++
	it := &scheduled{due: v.now.Add(delay), seq: v.seq, action: action}
	heap.Push(&v.queue, it)
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if it.index >= 0 {
			heap.Remove(&v.queue, it.index)
		}
	}
}

// Flush runs every action that is due at the current virtual time.
func (v *Virtual) Flush() {
	v.AdvanceBy(0)
}

// AdvanceBy moves the clock forward by d, running due actions on the way.
func (v *Virtual) AdvanceBy(d time.Duration) {
	v.AdvanceTo(v.Now().Add(d))
}

// AdvanceTo moves the clock to t, running due actions on the way. Actions
// scheduled while advancing run too if they fall due before t.
func (v *Virtual) AdvanceTo(t time.Time) {
	for {
		v.mu.Lock()
		if len(v.queue) == 0 || v.queue[0].due.After(t) {
			if t.After(v.now) {
				v.now = t
			}
			v.mu.Unlock()
			return
		}
		it := heap.Pop(&v.queue).(*scheduled)
		if it.due.After(v.now) {
			v.now = it.due
		}
		v.mu.Unlock()

		it.action()
	}
}

// Step runs the earliest pending action, moving the clock to its due time
// if needed. It reports false when nothing is pending.
func (v *Virtual) Step() bool {
	v.mu.Lock()
	if len(v.queue) == 0 {
		v.mu.Unlock()
		return false
	}
	it := heap.Pop(&v.queue).(*scheduled)
	if it.due.After(v.now) {
		v.now = it.due
	}
	v.mu.Unlock()

	it.action()
	return true
}

// Pending returns the number of actions waiting to run.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

type scheduled struct {
	due    time.Time
	seq    uint64
	action func()
	index  int
}

type actionQueue []*scheduled

func (q actionQueue) Len() int { return len(q) }

func (q actionQueue) Less(i, j int) bool {
	if !q[i].due.Equal(q[j].due) {
		return q[i].due.Before(q[j].due)
	}
	return q[i].seq < q[j].seq
}

func (q actionQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *actionQueue) Push(x any) {
	it := x.(*scheduled)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}
