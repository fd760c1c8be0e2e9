package resume

import (
	"sync"
	"time"
)

// Scheduler runs f after d and returns a handle that cancels it if it has not run yet.
type Scheduler func(d time.Duration, f func()) (cancel func())

func afterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// tasks tracks the delayed actions of one attempt so they die with it.
type tasks struct {
	mu      sync.Mutex
	next    int
	pending map[int]func()
	closed  bool
}

// add schedules f unless the set has been drained, and reports whether it did.
func (t *tasks) add(schedule Scheduler, d time.Duration, f func()) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if t.pending == nil {
		t.pending = make(map[int]func())
	}
	id := t.next
	t.next++
	t.pending[id] = nil
	t.mu.Unlock()

	// the lock is released so a synchronous scheduler can run the task inline
	cancel := schedule(d, func() {
		if t.done(id) {
			f()
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; ok {
		t.pending[id] = cancel
	}
	return true
}

// done removes a fired task and reports whether it was still pending.
func (t *tasks) done(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}

// drain cancels every pending task, refuses later ones and returns how many were pending.
func (t *tasks) drain() int {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.closed = true
	t.mu.Unlock()

	for _, cancel := range pending {
		if cancel != nil {
			cancel()
		}
	}
	return len(pending)
}

// size returns the number of tasks that have not fired.
func (t *tasks) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
