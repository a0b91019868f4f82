package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Timer is an in-process trigger scheduler.
//
// Pending triggers sit in a min-heap ordered by firing instant. The Run
// loop sleeps until the earliest instant, pops every due trigger, and hands
// each to the handler synchronously, so a single draw's lock and draw
// triggers are delivered in instant order.
//
// Thread-safety model:
//   - ScheduleAt(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Durability is out of scope here: the serve loop re-arms triggers for
// running draws from the store on startup, which is where the at-least-once
// (and therefore possibly-duplicate) delivery guarantee comes from.
type Timer struct {
	mu      sync.Mutex
	pending triggerHeap
	closed  bool
	signal  chan struct{} // coalesced wake-up for the Run loop
	handler Handler
}

// NewTimer creates a scheduler delivering to handler.
func NewTimer(handler Handler) *Timer {
	return &Timer{
		signal:  make(chan struct{}, 1),
		handler: handler,
	}
}

// ScheduleAt enqueues a trigger. Instants in the past are delivered on the
// next loop iteration. Returns false if the scheduler has shut down.
func (t *Timer) ScheduleAt(trig Trigger) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	heap.Push(&t.pending, trig)

	// Non-blocking signal; a buffer of one coalesces bursts.
	select {
	case t.signal <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of pending triggers.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}

// Run delivers triggers until ctx is cancelled. Returns ctx.Err().
func (t *Timer) Run(ctx context.Context) error {
	defer t.close()

	for {
		for _, trig := range t.takeDue(time.Now()) {
			t.handler.HandleTrigger(ctx, trig)
		}

		wait := t.untilNext()
		var timer *time.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-t.signal:
			// New trigger; recompute the wait.
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// takeDue pops every trigger with FireAt <= now.
func (t *Timer) takeDue(now time.Time) []Trigger {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []Trigger
	for t.pending.Len() > 0 && !t.pending[0].FireAt.After(now) {
		due = append(due, heap.Pop(&t.pending).(Trigger))
	}
	return due
}

// untilNext returns the wait until the earliest pending trigger, or -1
// when the heap is empty (wait for a signal instead).
func (t *Timer) untilNext() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending.Len() == 0 {
		return -1
	}
	wait := time.Until(t.pending[0].FireAt)
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (t *Timer) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// triggerHeap is a min-heap ordered by firing instant.
type triggerHeap []Trigger

func (h triggerHeap) Len() int           { return len(h) }
func (h triggerHeap) Less(i, j int) bool { return h[i].FireAt.Before(h[j].FireAt) }
func (h triggerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *triggerHeap) Push(x any) { *h = append(*h, x.(Trigger)) }

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	// Zero the slot so the backing array doesn't retain the value.
	old[n-1] = Trigger{}
	*h = old[:n-1]
	return x
}
