package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects delivered triggers.
type recordingHandler struct {
	mu        sync.Mutex
	delivered []Trigger
	notify    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{notify: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleTrigger(_ context.Context, t Trigger) {
	h.mu.Lock()
	h.delivered = append(h.delivered, t)
	h.mu.Unlock()
	h.notify <- struct{}{}
}

func (h *recordingHandler) snapshot() []Trigger {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Trigger, len(h.delivered))
	copy(out, h.delivered)
	return out
}

func waitForDeliveries(t *testing.T, h *recordingHandler, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-h.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d deliveries, got %d", n, len(h.snapshot()))
		}
	}
}

func TestTimer_DeliversDueTrigger(t *testing.T) {
	h := newRecordingHandler()
	timer := NewTimer(h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timer.Run(ctx)

	drawAt := time.Now().Add(10 * time.Millisecond)
	timer.ScheduleAt(NewTrigger(KindDraw, 42, drawAt, drawAt))

	waitForDeliveries(t, h, 1)
	got := h.snapshot()
	if got[0].TopicID != 42 || got[0].Kind != KindDraw {
		t.Errorf("delivered %+v, want draw trigger for topic 42", got[0])
	}
}

func TestTimer_PastInstantFiresImmediately(t *testing.T) {
	h := newRecordingHandler()
	timer := NewTimer(h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timer.Run(ctx)

	past := time.Now().Add(-time.Hour)
	timer.ScheduleAt(NewTrigger(KindDraw, 42, past, past))

	waitForDeliveries(t, h, 1)
}

func TestTimer_DeliversInInstantOrder(t *testing.T) {
	h := newRecordingHandler()
	timer := NewTimer(h)

	// Schedule out of order before starting the loop, so both are due
	// together and ordering comes from the heap alone.
	now := time.Now()
	timer.ScheduleAt(NewTrigger(KindDraw, 42, now.Add(20*time.Millisecond), now))
	timer.ScheduleAt(NewTrigger(KindLock, 42, now.Add(5*time.Millisecond), now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timer.Run(ctx)

	waitForDeliveries(t, h, 2)
	got := h.snapshot()
	if got[0].Kind != KindLock || got[1].Kind != KindDraw {
		t.Errorf("delivery order = [%s %s], want [lock draw]", got[0].Kind, got[1].Kind)
	}
}

func TestTimer_StopsOnContextCancel(t *testing.T) {
	timer := NewTimer(newRecordingHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- timer.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not stop on cancellation")
	}

	// After shutdown, new triggers are refused.
	if timer.ScheduleAt(NewTrigger(KindDraw, 1, time.Now(), time.Now())) {
		t.Error("ScheduleAt() after shutdown should return false")
	}
}

func TestTimer_PendingCount(t *testing.T) {
	timer := NewTimer(newRecordingHandler())
	future := time.Now().Add(time.Hour)
	timer.ScheduleAt(NewTrigger(KindDraw, 1, future, future))
	timer.ScheduleAt(NewTrigger(KindLock, 1, future, future))
	if got := timer.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}
