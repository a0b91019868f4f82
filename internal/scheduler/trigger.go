// Package scheduler delivers time triggers to the draw engine.
//
// The engine only states what must run and when; this package is the
// bundled in-process implementation of that contract. Delivery is
// at-least-once: a trigger fires at-or-after its instant, may fire late,
// and may be duplicated (re-arming on startup re-enqueues triggers whose
// instants already passed). Handlers are required to be idempotent, which
// the engine guarantees through its status checks.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two time-triggered actions of a draw.
type Kind string

const (
	// KindLock freezes further edits ahead of the draw instant.
	KindLock Kind = "lock"
	// KindDraw executes the draw.
	KindDraw Kind = "draw"
)

// Trigger is one scheduled firing.
//
// DrawAt captures the draw instant the trigger was scheduled against.
// Triggers are never retracted when a draw is edited; instead the handler
// compares DrawAt with the draw's current config and drops mismatches as
// stale. That comparison is what makes obsolete triggers harmless.
type Trigger struct {
	ID      string
	Kind    Kind
	TopicID int64
	FireAt  time.Time
	DrawAt  time.Time
}

// NewTrigger builds a trigger with a fresh ID for log correlation.
func NewTrigger(kind Kind, topicID int64, fireAt, drawAt time.Time) Trigger {
	return Trigger{
		ID:      uuid.NewString(),
		Kind:    kind,
		TopicID: topicID,
		FireAt:  fireAt,
		DrawAt:  drawAt,
	}
}

// Handler consumes fired triggers. Implementations must tolerate duplicate
// and stale deliveries.
type Handler interface {
	HandleTrigger(ctx context.Context, t Trigger)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Trigger)

// HandleTrigger calls f.
func (f HandlerFunc) HandleTrigger(ctx context.Context, t Trigger) { f(ctx, t) }
