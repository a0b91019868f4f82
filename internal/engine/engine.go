// Package engine orchestrates the draw lifecycle: creation and
// reconciliation of draws, trigger handling, and execution at the draw
// instant.
//
// The engine owns no clock, no timers, and no transport. Time triggers
// arrive from a scheduler with at-least-once semantics, thread content and
// notification delivery live behind collaborator interfaces, and the one
// point of mutual exclusion — the Running->terminal status transition — is
// delegated to the store's compare-and-set. Everything ahead of that commit
// point may run redundantly and be discarded.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/scheduler"
	"github.com/raffleworks/topicdraw/internal/selection"
	"github.com/raffleworks/topicdraw/internal/store"
)

// Notifier delivers the engine's side effects to the hosting platform.
//
// All methods are fire-and-forget from the engine's perspective: they run
// only after a terminal transition has committed, and a delivery failure is
// logged, never allowed to disturb the draw's state.
type Notifier interface {
	// PostAnnouncement publishes a system post in the draw's topic.
	PostAnnouncement(ctx context.Context, topicID int64, body string) error
	// SendPrivateMessage delivers a direct message to one user.
	SendPrivateMessage(ctx context.Context, userID int64, title, body string) error
	// UpdateTags swaps the topic's draw tag ("draw-open", "draw-complete",
	// "draw-cancelled").
	UpdateTags(ctx context.Context, topicID int64, tag string) error
	// CloseTopic closes the topic once results are posted.
	CloseTopic(ctx context.Context, topicID int64) error
	// LockFirstPost freezes the opening post when the edit window closes.
	LockFirstPost(ctx context.Context, topicID int64) error
}

// PermissionChecker answers whether a user may create a draw in a topic.
// Category allow-lists and excluded creator groups live behind it.
type PermissionChecker interface {
	CanCreateDraw(ctx context.Context, userID, topicID int64) (bool, error)
}

// TriggerScheduler accepts future trigger requests. Implementations need
// not support retraction; the engine detects and drops stale triggers.
type TriggerScheduler interface {
	ScheduleAt(t scheduler.Trigger) bool
}

// Tags applied to the hosting topic as the draw moves through its states.
const (
	TagOpen      = "draw-open"
	TagComplete  = "draw-complete"
	TagCancelled = "draw-cancelled"
)

// Engine wires the draw components together.
type Engine struct {
	store     *store.Store
	deriver   *participant.Deriver
	selector  *selection.Selector
	sched     TriggerScheduler
	notifier  Notifier
	perms     PermissionChecker
	validator draw.Validator
	logger    *slog.Logger
	now       func() time.Time

	enabled        bool
	lockDelay      time.Duration
	excludedGroups []string
}

// Options configures an Engine.
type Options struct {
	Store     *store.Store
	Deriver   *participant.Deriver
	Selector  *selection.Selector
	Scheduler TriggerScheduler
	Notifier  Notifier
	Perms     PermissionChecker
	Logger    *slog.Logger

	// Enabled gates creation; a disabled engine rejects new draws but
	// still executes ones already scheduled.
	Enabled bool
	// GlobalMinimum is the site-wide participant floor.
	GlobalMinimum int
	// LockDelay is how long before the draw instant edits freeze.
	LockDelay time.Duration
	// ExcludedGroups are group names whose members never participate.
	ExcludedGroups []string

	// Now overrides the wall clock; tests only. Defaults to time.Now.
	Now func() time.Time
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Selector == nil {
		opts.Selector = selection.NewSelector()
	}
	return &Engine{
		store:          opts.Store,
		deriver:        opts.Deriver,
		selector:       opts.Selector,
		sched:          opts.Scheduler,
		notifier:       opts.Notifier,
		perms:          opts.Perms,
		validator:      draw.Validator{GlobalMinimum: opts.GlobalMinimum},
		logger:         opts.Logger,
		now:            opts.Now,
		enabled:        opts.Enabled,
		lockDelay:      opts.LockDelay,
		excludedGroups: opts.ExcludedGroups,
	}
}

// Snapshot returns the current draw for a topic, or draw.ErrNotFound.
func (e *Engine) Snapshot(ctx context.Context, topicID int64) (*draw.Draw, error) {
	return e.store.GetDraw(ctx, topicID)
}
