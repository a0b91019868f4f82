package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/raffleworks/topicdraw/internal/announce"
	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/scheduler"
	"github.com/raffleworks/topicdraw/internal/selection"
)

// Outcome reports what one Execute call did.
//
// Applied is true only for the call that committed the terminal
// transition; duplicate and stale invocations return Applied=false with
// the draw's current status.
type Outcome struct {
	Status  draw.State
	Winners []draw.Winner
	Reason  string
	Applied bool
}

// Execute runs the draw for a topic. Invoked by the scheduler at the draw
// instant, and by the admin CLI.
//
// The status check comes before any derivation work: a non-Running draw
// means a duplicate or obsolete trigger, and the call returns immediately
// with no side effects. The terminal transition itself is the store's
// compare-and-set, so of two racing executions exactly one owns the
// announcements.
//
// A draw must never stay Running past its instant: any internal failure
// after the status check is converted into a cancellation rather than
// propagated.
func (e *Engine) Execute(ctx context.Context, topicID int64) (Outcome, error) {
	d, err := e.store.GetDraw(ctx, topicID)
	if errors.Is(err, draw.ErrNotFound) {
		// Superseded and deleted since scheduling; nothing to resolve.
		e.logger.Warn("draw trigger for unknown topic", "topic_id", topicID)
		return Outcome{}, err
	}
	if err != nil {
		return Outcome{}, err
	}
	if d.Status != draw.StateRunning {
		e.logger.Info("skipping execution of concluded draw",
			"topic_id", topicID, "status", d.Status)
		return Outcome{Status: d.Status, Winners: d.Winners, Applied: false}, nil
	}

	outcome, err := e.runDraw(ctx, d)
	if err != nil {
		// Cancellation is the safe terminal default on failure; the
		// cause goes to the log, not the caller.
		e.logger.Error("draw execution failed, cancelling",
			"topic_id", topicID, "error", err)
		return e.cancelDraw(ctx, d, fmt.Sprintf("internal error: %v", err))
	}
	return outcome, nil
}

// runDraw performs steps 2-4: derive, check the participation floor, select.
func (e *Engine) runDraw(ctx context.Context, d *draw.Draw) (Outcome, error) {
	participants, err := e.deriver.Derive(ctx, d.TopicID, d.InitiatorID, e.excludedGroups)
	if err != nil {
		return Outcome{}, err
	}
	e.logger.Info("derived participants",
		"topic_id", d.TopicID, "eligible", len(participants), "minimum", d.Config.MinParticipants)

	if len(participants) < d.Config.MinParticipants {
		if d.Config.Backup == draw.BackupCancel {
			reason := fmt.Sprintf("insufficient participants: need %d, have %d",
				d.Config.MinParticipants, len(participants))
			return e.cancelDraw(ctx, d, reason)
		}
		e.logger.Info("participants below minimum, continuing per backup strategy",
			"topic_id", d.TopicID)
	}

	result, err := e.selector.Select(participants, d.Config.Policy)
	if errors.Is(err, selection.ErrNoEligibleWinners) {
		return e.cancelDraw(ctx, d, "all specified positions invalid")
	}
	if err != nil {
		return Outcome{}, err
	}
	for _, pos := range result.SkippedPositions {
		e.logger.Warn("specified position has no eligible participant",
			"topic_id", d.TopicID, "position", pos)
	}

	return e.finishDraw(ctx, d, result.Winners)
}

// finishDraw commits Running->Finished and, only if this call won the
// commit, delivers the results to the platform.
func (e *Engine) finishDraw(ctx context.Context, d *draw.Draw, winners []draw.Winner) (Outcome, error) {
	now := e.now()
	applied, err := e.store.FinishDraw(ctx, d.TopicID, winners, now)
	if err != nil {
		return Outcome{}, err
	}
	if !applied {
		e.logger.Info("lost finish race, skipping side effects", "topic_id", d.TopicID)
		return Outcome{Status: draw.StateFinished, Applied: false}, nil
	}
	if err := d.Finish(winners, now); err != nil {
		// The store committed; the in-memory copy cannot disagree.
		return Outcome{}, err
	}
	e.logger.Info("draw finished", "topic_id", d.TopicID, "winners", len(winners))

	e.notify(ctx, d.TopicID, "post announcement", func() error {
		return e.notifier.PostAnnouncement(ctx, d.TopicID, announce.WinnerAnnouncement(d, now))
	})
	for _, w := range d.Winners {
		w := w
		e.notify(ctx, d.TopicID, "send winner message", func() error {
			return e.notifier.SendPrivateMessage(ctx, w.UserID,
				announce.WinnerMessageTitle(d),
				announce.WinnerMessage(d, w, e.initiatorHandle(d), now))
		})
	}
	e.notify(ctx, d.TopicID, "update tags", func() error {
		return e.notifier.UpdateTags(ctx, d.TopicID, TagComplete)
	})
	e.notify(ctx, d.TopicID, "close topic", func() error {
		return e.notifier.CloseTopic(ctx, d.TopicID)
	})

	return Outcome{Status: draw.StateFinished, Winners: d.Winners, Applied: true}, nil
}

// cancelDraw commits Running->Cancelled and posts the cancellation notice.
func (e *Engine) cancelDraw(ctx context.Context, d *draw.Draw, reason string) (Outcome, error) {
	now := e.now()
	applied, err := e.store.CancelDraw(ctx, d.TopicID, reason, now)
	if err != nil {
		return Outcome{}, err
	}
	if !applied {
		e.logger.Info("lost cancel race, skipping side effects", "topic_id", d.TopicID)
		return Outcome{Status: draw.StateCancelled, Applied: false}, nil
	}
	if err := d.Cancel(reason, now); err != nil {
		return Outcome{}, err
	}
	e.logger.Info("draw cancelled", "topic_id", d.TopicID, "reason", reason)

	e.notify(ctx, d.TopicID, "post cancellation", func() error {
		return e.notifier.PostAnnouncement(ctx, d.TopicID, announce.CancellationNotice(d, reason, now))
	})
	e.notify(ctx, d.TopicID, "update tags", func() error {
		return e.notifier.UpdateTags(ctx, d.TopicID, TagCancelled)
	})

	return Outcome{Status: draw.StateCancelled, Reason: reason, Applied: true}, nil
}

// LockCheck handles the lock trigger: it freezes edits on a Running draw
// and reports whether edits are now rejected. Terminal draws are already
// frozen (no-op, no notice); an already-locked draw emits no second notice.
func (e *Engine) LockCheck(ctx context.Context, topicID int64) (bool, error) {
	d, err := e.store.GetDraw(ctx, topicID)
	if err != nil {
		return false, err
	}
	if d.Status != draw.StateRunning {
		return true, nil
	}

	locked, err := e.store.LockDraw(ctx, topicID, e.now())
	if err != nil {
		return false, err
	}
	if !locked {
		// Already locked, or concluded between the read and the update.
		return true, nil
	}
	e.logger.Info("draw locked", "topic_id", topicID)

	e.notify(ctx, topicID, "lock first post", func() error {
		return e.notifier.LockFirstPost(ctx, topicID)
	})
	e.notify(ctx, topicID, "post lock notice", func() error {
		return e.notifier.PostAnnouncement(ctx, topicID, announce.LockNotice())
	})
	return true, nil
}

// HandleTrigger dispatches a fired trigger. Stale triggers — ones whose
// captured draw instant no longer matches the draw's config because an
// edit moved it — are dropped here; this is the compensation for the
// scheduler's inability to retract obsolete triggers.
func (e *Engine) HandleTrigger(ctx context.Context, t scheduler.Trigger) {
	d, err := e.store.GetDraw(ctx, t.TopicID)
	if errors.Is(err, draw.ErrNotFound) {
		e.logger.Info("dropping trigger for missing draw",
			"trigger_id", t.ID, "topic_id", t.TopicID, "kind", t.Kind)
		return
	}
	if err != nil {
		e.logger.Error("trigger load failed",
			"trigger_id", t.ID, "topic_id", t.TopicID, "error", err)
		return
	}
	if !d.Config.DrawAt.Equal(t.DrawAt) {
		e.logger.Info("dropping stale trigger",
			"trigger_id", t.ID, "topic_id", t.TopicID, "kind", t.Kind,
			"captured_draw_at", t.DrawAt, "current_draw_at", d.Config.DrawAt)
		return
	}

	switch t.Kind {
	case scheduler.KindLock:
		if _, err := e.LockCheck(ctx, t.TopicID); err != nil {
			e.logger.Error("lock trigger failed",
				"trigger_id", t.ID, "topic_id", t.TopicID, "error", err)
		}
	case scheduler.KindDraw:
		if _, err := e.Execute(ctx, t.TopicID); err != nil && !errors.Is(err, draw.ErrNotFound) {
			e.logger.Error("draw trigger failed",
				"trigger_id", t.ID, "topic_id", t.TopicID, "error", err)
		}
	default:
		e.logger.Warn("unknown trigger kind", "trigger_id", t.ID, "kind", t.Kind)
	}
}

// notify runs one delegated side effect; failures are logged and dropped
// so they can never un-commit a terminal transition.
func (e *Engine) notify(ctx context.Context, topicID int64, what string, fn func() error) {
	if err := fn(); err != nil {
		e.logger.Error("notification failed",
			"topic_id", topicID, "effect", what, "error", err)
	}
}

// initiatorHandle names the draw's initiator in winner messages. The
// platform user lookup is external; the numeric handle is the fallback.
func (e *Engine) initiatorHandle(d *draw.Draw) string {
	return fmt.Sprintf("user-%d", d.InitiatorID)
}
