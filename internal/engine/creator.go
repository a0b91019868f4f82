package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/scheduler"
)

// CreateOrReplace validates cfg and installs it as the topic's draw.
//
// No existing draw: a new Running draw is persisted and both triggers are
// requested. An existing Running draw still inside its edit window: the
// config is replaced in place (same draw identity, status unchanged) and
// fresh triggers are requested for the new instants — the old triggers are
// not retracted, they die later as stale. A terminal or locked draw rejects
// the edit as a validation error and stays untouched.
//
// Failure shape is uniform: every rejection, including the permission
// check and the locked/concluded case, surfaces as draw.FieldErrors.
func (e *Engine) CreateOrReplace(ctx context.Context, topicID, callerID int64, cfg draw.Config) (*draw.Draw, error) {
	now := e.now()

	var errs draw.FieldErrors
	if !e.enabled {
		errs.Add("base", "draws are disabled on this site")
		return nil, errs
	}

	if err := e.validator.Validate(cfg, now); err != nil {
		fieldErrs, _ := draw.AsFieldErrors(err)
		errs = append(errs, fieldErrs...)
	}

	allowed, err := e.perms.CanCreateDraw(ctx, callerID, topicID)
	if err != nil {
		return nil, fmt.Errorf("check permission for user %d on topic %d: %w", callerID, topicID, err)
	}
	if !allowed {
		// A negative permission answer is a validation error, not a
		// distinct code path.
		errs.Add("base", "you are not allowed to create a draw here")
	}
	if len(errs) > 0 {
		return nil, errs
	}

	existing, err := e.store.GetDraw(ctx, topicID)
	switch {
	case errors.Is(err, draw.ErrNotFound):
		d := draw.New(topicID, callerID, cfg, now)
		if err := e.store.CreateDraw(ctx, d); err != nil {
			return nil, err
		}
		e.logger.Info("draw created",
			"topic_id", topicID, "initiator_id", callerID, "draw_at", cfg.DrawAt)
		e.notify(ctx, topicID, "update tags", func() error {
			return e.notifier.UpdateTags(ctx, topicID, TagOpen)
		})
		e.scheduleTriggers(topicID, cfg)
		return d, nil

	case err != nil:
		return nil, err
	}

	if !existing.CanEdit(now, e.lockDelay) {
		errs.Add("base", "draw is locked or concluded")
		return nil, errs
	}

	applied, err := e.store.UpdateConfig(ctx, topicID, cfg, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race with a lock trigger or an executor; same answer
		// an up-to-date status check would have given.
		errs.Add("base", "draw is locked or concluded")
		return nil, errs
	}

	if err := existing.Reconcile(cfg, now); err != nil {
		return nil, err
	}
	e.logger.Info("draw reconciled",
		"topic_id", topicID, "caller_id", callerID, "draw_at", cfg.DrawAt)
	e.scheduleTriggers(topicID, cfg)
	return existing, nil
}

// scheduleTriggers requests the draw trigger at the draw instant and the
// lock trigger at drawAt-lockDelay when that is still in the future.
func (e *Engine) scheduleTriggers(topicID int64, cfg draw.Config) {
	e.sched.ScheduleAt(scheduler.NewTrigger(scheduler.KindDraw, topicID, cfg.DrawAt, cfg.DrawAt))

	lockAt := cfg.DrawAt.Add(-e.lockDelay)
	if lockAt.After(e.now()) {
		e.sched.ScheduleAt(scheduler.NewTrigger(scheduler.KindLock, topicID, lockAt, cfg.DrawAt))
	}
}

// RearmTriggers re-requests triggers for every running draw. Called on
// startup, since the in-process scheduler holds no durable state. Draws
// whose instants already passed fire immediately, which the executor's
// status checks absorb.
func (e *Engine) RearmTriggers(ctx context.Context) (int, error) {
	running, err := e.store.ListRunning(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range running {
		e.scheduleTriggers(d.TopicID, d.Config)
	}
	if len(running) > 0 {
		e.logger.Info("re-armed triggers for running draws", "count", len(running))
	}
	return len(running), nil
}
