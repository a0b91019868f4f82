package draw

import (
	"fmt"
	"time"
)

// The lifecycle methods below are the only way a Draw changes state.
// Running -> Finished and Running -> Cancelled are the sole transitions;
// anything attempted from a terminal state returns ErrStateConflict so that
// duplicate trigger firings collapse into no-ops.
//
// These methods mutate the in-memory aggregate. Durable stores enforce the
// same rules at their commit point (a compare-and-set on status) so a
// racing writer loses cleanly; see the store package.

// Finish moves a Running draw to Finished with the selected winners.
func (d *Draw) Finish(winners []Winner, now time.Time) error {
	if d.Status != StateRunning {
		return fmt.Errorf("finish draw for topic %d: status is %s: %w", d.TopicID, d.Status, ErrStateConflict)
	}
	d.Status = StateFinished
	d.Winners = winners
	d.UpdatedAt = now
	return nil
}

// Cancel moves a Running draw to Cancelled with a human-readable reason.
func (d *Draw) Cancel(reason string, now time.Time) error {
	if d.Status != StateRunning {
		return fmt.Errorf("cancel draw for topic %d: status is %s: %w", d.TopicID, d.Status, ErrStateConflict)
	}
	d.Status = StateCancelled
	d.CancelReason = reason
	d.UpdatedAt = now
	return nil
}

// Reconcile replaces the config snapshot of a Running draw in place.
// Winners stay empty and the status stays Running; identity and creation
// time are untouched. Rejected once the draw is terminal or locked.
func (d *Draw) Reconcile(cfg Config, now time.Time) error {
	if d.Status != StateRunning {
		return fmt.Errorf("reconcile draw for topic %d: status is %s: %w", d.TopicID, d.Status, ErrStateConflict)
	}
	if d.LockedAt != nil {
		return fmt.Errorf("reconcile draw for topic %d: locked at %s: %w", d.TopicID, d.LockedAt.Format(time.RFC3339), ErrStateConflict)
	}
	d.Config = cfg
	d.UpdatedAt = now
	return nil
}

// Lock records the lock instant on a Running draw, after which edits are
// rejected even if the lock trigger fired early or late. Locking an
// already-locked draw is a no-op; locking a terminal draw is a conflict.
func (d *Draw) Lock(now time.Time) error {
	if d.Status != StateRunning {
		return fmt.Errorf("lock draw for topic %d: status is %s: %w", d.TopicID, d.Status, ErrStateConflict)
	}
	if d.LockedAt == nil {
		t := now
		d.LockedAt = &t
		d.UpdatedAt = now
	}
	return nil
}
