package draw

import (
	"time"
)

// State is the lifecycle state of a draw.
//
// Running is the only non-terminal state. Finished and Cancelled are both
// terminal: no transition ever leaves them. Parsed once at the storage and
// API boundaries; internal code compares the typed constants, never strings.
type State string

const (
	// StateRunning means the draw is live and waiting for its draw instant.
	StateRunning State = "running"
	// StateFinished means winners were selected and recorded.
	StateFinished State = "finished"
	// StateCancelled means the draw concluded without winners.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// ParseState converts a stored status string to a State.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateRunning, StateFinished, StateCancelled:
		return State(s), true
	}
	return "", false
}

// BackupStrategy decides what happens when fewer participants than the
// configured minimum have replied by the draw instant.
type BackupStrategy string

const (
	// BackupContinue runs the selection anyway over the undersized pool.
	BackupContinue BackupStrategy = "continue"
	// BackupCancel cancels the draw with an insufficient-participants reason.
	BackupCancel BackupStrategy = "cancel"
)

// ParseBackupStrategy converts a stored strategy string to a BackupStrategy.
func ParseBackupStrategy(s string) (BackupStrategy, bool) {
	switch BackupStrategy(s) {
	case BackupContinue, BackupCancel:
		return BackupStrategy(s), true
	}
	return "", false
}

// PolicyKind distinguishes the two selection policies.
type PolicyKind string

const (
	// PolicyRandom draws Count winners uniformly without replacement.
	PolicyRandom PolicyKind = "random"
	// PolicyFixedPositions awards the participants at explicit reply positions.
	PolicyFixedPositions PolicyKind = "specified"
)

// SelectionPolicy is the tagged selection variant of a draw.
//
// Exactly one of Count/Positions is meaningful: Count for PolicyRandom,
// Positions for PolicyFixedPositions. Positions use the thread's reply
// numbering, where position 1 is the opening post and is never eligible.
type SelectionPolicy struct {
	Kind      PolicyKind
	Count     int
	Positions []int
}

// RandomPolicy builds a uniform-sampling policy for count winners.
func RandomPolicy(count int) SelectionPolicy {
	return SelectionPolicy{Kind: PolicyRandom, Count: count}
}

// FixedPositionsPolicy builds a policy awarding the given reply positions.
func FixedPositionsPolicy(positions []int) SelectionPolicy {
	return SelectionPolicy{Kind: PolicyFixedPositions, Positions: positions}
}

// Config is the immutable parameter set of a draw as accepted at creation
// or reconciliation time. A draw holds a snapshot of the Config that passed
// its last validation; edits replace the whole snapshot.
type Config struct {
	Title            string
	PrizeDescription string
	ImageRef         string // optional upload/image reference
	DrawAt           time.Time
	Policy           SelectionPolicy
	MinParticipants  int
	Backup           BackupStrategy
	Notes            string // optional
}

// Winner is one selected participant, recorded on the draw when it finishes.
type Winner struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Position int    `json:"position"`
	ReplyID  int64  `json:"reply_id"`
}

// Draw is the persisted aggregate. One draw exists per topic at a time; a
// new draw for a topic replaces the old one rather than appending.
//
// Mutation rules:
//   - Created Running by the creator.
//   - Config replaced in place by reconciliation while Running and unlocked.
//   - Moved to exactly one terminal state by the executor.
//   - Never mutated after reaching a terminal state.
type Draw struct {
	TopicID      int64
	InitiatorID  int64
	Config       Config
	Status       State
	Winners      []Winner
	CancelReason string
	LockedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New builds a fresh Running draw for a topic.
func New(topicID, initiatorID int64, cfg Config, now time.Time) *Draw {
	return &Draw{
		TopicID:     topicID,
		InitiatorID: initiatorID,
		Config:      cfg,
		Status:      StateRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// LockInstant returns the moment after which edits are rejected: the draw
// instant minus the configured lock delay.
func (d *Draw) LockInstant(lockDelay time.Duration) time.Time {
	return d.Config.DrawAt.Add(-lockDelay)
}

// CanEdit reports whether the draw still accepts configuration edits: it
// must be Running, not yet explicitly locked, and before its lock instant.
func (d *Draw) CanEdit(now time.Time, lockDelay time.Duration) bool {
	if d.Status != StateRunning {
		return false
	}
	if d.LockedAt != nil {
		return false
	}
	return now.Before(d.LockInstant(lockDelay))
}
