// Package participant derives the eligible participant list for a draw
// from the hosting thread's replies.
//
// Derivation is a pure computation over the thread's current state and is
// rerun from scratch on every execution: replies added, deleted, or hidden
// between scheduling and draw time must be reflected, so nothing here is
// cached.
package participant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reply is one post in the hosting thread as reported by the platform.
type Reply struct {
	ReplyID   int64
	UserID    int64
	Username  string
	Position  int // the thread's reply numbering; 1 is the opening post
	CreatedAt time.Time
	Deleted   bool
	Hidden    bool
}

// Participant is one eligible entrant: a distinct author's earliest reply.
type Participant struct {
	UserID    int64
	Username  string
	Position  int
	ReplyID   int64
	RepliedAt time.Time
}

// ThreadReader reads the replies of a topic from the hosting platform.
// Implementations may return replies in any order.
type ThreadReader interface {
	Replies(ctx context.Context, topicID int64) ([]Reply, error)
}

// GroupDirectory answers excluded-group membership questions.
type GroupDirectory interface {
	IsExcluded(ctx context.Context, userID int64, excludedGroups []string) (bool, error)
}

// Deriver computes the ordered, deduplicated participant list for a topic.
type Deriver struct {
	Threads ThreadReader
	Groups  GroupDirectory
}

// Derive returns the eligible participants of a topic, ordered by the
// creation time of each author's earliest reply. That ordering also defines
// the position used by fixed-position selection.
//
// Eligibility: the reply is not deleted or hidden, its author is not the
// draw's initiator, and the author belongs to none of the excluded groups.
// An author with several eligible replies counts once, at the earliest one.
func (d *Deriver) Derive(ctx context.Context, topicID, initiatorID int64, excludedGroups []string) ([]Participant, error) {
	replies, err := d.Threads.Replies(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("read replies for topic %d: %w", topicID, err)
	}

	// Earliest-first so the first reply seen per author wins.
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})

	seen := make(map[int64]bool)
	excluded := make(map[int64]bool)
	var participants []Participant
	for _, r := range replies {
		if r.Deleted || r.Hidden {
			continue
		}
		if r.UserID == initiatorID {
			continue
		}
		if seen[r.UserID] || excluded[r.UserID] {
			continue
		}
		if len(excludedGroups) > 0 {
			skip, err := d.Groups.IsExcluded(ctx, r.UserID, excludedGroups)
			if err != nil {
				return nil, fmt.Errorf("check group exclusion for user %d: %w", r.UserID, err)
			}
			if skip {
				excluded[r.UserID] = true
				continue
			}
		}
		seen[r.UserID] = true
		participants = append(participants, Participant{
			UserID: r.UserID,
			// Handles come from an external platform with no encoding
			// guarantees; normalize so winner records compare stably.
			Username:  norm.NFC.String(r.Username),
			Position:  r.Position,
			ReplyID:   r.ReplyID,
			RepliedAt: r.CreatedAt,
		})
	}
	return participants, nil
}
