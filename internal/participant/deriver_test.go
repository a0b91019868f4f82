package participant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/testutil"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

const (
	topicID     = int64(42)
	initiatorID = int64(1)
)

func reply(id, userID int64, name string, position int, offset time.Duration) participant.Reply {
	return participant.Reply{
		ReplyID:   id,
		UserID:    userID,
		Username:  name,
		Position:  position,
		CreatedAt: base.Add(offset),
	}
}

func newDeriver(replies []participant.Reply, excluded map[int64]bool) *participant.Deriver {
	threads := testutil.NewScriptedThreads()
	threads.SetReplies(topicID, replies)
	return &participant.Deriver{
		Threads: threads,
		Groups:  &testutil.StaticGroups{Excluded: excluded},
	}
}

func TestDerive_FirstReplyWins(t *testing.T) {
	d := newDeriver([]participant.Reply{
		reply(201, 11, "ann", 2, 0),
		reply(202, 12, "bob", 3, time.Minute),
		reply(203, 11, "ann", 5, 2*time.Minute),
		reply(204, 11, "ann", 9, 3*time.Minute),
	}, nil)

	got, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d participants, want 2", len(got))
	}
	if got[0].UserID != 11 || got[0].Position != 2 {
		t.Errorf("first participant = %+v, want user 11 at position 2", got[0])
	}
	if got[1].UserID != 12 {
		t.Errorf("second participant = %+v, want user 12", got[1])
	}
}

func TestDerive_OrderedByEarliestReplyTime(t *testing.T) {
	// Reader returns replies out of order; derivation must order by
	// creation time, not input order.
	d := newDeriver([]participant.Reply{
		reply(203, 13, "cid", 4, 3*time.Minute),
		reply(201, 11, "ann", 2, time.Minute),
		reply(202, 12, "bob", 3, 2*time.Minute),
	}, nil)

	got, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	wantOrder := []int64{11, 12, 13}
	for i, want := range wantOrder {
		if got[i].UserID != want {
			t.Errorf("participant[%d].UserID = %d, want %d", i, got[i].UserID, want)
		}
	}
}

func TestDerive_SkipsDeletedHiddenAndInitiator(t *testing.T) {
	replies := []participant.Reply{
		reply(201, initiatorID, "op", 2, 0),
		reply(202, 12, "bob", 3, time.Minute),
		reply(203, 13, "cid", 4, 2*time.Minute),
		reply(204, 14, "dee", 5, 3*time.Minute),
	}
	replies[2].Deleted = true
	replies[3].Hidden = true

	d := newDeriver(replies, nil)
	got, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 12 {
		t.Errorf("got %+v, want only user 12", got)
	}
}

func TestDerive_ExcludedGroupMembers(t *testing.T) {
	d := newDeriver([]participant.Reply{
		reply(201, 11, "ann", 2, 0),
		reply(202, 12, "bot", 3, time.Minute),
		reply(203, 12, "bot", 4, 2*time.Minute),
	}, map[int64]bool{12: true})

	got, err := d.Derive(context.Background(), topicID, initiatorID, []string{"bots"})
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 11 {
		t.Errorf("got %+v, want only user 11", got)
	}
}

func TestDerive_DeletedEarliestReplyFallsToNone(t *testing.T) {
	// The earliest reply being deleted removes the author entirely only
	// if no later reply survives; otherwise the next one counts.
	replies := []participant.Reply{
		reply(201, 11, "ann", 2, 0),
		reply(202, 11, "ann", 5, time.Minute),
	}
	replies[0].Deleted = true

	d := newDeriver(replies, nil)
	got, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if len(got) != 1 || got[0].Position != 5 {
		t.Errorf("got %+v, want user 11 at position 5", got)
	}
}

func TestDerive_NormalizesUsernames(t *testing.T) {
	// "é" as combining sequence should normalize to the precomposed form.
	d := newDeriver([]participant.Reply{
		reply(201, 11, "rémy", 2, 0),
	}, nil)

	got, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if got[0].Username != "rémy" {
		t.Errorf("username = %q, want NFC-normalized %q", got[0].Username, "rémy")
	}
}

func TestDerive_ReaderFailurePropagates(t *testing.T) {
	threads := testutil.NewScriptedThreads()
	readErr := errors.New("forum unavailable")
	threads.FailWith(readErr)
	d := &participant.Deriver{Threads: threads, Groups: &testutil.StaticGroups{}}

	_, err := d.Derive(context.Background(), topicID, initiatorID, nil)
	if !errors.Is(err, readErr) {
		t.Errorf("Derive() = %v, want wrapped reader error", err)
	}
}
