package engine_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/engine"
	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/store"
	"github.com/raffleworks/topicdraw/internal/testutil"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	topicID     = int64(42)
	initiatorID = int64(7)
)

// fixture bundles an engine with its recording collaborators.
type fixture struct {
	engine   *engine.Engine
	store    *store.Store
	threads  *testutil.ScriptedThreads
	sched    *testutil.MemoryScheduler
	notifier *testutil.MemoryNotifier
}

type fixtureOpt func(*engine.Options)

func withPerms(p engine.PermissionChecker) fixtureOpt {
	return func(o *engine.Options) { o.Perms = p }
}

func withDisabled() fixtureOpt {
	return func(o *engine.Options) { o.Enabled = false }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "draws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:    st,
		threads:  testutil.NewScriptedThreads(),
		sched:    &testutil.MemoryScheduler{},
		notifier: &testutil.MemoryNotifier{},
	}

	options := engine.Options{
		Store: st,
		Deriver: &participant.Deriver{
			Threads: f.threads,
			Groups:  &testutil.StaticGroups{Excluded: map[int64]bool{99: true}},
		},
		Scheduler:      f.sched,
		Notifier:       f.notifier,
		Perms:          testutil.AllowAll{},
		Logger:         slog.New(slog.DiscardHandler),
		Enabled:        true,
		GlobalMinimum:  2,
		LockDelay:      30 * time.Minute,
		ExcludedGroups: []string{"staff"},
		Now:            testutil.FixedClock(now),
	}
	for _, opt := range opts {
		opt(&options)
	}
	f.engine = engine.New(options)
	return f
}

func validConfig() draw.Config {
	return draw.Config{
		Title:            "Spring giveaway",
		PrizeDescription: "One signed book",
		DrawAt:           now.Add(2 * time.Hour),
		Policy:           draw.RandomPolicy(3),
		MinParticipants:  2,
		Backup:           draw.BackupCancel,
	}
}

// seedReplies installs n eligible replies at positions 2..n+1.
func (f *fixture) seedReplies(n int) {
	replies := make([]participant.Reply, n)
	for i := range replies {
		replies[i] = participant.Reply{
			ReplyID:   int64(200 + i),
			UserID:    int64(10 + i),
			Username:  string(rune('a' + i)),
			Position:  i + 2,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
	}
	f.threads.SetReplies(topicID, replies)
}

func (f *fixture) createDraw(t *testing.T, cfg draw.Config) *draw.Draw {
	t.Helper()
	d, err := f.engine.CreateOrReplace(context.Background(), topicID, initiatorID, cfg)
	require.NoError(t, err)
	return d
}
