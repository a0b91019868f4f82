// Package testutil provides shared test doubles for the draw engine's
// external collaborators.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/scheduler"
)

// ScriptedThreads is a ThreadReader backed by a fixed reply script.
type ScriptedThreads struct {
	mu      sync.Mutex
	replies map[int64][]participant.Reply
	err     error
}

// NewScriptedThreads creates an empty thread reader.
func NewScriptedThreads() *ScriptedThreads {
	return &ScriptedThreads{replies: make(map[int64][]participant.Reply)}
}

// SetReplies replaces the reply script for a topic.
func (s *ScriptedThreads) SetReplies(topicID int64, replies []participant.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[topicID] = replies
}

// FailWith makes every Replies call return err.
func (s *ScriptedThreads) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Replies implements participant.ThreadReader.
func (s *ScriptedThreads) Replies(_ context.Context, topicID int64) ([]participant.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]participant.Reply, len(s.replies[topicID]))
	copy(out, s.replies[topicID])
	return out, nil
}

// StaticGroups is a GroupDirectory with a fixed excluded-user set. The
// group names passed to IsExcluded are ignored; membership is per user.
type StaticGroups struct {
	Excluded map[int64]bool
}

// IsExcluded implements participant.GroupDirectory.
func (g *StaticGroups) IsExcluded(_ context.Context, userID int64, _ []string) (bool, error) {
	return g.Excluded[userID], nil
}

// MemoryScheduler records trigger requests without ever firing them.
type MemoryScheduler struct {
	mu       sync.Mutex
	Triggers []scheduler.Trigger
}

// ScheduleAt implements engine.TriggerScheduler.
func (m *MemoryScheduler) ScheduleAt(t scheduler.Trigger) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Triggers = append(m.Triggers, t)
	return true
}

// Scheduled returns a copy of the recorded triggers.
func (m *MemoryScheduler) Scheduled() []scheduler.Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Trigger, len(m.Triggers))
	copy(out, m.Triggers)
	return out
}

// Notification records one delivered side effect.
type Notification struct {
	Kind    string // "announcement", "pm", "tag", "close", "lock_post"
	TopicID int64
	UserID  int64
	Title   string
	Body    string
	Tag     string
}

// MemoryNotifier records every side effect the engine attempts.
type MemoryNotifier struct {
	mu            sync.Mutex
	Notifications []Notification
	Err           error // returned by every call when set
}

func (m *MemoryNotifier) record(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Notifications = append(m.Notifications, n)
	return nil
}

// PostAnnouncement implements engine.Notifier.
func (m *MemoryNotifier) PostAnnouncement(_ context.Context, topicID int64, body string) error {
	return m.record(Notification{Kind: "announcement", TopicID: topicID, Body: body})
}

// SendPrivateMessage implements engine.Notifier.
func (m *MemoryNotifier) SendPrivateMessage(_ context.Context, userID int64, title, body string) error {
	return m.record(Notification{Kind: "pm", UserID: userID, Title: title, Body: body})
}

// UpdateTags implements engine.Notifier.
func (m *MemoryNotifier) UpdateTags(_ context.Context, topicID int64, tag string) error {
	return m.record(Notification{Kind: "tag", TopicID: topicID, Tag: tag})
}

// CloseTopic implements engine.Notifier.
func (m *MemoryNotifier) CloseTopic(_ context.Context, topicID int64) error {
	return m.record(Notification{Kind: "close", TopicID: topicID})
}

// LockFirstPost implements engine.Notifier.
func (m *MemoryNotifier) LockFirstPost(_ context.Context, topicID int64) error {
	return m.record(Notification{Kind: "lock_post", TopicID: topicID})
}

// ByKind returns the recorded notifications of one kind.
func (m *MemoryNotifier) ByKind(kind string) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.Notifications {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// AllowAll is a PermissionChecker that always says yes.
type AllowAll struct{}

// CanCreateDraw implements engine.PermissionChecker.
func (AllowAll) CanCreateDraw(context.Context, int64, int64) (bool, error) { return true, nil }

// DenyAll is a PermissionChecker that always says no.
type DenyAll struct{}

// CanCreateDraw implements engine.PermissionChecker.
func (DenyAll) CanCreateDraw(context.Context, int64, int64) (bool, error) { return false, nil }

// FixedClock returns a Now function pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
