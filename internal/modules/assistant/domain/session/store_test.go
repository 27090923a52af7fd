package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIsIdempotentPerSession(t *testing.T) {
	s := NewStore(time.Hour, nil)

	first := s.Create("sess-1", "Иван", "")
	second := s.Create("sess-1", "", "+79990000000")

	assert.Same(t, first, second)
	assert.Equal(t, "Иван", second.ClientName)
	assert.Equal(t, "+79990000000", second.ClientPhone)
	assert.Equal(t, 1, s.Len())
}

func TestAppendAndHistory(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Create("sess-1", "", "")

	require.True(t, s.Append("sess-1", Turn{Role: "user", Text: "привет"}))
	require.True(t, s.Append("sess-1", Turn{Role: "assistant", Text: "здравствуйте"}))
	assert.False(t, s.Append("missing", Turn{Role: "user", Text: "x"}))

	hist := s.History("sess-1")
	require.Len(t, hist, 2)
	assert.Equal(t, "user", hist[0].Role)
	assert.Equal(t, "здравствуйте", hist[1].Text)
}

func TestSnapshotFreezesTranscript(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Create("sess-1", "Иван", "")
	s.Append("sess-1", Turn{Role: "user", Text: "до снапшота"})

	snap, ok := s.Snapshot("sess-1")
	require.True(t, ok)
	require.Len(t, snap.History, 1)

	s.Append("sess-1", Turn{Role: "user", Text: "после снапшота"})
	assert.Len(t, snap.History, 1, "snapshot must not see later turns")
	assert.Len(t, s.History("sess-1"), 2)
}

func TestCleanupRemovesExpiredSessions(t *testing.T) {
	s := NewStore(time.Hour, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Create("old", "", "")
	s.Create("fresh", "", "")

	// age the old session past the TTL
	now = now.Add(2 * time.Hour)
	s.Touch("fresh")

	removed := s.CleanupOnce()
	assert.Equal(t, 1, removed)
	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)
}

func TestCleanupSkipsPinnedAndHandedOver(t *testing.T) {
	s := NewStore(time.Hour, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Create("pinned", "", "")
	s.Create("live", "", "")
	s.Create("doomed", "", "")

	_, ok := s.Snapshot("pinned")
	require.True(t, ok)
	s.MarkHandedOver("live")

	now = now.Add(48 * time.Hour)
	removed := s.CleanupOnce()

	assert.Equal(t, 1, removed)
	_, ok = s.Get("pinned")
	assert.True(t, ok, "pinned session must survive the sweep")
	_, ok = s.Get("live")
	assert.True(t, ok, "handed-over session must survive the sweep")
	_, ok = s.Get("doomed")
	assert.False(t, ok)
}

func TestMarkResumedUnpins(t *testing.T) {
	s := NewStore(time.Hour, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Create("sess-1", "", "")
	s.MarkHandedOver("sess-1")
	assert.True(t, s.IsHandedOver("sess-1"))

	s.MarkResumed("sess-1")
	assert.False(t, s.IsHandedOver("sess-1"))

	now = now.Add(48 * time.Hour)
	assert.Equal(t, 1, s.CleanupOnce(), "resumed session expires normally")
}

func TestReleaseKeepsHandedOverPin(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Create("sess-1", "", "")
	s.MarkHandedOver("sess-1")

	// Release after a failed retry must not strip an active handoff
	s.Release("sess-1")
	sess, ok := s.Get("sess-1")
	require.True(t, ok)
	assert.True(t, sess.Pinned)
}
