package session

import (
	"context"
	"sync"
	"time"

	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
)

// Turn is one exchange entry in a web-chat session history.
type Turn struct {
	Role string // "user", "assistant" or "system"
	Text string
	At   time.Time
}

// Session holds the assistant-side state of one web chat. Fields are only
// touched under the store mutex.
type Session struct {
	ID          string
	ClientName  string
	ClientPhone string
	History     []Turn
	HandedOver  bool
	Pinned      bool
	CreatedAt   time.Time
	LastSeen    time.Time
}

// Snapshot is an immutable copy taken at handoff time, so the transcript
// persisted with the conversation can not race with new turns.
type Snapshot struct {
	ID          string
	ClientName  string
	ClientPhone string
	History     []Turn
	CreatedAt   time.Time
}

// Store keeps live web-chat sessions in memory with a TTL sweep. Sessions
// pinned by an active handoff survive the sweep until released.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewStore(ttl time.Duration, m *metrics.Metrics) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
	}
}

// Create registers a session if absent and returns it. Re-creating an
// existing id just refreshes LastSeen.
func (s *Store) Create(id, clientName, clientPhone string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastSeen = s.now()
		if clientName != "" {
			sess.ClientName = clientName
		}
		if clientPhone != "" {
			sess.ClientPhone = clientPhone
		}
		return sess
	}
	now := s.now()
	sess := &Session{
		ID:          id,
		ClientName:  clientName,
		ClientPhone: clientPhone,
		CreatedAt:   now,
		LastSeen:    now,
	}
	s.sessions[id] = sess
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Append records a turn and refreshes the session clock.
func (s *Store) Append(id string, turn Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if turn.At.IsZero() {
		turn.At = s.now()
	}
	sess.History = append(sess.History, turn)
	sess.LastSeen = turn.At
	return true
}

// History returns a copy of the session transcript.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.History))
	copy(out, sess.History)
	return out
}

func (s *Store) Touch(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastSeen = s.now()
	}
	s.mu.Unlock()
}

func (s *Store) IsHandedOver(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return ok && sess.HandedOver
}

// Snapshot freezes the transcript and pins the session against expiry.
// Returns false if the session does not exist.
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	sess.Pinned = true
	hist := make([]Turn, len(sess.History))
	copy(hist, sess.History)
	return Snapshot{
		ID:          sess.ID,
		ClientName:  sess.ClientName,
		ClientPhone: sess.ClientPhone,
		History:     hist,
		CreatedAt:   sess.CreatedAt,
	}, true
}

// MarkHandedOver flips the session into operator mode; the assistant stops
// answering until MarkResumed.
func (s *Store) MarkHandedOver(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.HandedOver = true
		sess.Pinned = true
		sess.LastSeen = s.now()
	}
	s.mu.Unlock()
}

// MarkResumed returns the session to the assistant and unpins it.
func (s *Store) MarkResumed(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.HandedOver = false
		sess.Pinned = false
		sess.LastSeen = s.now()
	}
	s.mu.Unlock()
}

// Release drops the pin without changing the handover flag. Called when a
// handoff attempt fails before the conversation is created.
func (s *Store) Release(id string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok && !sess.HandedOver {
		sess.Pinned = false
	}
	s.mu.Unlock()
}

// CleanupOnce removes sessions idle past the TTL, skipping pinned and
// handed-over ones. Returns the number removed.
func (s *Store) CleanupOnce() int {
	deadline := s.now().Add(-s.ttl)
	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Pinned || sess.HandedOver {
			continue
		}
		if sess.LastSeen.Before(deadline) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		if s.metrics != nil {
			s.metrics.SessionsExpiredTotal.Add(float64(removed))
		}
		zlog.Info("session cleanup removed expired sessions", zap.Int("count", removed))
	}
	return removed
}

// RunCleanup sweeps on the given interval until ctx is done.
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOnce()
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
