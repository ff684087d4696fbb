package results

import (
	"context"
	"sort"
	"sync"
	"time"

	"learned/internal/models"
)

type memorySession struct {
	snap    Snapshot
	stored  bool
	running map[models.Action]bool
	touched time.Time
}

// MemoryStore keeps sessions in process memory. Sessions idle for longer than the TTL
// are dropped; a non-positive TTL keeps them forever.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Begin(_ context.Context, session string, action models.Action) error {
	if session == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	sess := m.sessionLocked(session)
	if sess.running[action] {
		return ErrActionInProgress
	}
	sess.running[action] = true
	sess.snap = Snapshot{SessionID: session}
	sess.stored = false
	sess.touched = m.now()
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, session string, action models.Action) error {
	m.withSession(session, func(sess *memorySession) {
		delete(sess.running, action)
		m.dropIfEmptyLocked(session, sess)
	})
	return nil
}

func (m *MemoryStore) Put(_ context.Context, session string, snap Snapshot) error {
	if session == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessionLocked(session)
	snap = snap.clone()
	snap.SessionID = session
	snap.Running = nil
	snap.UpdatedAt = m.now()
	sess.snap = snap
	sess.stored = true
	sess.touched = m.now()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, session string) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[session]
	if !ok || m.expired(sess) || (!sess.stored && len(sess.running) == 0) {
		return Snapshot{}, false, nil
	}
	out := sess.snap.clone()
	out.Running = runningActions(sess.running)
	return out, true, nil
}

func (m *MemoryStore) Clear(_ context.Context, session string) error {
	m.withSession(session, func(sess *memorySession) {
		sess.snap = Snapshot{SessionID: session}
		sess.stored = false
		m.dropIfEmptyLocked(session, sess)
	})
	return nil
}

// dropIfEmptyLocked forgets a session that holds no results and runs nothing.
func (m *MemoryStore) dropIfEmptyLocked(session string, sess *memorySession) {
	if !sess.stored && len(sess.running) == 0 {
		delete(m.sessions, session)
	}
}

func (m *MemoryStore) withSession(session string, fn func(sess *memorySession)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[session]
	if !ok {
		return
	}
	fn(sess)
	sess.touched = m.now()
}

func (m *MemoryStore) sessionLocked(session string) *memorySession {
	sess, ok := m.sessions[session]
	if !ok {
		sess = &memorySession{
			snap:    Snapshot{SessionID: session},
			running: make(map[models.Action]bool),
		}
		m.sessions[session] = sess
	}
	return sess
}

func (m *MemoryStore) expired(sess *memorySession) bool {
	return m.ttl > 0 && len(sess.running) == 0 && m.now().Sub(sess.touched) > m.ttl
}

func (m *MemoryStore) evictLocked() {
	for id, sess := range m.sessions {
		if m.expired(sess) {
			delete(m.sessions, id)
		}
	}
}

func runningActions(running map[models.Action]bool) []models.Action {
	if len(running) == 0 {
		return nil
	}
	out := make([]models.Action, 0, len(running))
	for a := range running {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
