package session

import (
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/sampark/pkg/dialog"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrStale is returned when another turn committed after the snapshot was read.
	ErrStale = errors.New("session snapshot is stale")
)

// Store owns every live session. Handlers read snapshots with Get and write
// them back with Commit; nothing outside the store holds a session pointer.
type Store interface {
	// Insert adds s unless a session with the same call id exists.
	Insert(s dialog.Session) bool
	Get(callSID string) (dialog.Session, bool)
	// Commit replaces the stored session if its version still matches s.Version.
	Commit(s dialog.Session) (dialog.Session, error)
	// Touch records a partial-speech notification without changing dialog state.
	Touch(callSID string, at time.Time) bool
	// Finalize removes the session and marks it logged. Only the first caller
	// for a call id gets ok=true. When final is non-nil it replaces the stored
	// snapshot (its version must match).
	Finalize(callSID string, final *dialog.Session) (dialog.Session, bool, error)
	Len() int
}

type entry struct {
	sess dialog.Session
}

// MemoryStore is an in-process Store guarded by a single mutex. Critical
// sections only copy values; no I/O happens under the lock.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*entry)}
}

func (m *MemoryStore) Insert(s dialog.Session) bool {
	if s.CallSID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.CallSID]; ok {
		return false
	}
	s = s.Clone()
	s.Version = 1
	m.sessions[s.CallSID] = &entry{sess: s}
	return true
}

func (m *MemoryStore) Get(callSID string) (dialog.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[callSID]
	if !ok {
		return dialog.Session{}, false
	}
	return e.sess.Clone(), true
}

func (m *MemoryStore) Commit(s dialog.Session) (dialog.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[s.CallSID]
	if !ok {
		return dialog.Session{}, ErrNotFound
	}
	if e.sess.Version != s.Version {
		return dialog.Session{}, ErrStale
	}
	next := s.Clone()
	next.LastPartialAt = later(e.sess.LastPartialAt, s.LastPartialAt)
	next.Version = e.sess.Version + 1
	e.sess = next
	return next.Clone(), nil
}

func (m *MemoryStore) Touch(callSID string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[callSID]
	if !ok {
		return false
	}
	e.sess.LastPartialAt = later(e.sess.LastPartialAt, at)
	return true
}

func (m *MemoryStore) Finalize(callSID string, final *dialog.Session) (dialog.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[callSID]
	if !ok || e.sess.Logged {
		return dialog.Session{}, false, nil
	}
	out := e.sess
	if final != nil {
		if final.Version != e.sess.Version {
			return dialog.Session{}, false, ErrStale
		}
		out = final.Clone()
		out.LastPartialAt = later(e.sess.LastPartialAt, final.LastPartialAt)
	}
	out.Logged = true
	delete(m.sessions, callSID)
	return out.Clone(), true, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

var _ Store = (*MemoryStore)(nil)
