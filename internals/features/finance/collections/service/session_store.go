package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"retailku_backend/internals/features/finance/collections/ledger"
	"retailku_backend/internals/features/finance/collections/model"
)

// Session is one open payment/refund screen. mu serializes every action on
// it, so the ledger underneath never sees two operations at once.
type Session struct {
	ID      uuid.UUID
	Context model.SessionContext
	Ledger  *ledger.Ledger

	mu        sync.Mutex
	touchedAt time.Time
	completed bool
	recordID  string
	// refs the binder created for entries still in the ledger, across runs
	created []model.PaymentEntry
}

func (s *Session) createdRefs() []string {
	out := make([]string, 0, len(s.created))
	for _, e := range s.created {
		out = append(out, e.ExternalRef)
	}
	return out
}

// dropCreated forgets the created record behind localID.
func (s *Session) dropCreated(localID string) {
	kept := s.created[:0]
	for _, e := range s.created {
		if e.LocalID != localID {
			kept = append(kept, e)
		}
	}
	s.created = kept
}

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (st *SessionStore) TTL() time.Duration { return st.ttl }

func (st *SessionStore) Put(s *Session) {
	s.touchedAt = st.now()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
}

// Acquire returns the session locked. The caller must call Release.
// A session owned by another user is reported as not found.
func (st *SessionStore) Acquire(id, userID uuid.UUID) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if userID != uuid.Nil && s.Context.UserID != uuid.Nil && s.Context.UserID != userID {
		return nil, model.ErrSessionNotFound
	}

	s.mu.Lock()
	// swept while we were waiting
	st.mu.RLock()
	_, still := st.sessions[id]
	st.mu.RUnlock()
	if !still {
		s.mu.Unlock()
		return nil, model.ErrSessionNotFound
	}
	return s, nil
}

func (st *SessionStore) Release(s *Session) {
	s.touchedAt = st.now()
	s.mu.Unlock()
}

func (st *SessionStore) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// CustomerOf feeds the orphan journal; "" when the session is gone.
func (st *SessionStore) CustomerOf(sessionID string) string {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ""
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.sessions[id]; ok {
		return s.Context.CustomerID
	}
	return ""
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than the TTL. Busy sessions are
// skipped and looked at on the next run.
func (st *SessionStore) Sweep() int {
	st.mu.RLock()
	candidates := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		candidates = append(candidates, s)
	}
	st.mu.RUnlock()

	cutoff := st.now().Add(-st.ttl)
	removed := 0
	for _, s := range candidates {
		if !s.mu.TryLock() {
			continue
		}
		if s.touchedAt.Before(cutoff) {
			st.Delete(s.ID)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}
