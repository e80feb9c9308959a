package memory

import (
	"sync"
	"time"

	"ecn-prep-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(user string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[user]; ok {
		return session
	}
	session := app.NewSession(user)
	s.sessions[user] = session
	return session
}

func (s *SessionStore) Get(user string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[user]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[user]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(s.sessions, user)
	}
}

// EvictIdle drops sessions untouched for longer than maxIdle and returns how many went.
func (s *SessionStore) EvictIdle(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for user, session := range s.sessions {
		if now.Sub(session.LastActive()) > maxIdle {
			delete(s.sessions, user)
			n++
		}
	}
	return n
}
