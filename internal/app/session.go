package app

import (
	"sync"
	"time"

	"ecn-prep-service/internal/clinical"
)

// Session is one user's in-flight state across every mode.
type Session struct {
	user       string
	createdAt  time.Time
	now        func() time.Time
	mu         sync.Mutex
	lastActive time.Time
	state      State
}

// State holds the runs a session owns. It is only reachable through Session.Do.
type State struct {
	Quiz        *QuizRun
	Competition *CompetitionRun
	Case        *clinical.Machine
	CaseAttempt string
	Exam        *ExamRun
}

func (st *State) empty() bool {
	caseIdle := st.Case == nil || st.Case.State() == clinical.NotLoaded
	return st.Quiz == nil && st.Competition == nil && caseIdle && st.Exam == nil
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(user string) *Session {
	return NewSessionWithClock(user, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(user string, now func() time.Time) *Session {
	t := now()
	return &Session{user: user, createdAt: t, lastActive: t, now: now}
}

func (s *Session) User() string { return s.user }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Do runs fn with exclusive access to the session state.
func (s *Session) Do(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return fn(&s.state)
}

// LastActive is the time of the most recent Do call.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// IsEmpty reports whether the session holds no run at all.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.empty()
}
