package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ecn-prep-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Session state stays in a local map; runs hold live timers and a
//     clinical state machine that are not worth serializing.
//   - Redis marks which users have an active session (with TTL), so operators
//     can count live users across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(user string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[user]; ok {
		s.touch(user)
		return session
	}
	session := app.NewSession(user)
	s.sessions[user] = session
	s.touch(user)
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
		_ = s.client.Del(context.Background(), s.key(user)).Err()
	}
}

// EvictIdle drops sessions untouched for longer than maxIdle along with their
// liveness markers, and returns how many went.
func (s *SessionStore) EvictIdle(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for user, session := range s.sessions {
		if now.Sub(session.LastActive()) > maxIdle {
			delete(s.sessions, user)
			_ = s.client.Del(context.Background(), s.key(user)).Err()
			n++
		}
	}
	return n
}

// ActiveUsers counts liveness markers across every instance sharing the Redis.
func (s *SessionStore) ActiveUsers(ctx context.Context) (int, error) {
	var n int
	iter := s.client.Scan(ctx, 0, "ecn:session:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// touch refreshes the best-effort liveness marker.
func (s *SessionStore) touch(user string) {
	_ = s.client.Set(context.Background(), s.key(user), "1", s.ttl).Err()
}

func (s *SessionStore) key(user string) string {
	return "ecn:session:" + user
}
