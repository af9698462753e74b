package auth

import (
	"sync"
	"time"

	"github.com/sbasrik/gatehouse/pkg"
)

// Session is one live login. The store owns all session records;
// callers only ever get copies.
type Session struct {
	Token       string
	Username    string
	Role        Role
	LastTouched time.Time
}

type TouchResult int

const (
	TouchValid TouchResult = iota
	TouchExpired
	TouchNotFound
)

// SessionStore maps tokens to sessions with a sliding TTL. All state is
// process-local and gone on restart. Expiry is lazy: a session is
// removed when TouchAndCheck finds it stale, never by a background
// sweep, so a session that is never accessed again just sits in memory
// until process exit.
type SessionStore struct {
	mutex    sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session

	// injectable for unit and dev testing
	NowFunc        func() time.Time
	RandStringFunc func(s int) (string, error)
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:            ttl,
		sessions:       make(map[string]*Session),
		NowFunc:        time.Now,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

// Create makes a fresh session and returns its token. Fails only when
// the system entropy source does.
func (s *SessionStore) Create(username string, role Role) (string, error) {
	token, err := s.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[token] = &Session{
		Token:       token,
		Username:    username,
		Role:        role,
		LastTouched: s.NowFunc(),
	}
	return token, nil
}

// TouchAndCheck validates a token and refreshes its sliding TTL window,
// as one atomic step. An expired record is removed before returning
// TouchExpired, so two concurrent requests with the same stale token
// cannot both see it as valid, and a token removed by logout cannot be
// resurrected by a late touch.
func (s *SessionStore) TouchAndCheck(token string) (Session, TouchResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return Session{}, TouchNotFound
	}

	now := s.NowFunc()
	if now.Sub(session.LastTouched) > s.ttl {
		delete(s.sessions, token)
		return Session{}, TouchExpired
	}

	session.LastTouched = now
	return *session, TouchValid
}

// Remove deletes a session; used by logout. Removing an absent token is
// a no-op, reported through the return value only.
func (s *SessionStore) Remove(token string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// Len reports the number of live (possibly already stale) sessions.
func (s *SessionStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sessions)
}
