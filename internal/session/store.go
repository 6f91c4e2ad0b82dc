// Package session holds key-exchange state machines between requests.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallyu/go-sm2/pkg/sm2"
)

// ErrStoreFull is returned by Put when the store holds its limit of sessions.
var ErrStoreFull = errors.New("session store full")

type entry struct {
	sm      sm2.StateMachine
	expires time.Time
}

// Store is an in-memory sm2.SessionStore. A limit of zero means unbounded.
// Sessions older than the TTL are dropped and destroyed on the next Put, or
// when looked up.
type Store struct {
	mu       sync.Mutex
	limit    int
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]entry
}

var _ sm2.SessionStore = (*Store)(nil)

type Option func(s *Store)

// WithTTL bounds the lifetime of a session from its Put. Zero disables
// expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(limit int, opts ...Option) *Store {
	s := &Store{
		limit:    limit,
		now:      time.Now,
		sessions: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put registers a new session. An identifier can hold one live session.
func (s *Store) Put(id string, sm sm2.StateMachine) error {
	s.mu.Lock()
	now := s.now()
	expired := s.sweepLocked(now)

	var err error
	switch _, ok := s.sessions[id]; {
	case ok:
		err = fmt.Errorf("%w: %s", sm2.ErrSessionExists, id)
	case s.limit > 0 && len(s.sessions) >= s.limit:
		err = fmt.Errorf("%w: %d sessions", ErrStoreFull, s.limit)
	default:
		e := entry{sm: sm}
		if s.ttl > 0 {
			e.expires = now.Add(s.ttl)
		}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	destroyAll(expired)
	return err
}

// Replace swaps the state of an existing session after a transition. The
// previous state is not destroyed since its successor may share its key.
// The session keeps its original deadline.
func (s *Store) Replace(id string, sm sm2.StateMachine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", sm2.ErrSessionNotFound, id)
	}
	e.sm = sm
	s.sessions[id] = e
	return nil
}

func (s *Store) Get(id string) (sm2.StateMachine, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && s.expiredLocked(e, s.now()) {
		delete(s.sessions, id)
		s.mu.Unlock()
		destroy(e.sm)
		return nil, fmt.Errorf("%w: %s expired", sm2.ErrSessionNotFound, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", sm2.ErrSessionNotFound, id)
	}
	return e.sm, nil
}

// Remove deletes the session and zeroes any secret it holds.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		destroy(e.sm)
	}
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	expired := s.sweepLocked(s.now())
	s.mu.Unlock()

	destroyAll(expired)
	return len(expired)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close removes every session.
func (s *Store) Close() {
	s.mu.Lock()
	all := make([]sm2.StateMachine, 0, len(s.sessions))
	for id, e := range s.sessions {
		all = append(all, e.sm)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	destroyAll(all)
}

func (s *Store) expiredLocked(e entry, now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

func (s *Store) sweepLocked(now time.Time) []sm2.StateMachine {
	if s.ttl <= 0 {
		return nil
	}
	var expired []sm2.StateMachine
	for id, e := range s.sessions {
		if s.expiredLocked(e, now) {
			expired = append(expired, e.sm)
			delete(s.sessions, id)
		}
	}
	return expired
}

func destroyAll(states []sm2.StateMachine) {
	for _, sm := range states {
		destroy(sm)
	}
}

func destroy(sm sm2.StateMachine) {
	if d, ok := sm.(sm2.Destroyer); ok {
		d.Destroy()
	}
}
