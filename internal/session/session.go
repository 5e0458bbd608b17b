// Package session holds the signed-in user of the command line client and
// persists it between runs.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/dawgsconnect/jobboard/types"
)

// ErrNoSession is returned when an operation needs a signed-in user.
var ErrNoSession = errors.New("not signed in")

// State is the persisted blob: the access token and the profile read on
// sign-in.
type State struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        types.User `json:"user"`
}

// Store persists a single State.
type Store interface {
	Load() (*State, error)
	Save(state State) error
	Clear() error
}

// Session is the explicit replacement for a process-wide current user.
// Restore it once at start-up, Begin it on sign-in and End it on sign-out.
type Session struct {
	store Store
	now   func() time.Time

	mu      sync.RWMutex
	current *State
}

func New(store Store) *Session {
	return &Session{store: store, now: time.Now}
}

// Restore loads the persisted state. An unreadable or expired blob is
// removed and the session starts signed out.
func (s *Session) Restore() error {
	state, err := s.store.Load()
	if err != nil {
		s.set(nil)
		return s.store.Clear()
	}
	if state == nil || state.AccessToken == "" {
		s.set(nil)
		return nil
	}
	if !state.ExpiresAt.IsZero() && !s.now().Before(state.ExpiresAt) {
		s.set(nil)
		return s.store.Clear()
	}
	s.set(state)
	return nil
}

// Begin persists state and makes it current.
func (s *Session) Begin(state State) error {
	if err := s.store.Save(state); err != nil {
		return err
	}
	s.set(&state)
	return nil
}

// End clears both the persisted and the in-memory state.
func (s *Session) End() error {
	s.set(nil)
	return s.store.Clear()
}

// Current returns the signed-in state, if any.
func (s *Session) Current() (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return State{}, false
	}
	return *s.current, true
}

// Token returns the access token or ErrNoSession.
func (s *Session) Token() (string, error) {
	state, ok := s.Current()
	if !ok {
		return "", ErrNoSession
	}
	return state.AccessToken, nil
}

func (s *Session) set(state *State) {
	s.mu.Lock()
	s.current = state
	s.mu.Unlock()
}
