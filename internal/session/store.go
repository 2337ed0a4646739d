package session

import (
	"sync"
	"time"
)

// Session is what the chat layer remembers about one customer between
// messages. The orchestrator never reads it; handlers pass the prompts on
// explicitly.
type Session struct {
	UserID       int64
	Username     string
	Theme        string
	Prompts      []string
	LastActivity time.Time
}

type Options struct {
	// MaxIdle drops sessions not touched for this long. Zero keeps them.
	MaxIdle time.Duration
	Now     func() time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	maxIdle  time.Duration
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		sessions: make(map[int64]*Session),
		maxIdle:  opts.MaxIdle,
		now:      now,
	}
}

func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.Theme = ""
		sess.Prompts = nil
		sess.LastActivity = s.now()
	}
}

// SetPrompts replaces the stored batch for a user.
func (s *Store) SetPrompts(userID int64, username, theme string, prompts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(userID, username)
	sess.LastActivity = s.now()
	sess.Theme = theme
	sess.Prompts = append([]string(nil), prompts...)
}

// Prompts returns a copy of the stored batch and its theme.
func (s *Store) Prompts(userID int64) ([]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ""
	}
	sess.LastActivity = s.now()
	return append([]string(nil), sess.Prompts...), sess.Theme
}

// Prune removes idle sessions and returns how many were dropped.
func (s *Store) Prune() int {
	if s.maxIdle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxIdle)
	n := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) getOrCreateLocked(userID int64, username string) *Session {
	if sess, ok := s.sessions[userID]; ok {
		if sess.Username == "" && username != "" {
			sess.Username = username
		}
		return sess
	}

	sess := &Session{
		UserID:       userID,
		Username:     username,
		LastActivity: s.now(),
	}
	s.sessions[userID] = sess
	return sess
}
