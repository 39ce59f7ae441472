package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"seasoning/internal/logging"
	"seasoning/internal/page"
)

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 30 * time.Minute

// Session is one open page: the document a browser tab is looking at and
// the handlers bound to it.
type Session struct {
	ID      string
	Name    string
	Page    *page.Page
	Created time.Time

	lastSeen time.Time
	cancel   context.CancelFunc
}

// Store keeps the open sessions and expires idle ones.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   logging.Logger
}

// NewStore creates a session store with the given idle timeout.
func NewStore(ttl time.Duration, logger logging.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = logging.New()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Add registers an open page. cancel, when set, runs once the session is
// removed or expires.
func (s *Store) Add(name string, p *page.Page, cancel context.CancelFunc) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Page:     p,
		Created:  now,
		lastSeen: now,
		cancel:   cancel,
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		s.removeLocked(id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Has reports whether the session is open without counting as use.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return ok && s.now().Sub(sess.lastSeen) <= s.ttl
}

// Remove closes the session with the given id.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) bool {
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	delete(s.sessions, id)
	if sess.cancel != nil {
		sess.cancel()
	}
	return true
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes every session idle for longer than the TTL and reports how
// many it closed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	closed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			s.removeLocked(id)
			closed++
		}
	}
	return closed
}

// RunSweeper sweeps on every interval until ctx is done, then closes all
// remaining sessions.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Printf("expired %d idle page sessions", n)
			}
		}
	}
}

// Close removes every session.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sessions {
		s.removeLocked(id)
	}
}
