// Package session owns the mutable state shared across reply attempts: the
// time the last reply began executing and the running counters. State is
// loaded from the stats store at startup and flushed back after every
// terminal outcome and at shutdown.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/otpower88/grabbot/internal/store"
)

// Session is the single owner of cross-attempt mutable state. Counters are
// mutated only by the executor worker; the gate reads LastReply from the
// pipeline consumer, so access is serialized with a mutex.
type Session struct {
	mu        sync.Mutex
	lastReply time.Time
	stats     store.Stats
	store     store.StatsStore
}

// Load constructs a Session seeded from the store.
func Load(st store.StatsStore) (*Session, error) {
	stats, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &Session{stats: stats, store: st}, nil
}

// BeginAttempt counts a new attempt and returns its ordinal. Called once at
// the very start of every attempt, before any possible abort, so every
// invocation counts.
func (s *Session) BeginAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalAttempts++
	return s.stats.TotalAttempts
}

// RecordSuccess counts a successful send and returns the updated counters.
func (s *Session) RecordSuccess() store.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.SuccessCount++
	if s.stats.SuccessCount > s.stats.TotalAttempts {
		// Cannot happen via the attempt flow; clamp rather than persist a
		// violated invariant.
		s.stats.SuccessCount = s.stats.TotalAttempts
	}
	return s.stats
}

// MarkReplyStart records that a reply attempt began executing now. The
// cooldown measures from this moment, not from scheduling.
func (s *Session) MarkReplyStart(now time.Time) {
	s.mu.Lock()
	s.lastReply = now
	s.mu.Unlock()
}

// LastReply returns when the last reply began executing; zero if never.
func (s *Session) LastReply() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReply
}

// Stats returns a copy of the current counters.
func (s *Session) Stats() store.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Flush persists the counters. Called unconditionally on every attempt exit
// path and at shutdown.
func (s *Session) Flush() error {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	if err := s.store.Save(stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}
