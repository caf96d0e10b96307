package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/exproctor-backend/internal/observability"
)

// Store holds per-student proctoring state in memory. Entries are created on
// first use and evicted once idle for longer than the idle TTL.
type Store struct {
	mu      sync.Mutex
	states  map[int]*State
	idleTTL time.Duration
	now     func() time.Time
}

// NewStore creates a new Store.
func NewStore(idleTTL time.Duration) *Store {
	return &Store{
		states:  make(map[int]*State),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get returns the student's state, creating it if needed. Every call counts as
// activity, so a state handed out here cannot be swept before it is used.
func (s *Store) Get(studentID int) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[studentID]
	if !ok {
		st = &State{}
		s.states[studentID] = st
		observability.ProctorTracked().Set(float64(len(s.states)))
	}
	st.touch(s.now())
	return st
}

// Forget drops the student's state.
func (s *Store) Forget(studentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, studentID)
	observability.ProctorTracked().Set(float64(len(s.states)))
}

// Len returns the number of tracked students.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep evicts idle entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.states {
		if st.idleSince(now) > s.idleTTL {
			delete(s.states, id)
			removed++
		}
	}
	if removed > 0 {
		observability.ProctorTracked().Set(float64(len(s.states)))
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
