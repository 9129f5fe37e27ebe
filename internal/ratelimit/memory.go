package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore keeps windows in a process-local map. State is intentionally
// not shared across processes; multi-instance deployments need a shared
// Store implementation instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) Get(key string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamps, ok := s.windows[key]
	if !ok {
		return nil
	}
	out := make([]time.Time, len(stamps))
	copy(out, stamps)
	return out
}

func (s *MemoryStore) Put(key string, stamps []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(stamps) == 0 {
		delete(s.windows, key)
		return
	}
	s.windows[key] = stamps
}

func (s *MemoryStore) Sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, stamps := range s.windows {
		live := false
		for _, ts := range stamps {
			if !ts.Before(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(s.windows, key)
		}
	}
}

// Len reports the number of tracked subjects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
