package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default in-process Store. Entries expire lazily: a
// stale entry is deleted on the read that discovers it.
type MemoryStore struct {
	mu      sync.Mutex
	ttls    map[Tier]time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data     map[string]any
	storedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ttls:    DefaultTTLs(),
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, tier Tier) (map[string]any, bool) {
	if data, ok := s.lookup(key, tier); ok {
		return data, true
	}
	if tier == TierHot {
		return s.lookup(key, TierWarm)
	}
	return nil, false
}

func (s *MemoryStore) Set(_ context.Context, key string, data map[string]any, tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tierKey(key, tier)] = memoryEntry{data: data, storedAt: s.now()}
}

func (s *MemoryStore) lookup(key string, tier Tier) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk := tierKey(key, tier)
	entry, ok := s.entries[tk]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.storedAt) > s.ttls[tier] {
		delete(s.entries, tk)
		return nil, false
	}
	return entry.data, true
}
