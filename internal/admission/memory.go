package admission

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the number of lock shards in a MemoryStore.
const DefaultShards = 16

// MemoryStore keeps admission state in process memory. Clients are spread
// over shards by hash so that unrelated clients do not contend on one lock.
type MemoryStore struct {
	shards []*memoryShard
}

type memoryShard struct {
	mu sync.Mutex
	// requests maps client -> scope -> timestamps, oldest first.
	requests map[string]map[string][]time.Time
	// blacklist maps client -> expiry; the zero time never expires.
	blacklist map[string]time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store with n shards, or DefaultShards when
// n is not positive.
func NewMemoryStore(n int) *MemoryStore {
	if n <= 0 {
		n = DefaultShards
	}
	s := &MemoryStore{shards: make([]*memoryShard, n)}
	for i := range s.shards {
		s.shards[i] = newMemoryShard()
	}
	return s
}

func newMemoryShard() *memoryShard {
	return &memoryShard{
		requests:  make(map[string]map[string][]time.Time),
		blacklist: make(map[string]time.Time),
	}
}

func (s *MemoryStore) shard(client string) *memoryShard {
	return s.shards[xxhash.Sum64String(client)%uint64(len(s.shards))]
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, client string, now time.Time) (bool, error) {
	sh := s.shard(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	expiry, ok := sh.blacklist[client]
	if !ok {
		return false, nil
	}
	if !expiry.IsZero() && !now.Before(expiry) {
		delete(sh.blacklist, client)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Blacklist(_ context.Context, client string, now time.Time, ttl time.Duration) error {
	sh := s.shard(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	sh.blacklist[client] = expiry
	return nil
}

func (s *MemoryStore) Record(_ context.Context, scope, client string, now time.Time, window time.Duration, limit int) (int, bool, error) {
	sh := s.shard(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	scopes, ok := sh.requests[client]
	if !ok {
		scopes = make(map[string][]time.Time)
		sh.requests[client] = scopes
	}

	times := pruneWindow(scopes[scope], now, window)
	if len(times) >= limit {
		scopes[scope] = times
		return len(times), false, nil
	}
	times = append(times, now)
	scopes[scope] = times
	return len(times), true, nil
}

// pruneWindow drops timestamps that are window or more older than now,
// reusing the backing array.
func pruneWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}

func (s *MemoryStore) Forget(_ context.Context, client string) error {
	sh := s.shard(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.requests, client)
	delete(sh.blacklist, client)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.requests = make(map[string]map[string][]time.Time)
		sh.blacklist = make(map[string]time.Time)
		sh.mu.Unlock()
	}
	return nil
}

// Len returns the number of clients with a request log, for tests and
// monitoring.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.requests)
		sh.mu.Unlock()
	}
	return n
}
