package cache

import (
	"container/list"
	"math"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of a store's lifetime counters.
// Counters are monotonic for the life of the store; Clear empties the
// entries but never resets them, so hit-rate numbers stay meaningful
// across clears.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	Expirations    int64   `json:"expirations"`
	TotalRequests  int64   `json:"total_requests"`
	HitRatePercent float64 `json:"hit_rate_percent"`
	Size           int     `json:"cache_size"`
	MaxSize        int     `json:"max_size"`
}

// entry holds one cached value together with its expiry and access metadata.
type entry[V any] struct {
	key        string
	value      V
	createdAt  time.Time
	ttl        time.Duration
	hitCount   int64
	lastAccess time.Time
}

// Store is a bounded in-process cache with per-entry TTLs and true LRU
// eviction. Reads refresh recency; inserting a new key at capacity evicts
// the least-recently-used entry. Expired entries are never returned —
// they are purged lazily on access or eagerly by CleanupExpired.
//
// A Store is safe for concurrent use. All mutable state is guarded by a
// single mutex scoped strictly to this store, so no operation ever holds
// locks on two stores at once.
type Store[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element // element value is *entry[V]
	order      *list.List               // front = most recently used
	maxSize    int
	defaultTTL time.Duration

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	now func() time.Time // swapped out in tests
}

// NewStore creates a Store holding at most maxSize entries. Entries
// written without an explicit TTL expire after defaultTTL.
func NewStore[V any](maxSize int, defaultTTL time.Duration) *Store[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store[V]{
		entries:    make(map[string]*list.Element, maxSize),
		order:      list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value stored under key. A hit refreshes the entry's
// recency and access metadata. An expired entry is removed and counted
// as both an expiration and a miss. Absence is a normal outcome, never
// an error.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.misses++
		return zero, false
	}

	e := elem.Value.(*entry[V])
	now := s.now()

	if now.Sub(e.createdAt) > e.ttl {
		s.removeLocked(elem)
		s.expirations++
		s.misses++
		return zero, false
	}

	s.hits++
	e.hitCount++
	e.lastAccess = now
	s.order.MoveToFront(elem)

	return e.value, true
}

// Set stores value under key with the store's default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.SetTTL(key, value, s.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. An existing key is
// overwritten in place (value, TTL and creation time) and refreshed to
// most-recently-used. Inserting a new key at capacity evicts the current
// LRU entry first. Set never fails — this is a best-effort cache.
func (s *Store[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if elem, ok := s.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.ttl = ttl
		e.createdAt = now
		e.lastAccess = now
		s.order.MoveToFront(elem)
		return
	}

	if len(s.entries) >= s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
			s.evictions++
		}
	}

	e := &entry[V]{
		key:        key,
		value:      value,
		createdAt:  now,
		ttl:        ttl,
		lastAccess: now,
	}
	s.entries[key] = s.order.PushFront(e)
}

// Delete removes key if present. Deleting an absent key is a no-op.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.removeLocked(elem)
	}
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns the number removed. Used for targeted invalidation of a key
// namespace (e.g. cached RAG context strings after re-indexing).
func (s *Store[V]) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, elem := range s.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.removeLocked(elem)
			removed++
		}
	}
	return removed
}

// Clear empties the store. Lifetime counters are deliberately preserved.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element, s.maxSize)
	s.order.Init()
}

// CleanupExpired removes every expired entry and returns the number
// removed. Correctness never depends on calling this — Get already
// purges expired entries lazily — it only reclaims memory proactively.
func (s *Store[V]) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, elem := range s.entries {
		e := elem.Value.(*entry[V])
		if now.Sub(e.createdAt) > e.ttl {
			s.removeLocked(elem)
			removed++
		}
	}
	s.expirations += int64(removed)
	return removed
}

// Len returns the current entry count, including entries that may have
// expired but not yet been purged.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters. The hit rate is 0
// when no requests have been made, otherwise hits/requests rounded to
// two decimals.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(s.hits)/float64(total)*100*100) / 100
	}

	return Stats{
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evictions,
		Expirations:    s.expirations,
		TotalRequests:  total,
		HitRatePercent: rate,
		Size:           len(s.entries),
		MaxSize:        s.maxSize,
	}
}

// removeLocked unlinks elem from both the order list and the key map.
// Callers must hold s.mu.
func (s *Store[V]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[V])
	s.order.Remove(elem)
	delete(s.entries, e.key)
}
