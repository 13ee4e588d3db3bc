package cache

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const keySeparator = "/"

// Key identifies one cached resource. Keys are hierarchical
// (domain, list|detail, scoping id) so invalidation can target a whole
// subtree with a prefix match.
type Key string

func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, keySeparator))
}

func (k Key) HasPrefix(prefix Key) bool {
	if k == prefix {
		return true
	}
	return strings.HasPrefix(string(k), string(prefix)+keySeparator)
}

// Store is a process-wide read-through cache. Concurrent readers of the same
// key share one in-flight fetch, and mutations invalidate by exact key or
// key prefix. There is no timed eviction: entries live until a mutation
// invalidates them, mirroring invalidate-on-write semantics.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]interface{}
	group   singleflight.Group
}

func NewStore() *Store {
	return &Store{entries: make(map[Key]interface{})}
}

// Fetch returns the cached value for key, or runs fn to populate it.
// Two goroutines fetching the same cold key share a single fn call.
func (s *Store) Fetch(key Key, fn func() (interface{}, error)) (interface{}, error) {
	s.mu.RLock()
	value, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err, _ := s.group.Do(string(key), func() (interface{}, error) {
		// re-check: another flight may have populated it before we ran
		s.mu.RLock()
		cached, ok := s.entries[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := fn()
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.entries[key] = fetched
		s.mu.Unlock()

		return fetched, nil
	})

	return value, err
}

// Set writes a value directly at its key, e.g. a mutation's returned entity
// at its detail key, saving a redundant re-fetch.
func (s *Store) Set(key Key, value interface{}) {
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// Remove evicts a single key.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Invalidate evicts every key under the given prefix. The next Fetch for
// any of them goes back to the source.
func (s *Store) Invalidate(prefix Key) {
	s.mu.Lock()
	for key := range s.entries {
		if key.HasPrefix(prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// Len reports the number of live entries, for tests and debugging.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
