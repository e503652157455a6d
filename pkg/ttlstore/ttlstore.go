// Package ttlstore is a keyed store whose entries disappear after a bounded
// lifetime. It backs pending proposals, paginated menu state, interaction
// de-duplication and any other call site that needs self-expiring state
// without a registered callback.
//
// Reads are lazily correct: an entry whose expiry is at or before the clock's
// current time is reported absent on every read, whether or not the
// background janitor has already reclaimed it.
package ttlstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"laxenta/pkg/clock"

	gocache "github.com/patrickmn/go-cache"
)

// ErrInvalidTTL is returned when an entry would never be live.
var ErrInvalidTTL = errors.New("ttlstore: ttl must be positive")

// Options configure a Store.
type Options struct {
	// CleanupInterval is how often unread expired entries are reclaimed.
	// Zero means one minute; negative disables the janitor.
	CleanupInterval time.Duration
	Clock           clock.Clock
}

type entry struct {
	value     any
	expiresAt time.Time
}

type shared struct {
	mu      sync.Mutex
	backend *gocache.Cache
	clock   clock.Clock
}

// Store is safe for concurrent use. Namespaced views share one backend.
type Store struct {
	*shared
	prefix string
}

// New creates an empty store.
func New(opts Options) *Store {
	cleanup := opts.CleanupInterval
	if cleanup == 0 {
		cleanup = time.Minute
	}
	return &Store{
		shared: &shared{
			backend: gocache.New(gocache.NoExpiration, cleanup),
			clock:   clock.OrReal(opts.Clock),
		},
	}
}

// Put stores value under key for ttl, replacing any previous entry.
func (s *Store) Put(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: %q got %s", ErrInvalidTTL, key, ttl)
	}
	s.mu.Lock()
	s.put(key, value, ttl)
	s.mu.Unlock()
	return nil
}

// SetIfAbsent stores value only when key is absent or expired. It reports
// whether the value was stored.
func (s *Store) SetIfAbsent(key string, value any, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("%w: %q got %s", ErrInvalidTTL, key, ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

// Get returns the live value under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Take returns the live value under key and removes it in one step, so at
// most one caller ever observes a given entry.
func (s *Store) Take(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	s.backend.Delete(s.prefixed(key))
	return e.value, true
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	s.backend.Delete(s.prefixed(key))
	s.mu.Unlock()
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	return e.expiresAt.Sub(s.clock.Now()), true
}

// Len counts live entries in this namespace.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for k, item := range s.backend.Items() {
		if !s.owns(k) {
			continue
		}
		if e, ok := item.Object.(entry); ok && now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Namespace returns a view whose keys are prefixed with prefix.
func (s *Store) Namespace(prefix string) *Store {
	return &Store{shared: s.shared, prefix: joinPrefixes(s.prefix, prefix)}
}

// GetAs returns the live value under key if it has type T.
func GetAs[T any](s *Store, key string) (T, bool) {
	var zero T
	raw, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (entry, bool) {
	k := s.prefixed(key)
	raw, ok := s.backend.Get(k)
	if !ok {
		return entry{}, false
	}
	e, ok := raw.(entry)
	if !ok {
		return entry{}, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		s.backend.Delete(k)
		return entry{}, false
	}
	return e, true
}

// put must be called with mu held.
func (s *Store) put(key string, value any, ttl time.Duration) {
	s.backend.Set(s.prefixed(key), entry{value: value, expiresAt: s.clock.Now().Add(ttl)}, ttl)
}

func (s *Store) prefixed(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) owns(k string) bool {
	if s.prefix == "" {
		return true
	}
	return strings.HasPrefix(k, s.prefix+":")
}

func joinPrefixes(parts ...string) string {
	var normalized []string
	for _, part := range parts {
		if trimmed := strings.Trim(part, ": "); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, ":")
}
