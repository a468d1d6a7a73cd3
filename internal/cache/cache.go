package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is a small keyed store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time
	// maxEntries bounds memory; zero means unbounded.
	maxEntries int
}

type Option func(*options)

type options struct {
	now        func() time.Time
	maxEntries int
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

func NewTTLCache[K comparable, V any](opts ...Option) *TTLCache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		entries:    make(map[K]entry[V]),
		now:        o.now,
		maxEntries: o.maxEntries,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked()
		}
	}
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, or the entry closest to expiry when none
// have expired.
func (c *TTLCache[K, V]) evictLocked() {
	now := c.now()
	var (
		victim    K
		victimAt  time.Time
		hasVictim bool
	)
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if !hasVictim || (!e.expiresAt.IsZero() && (victimAt.IsZero() || e.expiresAt.Before(victimAt))) {
			victim, victimAt, hasVictim = k, e.expiresAt, true
		}
	}
	if len(c.entries) >= c.maxEntries && hasVictim {
		delete(c.entries, victim)
	}
}

// Key joins trimmed, lower-cased parts into a cache key.
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
