// Package cache memoises relevance-gate verdicts so repeated listings of the
// same product do not spend classifier quota.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Store is a byte-oriented key/value cache. A miss and a backend failure
// look the same to callers.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// entry holds a cached value with its creation timestamp.
type entry struct {
	value     []byte
	createdAt time.Time
}

// Memory is a bounded in-memory Store with a fixed TTL.
// It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemory creates a Memory store holding at most maxEntries values for ttl.
// A background goroutine evicts expired entries every ttl/12 (minimum 1s)
// until Close is called.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Memory{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key hashes the parts into a fixed-length cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value stored under key if it has not expired.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. If the store is at capacity, a random entry
// is evicted to make room.
func (c *Memory) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, so this evicts an arbitrary entry.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		value:     value,
		createdAt: time.Now(),
	}
}

// Len reports the number of entries currently held, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the eviction goroutine.
func (c *Memory) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Memory) cleanupLoop() {
	interval := c.ttl / 12
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.ttl <= 0 {
				continue
			}
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
