package engine

import (
	"sync"
	"time"
)

// HostMemory remembers which engine last fetched a host. Entries expire
// after the TTL and are dropped on read.
type HostMemory struct {
	mu      sync.Mutex
	entries map[string]hostEntry
	ttl     time.Duration
	now     func() time.Time
}

type hostEntry struct {
	engine    string
	expiresAt time.Time
}

// NewHostMemory creates an empty HostMemory.
func NewHostMemory(ttl time.Duration) *HostMemory {
	return &HostMemory{
		entries: make(map[string]hostEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for host.
func (m *HostMemory) Get(host string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[host]
	if !ok {
		return "", false
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return "", false
	}
	return e.engine, true
}

// Set records the engine that fetched host.
func (m *HostMemory) Set(host, engine string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[host] = hostEntry{engine: engine, expiresAt: m.now().Add(m.ttl)}
}

// Delete forgets host.
func (m *HostMemory) Delete(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, host)
}

// Len returns the number of entries, expired ones included.
func (m *HostMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
