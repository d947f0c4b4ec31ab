package cache

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/use-agent/pricecrawl/config"
)

// Memcache is a Store backed by a memcached cluster, so verdicts survive
// process restarts and are shared between the CLI and the server.
type Memcache struct {
	client *memcache.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMemcache creates a Memcache store for the given server addresses.
func NewMemcache(ttl time.Duration, logger *slog.Logger, servers ...string) *Memcache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memcache{
		client: memcache.New(servers...),
		ttl:    ttl,
		logger: logger.With("component", "memcache"),
	}
}

// Ping checks that at least one server answers.
func (m *Memcache) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcached. Backend errors count as misses.
func (m *Memcache) Get(key string) ([]byte, bool) {
	item, err := m.client.Get(key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			m.logger.Warn("memcache get failed", "error", err)
		}
		return nil, false
	}
	return item.Value, true
}

// Set stores a value with the configured expiration.
func (m *Memcache) Set(key string, value []byte) {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(m.ttl.Seconds()),
	})
	if err != nil {
		m.logger.Warn("memcache set failed", "error", err)
	}
}

// Open returns the store cfg selects: memcached when addresses are set
// and one of them answers, the in-memory store otherwise. The returned
// func releases the store.
func Open(cfg config.CacheConfig, logger *slog.Logger) (Store, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.MemcacheAddrs) > 0 {
		mc := NewMemcache(cfg.TTL, logger, cfg.MemcacheAddrs...)
		err := mc.Ping()
		if err == nil {
			logger.Info("verdict cache: memcached", "servers", cfg.MemcacheAddrs)
			return mc, func() {}
		}
		logger.Warn("memcached unreachable, using in-memory verdict cache", "servers", cfg.MemcacheAddrs, "error", err)
	}
	mem := NewMemory(cfg.MaxEntries, cfg.TTL)
	logger.Info("verdict cache: memory", "max_entries", cfg.MaxEntries, "ttl", cfg.TTL)
	return mem, mem.Close
}
