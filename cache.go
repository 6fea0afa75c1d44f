package goAccounts

import (
	"sync"
	"time"
)

// accountCache is a bounded read-through cache of account snapshots keyed by
// account id. Entries are disposable views, never authoritative: every
// successful mutation invalidates the entry synchronously, and a miss falls
// through to the credential store. The cache is owned by one Engine, not a
// process global, so tests construct their own.
type accountCache struct {
	mu      sync.RWMutex
	entries map[uint64]*cachedAccount
	ttl     time.Duration
	maxSize int

	hits      uint64
	misses    uint64
	evictions uint64
}

type cachedAccount struct {
	account  Account // stored by value; Get hands out copies
	cachedAt time.Time
}

// CacheConfig bounds the engine's account snapshot cache.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for diagnostics.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

func newAccountCache(cfg CacheConfig) *accountCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 512
	}
	return &accountCache{
		entries: make(map[uint64]*cachedAccount),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
	}
}

// Get looks up a snapshot and purges the entry if its TTL has lapsed. The
// whole lookup holds the write lock (counters mutate on every path), so a
// concurrent Put can never have its fresh entry purged by a stale observation.
func (c *accountCache) Get(id uint64) (Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		c.misses++
		return Account{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, id)
		c.misses++
		return Account{}, false
	}

	c.hits++
	return entry.account, true
}

func (c *accountCache) Put(account Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[account.ID]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[account.ID] = &cachedAccount{account: account, cachedAt: time.Now()}
}

func (c *accountCache) Invalidate(id uint64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *accountCache) evictOldestLocked() {
	var oldest uint64
	var oldestAt time.Time
	first := true
	for id, entry := range c.entries {
		if first || entry.cachedAt.Before(oldestAt) {
			oldest, oldestAt, first = id, entry.cachedAt, false
		}
	}
	if !first {
		delete(c.entries, oldest)
		c.evictions++
	}
}

func (c *accountCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
}
