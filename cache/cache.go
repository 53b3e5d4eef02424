// Package cache holds recently scraped results so repeated requests for the
// same URL and format skip the ladder entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

const janitorInterval = time.Minute

// entry holds a cached result with its expiry timestamp.
type entry struct {
	result    *models.ScrapeResult
	expiresAt time.Time
}

// Cache is an in-memory TTL cache for scrape results. Only successful
// results are stored; partial and failed scrapes always rerun. It is safe
// for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	store   map[string]*entry
	max     int
	ttl     time.Duration
	enabled bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time cache snapshot for health reporting.
type Stats struct {
	Enabled bool  `json:"enabled"`
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// New creates a Cache from config and starts its background janitor.
func New(cfg config.CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	max := cfg.MaxEntries
	if max <= 0 {
		max = 512
	}
	c := &Cache{
		store:   make(map[string]*entry),
		max:     max,
		ttl:     ttl,
		enabled: cfg.Enabled,
	}

	go c.janitor()
	return c
}

// Key derives the cache key for one URL and output format.
func Key(url, format string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(format))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached result for key, if present and fresh.
func (c *Cache) Get(key string) (*models.ScrapeResult, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.result.Clone(), true
}

// Set stores a copy of res under key. Non-success results are ignored. At
// capacity a random entry is evicted (map iteration order is random).
func (c *Cache) Set(key string, res *models.ScrapeResult) {
	if !c.enabled || res == nil || res.Status != models.StatusSuccess {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.max {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		result:    res.Clone(),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Snapshot reports current cache statistics.
func (c *Cache) Snapshot() Stats {
	c.mu.RLock()
	entries := len(c.store)
	c.mu.RUnlock()
	return Stats{
		Enabled: c.enabled,
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// janitor evicts expired entries once a minute.
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.store {
			if now.After(e.expiresAt) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
