package cache

import (
	"sync"
	"time"

	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/inference"
)

type Config struct {
	MaxSize int
	TTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSize: 50,
		TTL:     5 * time.Minute,
	}
}

type entry struct {
	result     *inference.Result
	insertedAt time.Time
}

// ResponseCache maps frame cache keys to previously computed results.
// Eviction is oldest-inserted-first when full; recency of use is
// deliberately not tracked. Entries past TTL are treated as absent on
// read and dropped then, never swept. Keys derive from sampled encoded
// bytes, so visually distinct frames can collide; that is an accepted
// approximation.
type ResponseCache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	order   []string
	hits    uint64
	misses  uint64
	now     func() time.Time
}

type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

func New(cfg Config) *ResponseCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &ResponseCache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (c *ResponseCache) Get(f *frame.Frame) (*inference.Result, bool) {
	key := frame.CacheKey(f.Encoded)
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().Sub(e.insertedAt) > c.cfg.TTL {
		c.remove(key)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.result, true
}

func (c *ResponseCache) Put(f *frame.Frame, result *inference.Result) {
	key := frame.CacheKey(f.Encoded)
	if key == "" || result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}

	if len(c.entries) >= c.cfg.MaxSize {
		c.remove(c.order[0])
	}

	c.entries[key] = &entry{result: result, insertedAt: c.now()}
	c.order = append(c.order, key)
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
}

// remove must be called with the lock held.
func (c *ResponseCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
