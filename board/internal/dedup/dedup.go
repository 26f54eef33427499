// Package dedup tracks which load IDs have already been seen in the
// current watch session so the same posting is not emitted twice.
package dedup

import (
	"sort"
	"time"
)

// Config bounds the cache.
type Config struct {
	// TTL is how long an entry suppresses re-emission. Default: 30 minutes.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// MaxEntries is the hard cap. When exceeded, aged entries go first,
	// then the oldest survivors. Default: 100.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 100
	}
}

type entry struct {
	firstSeen time.Time
	cycle     uint64
}

// Cache is a bounded, TTL-expiring set of load IDs. It is owned by the
// cycle pipeline goroutine and is not safe for concurrent use.
type Cache struct {
	cfg     Config
	entries map[string]entry
}

// New creates a Cache.
func New(cfg Config) *Cache {
	cfg.Defaults()
	return &Cache{cfg: cfg, entries: make(map[string]entry)}
}

// Seen reports whether id is known and still fresh. An entry past its TTL
// is dropped on the spot and reported unseen, so an evicted posting that
// is still on the board gets rediscovered.
func (c *Cache) Seen(id string, now time.Time) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	if now.Sub(e.firstSeen) > c.cfg.TTL {
		delete(c.entries, id)
		return false
	}
	return true
}

// Remember records id as seen during the given cycle. Idempotent: a
// second call keeps the original firstSeen, so TTL expiry is measured
// from discovery, not from the latest sighting. When the cap is
// exceeded the cache sweeps itself.
func (c *Cache) Remember(id string, cycle uint64, now time.Time) {
	if _, ok := c.entries[id]; !ok {
		c.entries[id] = entry{firstSeen: now, cycle: cycle}
	}
	if len(c.entries) > c.cfg.MaxEntries {
		c.Sweep(now)
	}
}

// Sweep removes aged entries first, then trims the oldest survivors until
// the cache fits under the cap. Returns how many were removed by each rule.
func (c *Cache) Sweep(now time.Time) (aged, trimmed int) {
	for id, e := range c.entries {
		if now.Sub(e.firstSeen) > c.cfg.TTL {
			delete(c.entries, id)
			aged++
		}
	}
	if len(c.entries) <= c.cfg.MaxEntries {
		return aged, 0
	}

	type rec struct {
		id string
		at time.Time
	}
	all := make([]rec, 0, len(c.entries))
	for id, e := range c.entries {
		all = append(all, rec{id, e.firstSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	excess := len(c.entries) - c.cfg.MaxEntries
	for _, r := range all[:excess] {
		delete(c.entries, r.id)
		trimmed++
	}
	return aged, trimmed
}

// Clear empties the cache. Called on session stop: a fresh session starts
// with no suppression history.
func (c *Cache) Clear() {
	c.entries = make(map[string]entry)
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return len(c.entries) }

// SetConfig swaps the bounds mid-session without touching entries. The
// next Remember or Sweep applies the new limits.
func (c *Cache) SetConfig(cfg Config) {
	cfg.Defaults()
	c.cfg = cfg
}
