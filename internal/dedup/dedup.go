// Package dedup implements the Dedup Cache: a content-addressed set with TTL
// that suppresses re-translation of semantically identical text.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases, and collapses internal whitespace runs, the
// exact transform both add and contains apply before hashing.
func Normalize(text string) string {
	t := strings.TrimSpace(text)
	t = strings.ToLower(t)
	return whitespaceRun.ReplaceAllString(t, " ")
}

// Hash returns the hex sha256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	addedAt time.Time
	ttl     time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.addedAt) > e.ttl
}

// Cache is a TTL-bearing set of normalized-text hashes.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
}

// New constructs a Dedup Cache with the given default TTL (spec default 10s).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Add records text as seen. Returns false iff it was already present and
// unexpired (i.e. this call added nothing new); true otherwise.
func (c *Cache) Add(text string) bool {
	h := Hash(text)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[h]; ok && !e.expired(now) {
		return false
	}
	c.entries[h] = entry{addedAt: now, ttl: c.ttl}
	return true
}

// Contains reports whether text is present and unexpired, lazily purging an
// expired entry it encounters.
func (c *Cache) Contains(text string) bool {
	h := Hash(text)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[h]
	if !ok {
		return false
	}
	if e.expired(now) {
		delete(c.entries, h)
		return false
	}
	return true
}

// Size reports the current entry count, including any not-yet-purged expired
// entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep purges every expired entry; intended to be called periodically by a
// background goroutine so memory does not grow unbounded between reads.
func (c *Cache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for h, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, h)
			removed++
		}
	}
	return removed
}
