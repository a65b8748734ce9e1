package suggest

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// cacheEntry represents one cached completion.
type cacheEntry struct {
	expiry time.Time
	text   string
}

// responseCache provides thread-safe caching of completions keyed by prompt
// and temperature, so repeat suggestions within a run are not paid for twice.
type responseCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

// newResponseCache creates a new cache with the specified TTL.
func newResponseCache(ttl time.Duration) *responseCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func cacheKey(prompt string, temperature float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%.2f:%s", temperature, prompt)))
	return fmt.Sprintf("%x", sum)
}

// get retrieves a completion from the cache if it exists and hasn't expired.
func (c *responseCache) get(prompt string, temperature float64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[cacheKey(prompt, temperature)]
	if !exists || time.Now().After(entry.expiry) {
		return "", false
	}
	return entry.text, true
}

// set stores a completion in the cache.
func (c *responseCache) set(prompt string, temperature float64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(prompt, temperature)] = cacheEntry{
		text:   text,
		expiry: time.Now().Add(c.ttl),
	}
}
