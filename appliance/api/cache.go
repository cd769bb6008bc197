package api

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCacheTTL = 30 * time.Second
)

type cacheEntry struct {
	data     json.RawMessage
	storedAt time.Time
}

// responseCache is a read cache for GET responses. Entries are only dropped when a
// read finds them stale or when a caller invalidates them.
type responseCache struct {
	mutex   sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (cache *responseCache) get(key string, now time.Time) (json.RawMessage, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	entry, ok := cache.entries[key]
	if !ok || now.Sub(entry.storedAt) >= cache.ttl {
		return nil, false
	}
	return entry.data, true
}

func (cache *responseCache) set(key string, data json.RawMessage, now time.Time) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	cache.entries[key] = cacheEntry{data: data, storedAt: now}
}

func (cache *responseCache) invalidate(endpointPrefix string) int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	removed := 0
	for key := range cache.entries {
		if strings.HasPrefix(key, endpointPrefix) {
			delete(cache.entries, key)
			removed++
		}
	}
	return removed
}

func (cache *responseCache) len() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	return len(cache.entries)
}

// cacheKey pairs the endpoint with the serialized request options. The method is
// normalized so that "", "GET" and "get" share an entry.
func cacheKey(endpoint string, options RequestOptions) string {
	serialized, err := json.Marshal(struct {
		Method string `json:"method,omitempty"`
		Body   any    `json:"body,omitempty"`
	}{
		Method: options.method(),
		Body:   options.Body,
	})
	if err != nil {
		return endpoint
	}
	return endpoint + "_" + string(serialized)
}
