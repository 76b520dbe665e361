package standardizer

import (
	"container/list"
	"sync"

	"github.com/hyperjump/titlenorm/internal/models"
)

// resultCache is an LRU cache of match results keyed by query text. Entries are tagged
// with the generation of the index that produced them and are ignored once a newer index
// is loaded. A nil *resultCache caches nothing.
type resultCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key    string
	gen    uint64
	result models.MatchResult
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		return nil
	}
	return &resultCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached result for query if it was produced by generation gen.
func (c *resultCache) Get(gen uint64, query string) (models.MatchResult, bool) {
	if c == nil {
		return models.MatchResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[query]
	if !ok {
		return models.MatchResult{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.gen != gen {
		c.lru.Remove(elem)
		delete(c.cache, query)
		return models.MatchResult{}, false
	}
	c.lru.MoveToFront(elem)
	return entry.result, true
}

// Set stores the result for query, evicting the least recently used entry if at capacity.
func (c *resultCache) Set(gen uint64, query string, result models.MatchResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[query]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.gen, entry.result = gen, result
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: query, gen: gen, result: result})
	c.cache[query] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Purge drops every entry.
func (c *resultCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of cached entries.
func (c *resultCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
