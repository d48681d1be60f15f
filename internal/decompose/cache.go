package decompose

import "github.com/rlm-server/rlm/internal/lru"

type cacheKey struct {
	sessionID string
	contextID string
	strategy  string
	options   string
}

type cacheEntry struct {
	chunks      []Chunk
	contentHash string
}

// EstimatedBytes implements lru.Sized: the sum of every chunk's content
// length plus a fixed per-chunk overhead for its offsets and metadata.
func (e cacheEntry) EstimatedBytes() int {
	total := 64
	for _, c := range e.chunks {
		total += len(c.Content) + 64
	}
	return total
}

type chunkCache struct {
	c *lru.Cache[cacheKey, cacheEntry]
}

func newChunkCache(maxEntries, maxBytes int) *chunkCache {
	return &chunkCache{c: lru.New[cacheKey, cacheEntry](maxEntries, maxBytes)}
}

func (cc *chunkCache) Get(key cacheKey) (cacheEntry, bool) { return cc.c.Get(key) }
func (cc *chunkCache) Set(key cacheKey, entry cacheEntry)  { cc.c.Set(key, entry) }
func (cc *chunkCache) Delete(key cacheKey)                 { cc.c.Delete(key) }
func (cc *chunkCache) DeleteMatching(match func(cacheKey) bool) int {
	return cc.c.DeleteMatching(match)
}
