package rank

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/lru"
)

type indexKey struct {
	sessionID string
	contextID string
	strategy  string
	options   string
}

type queryKey struct {
	indexKey
	query         string
	topK          int
	minScore      float64
	tokenizerMode string
}

// resultSet wraps a slice of Result to satisfy lru.Sized.
type resultSet []Result

func (r resultSet) EstimatedBytes() int { return 40 + len(r)*24 }

// entrySized adapts *IndexEntry to lru.Sized without requiring IndexEntry
// itself to depend on the cache package.
type entrySized struct{ *IndexEntry }

func (e entrySized) EstimatedBytes() int { return e.IndexEntry.EstimatedBytes() }

// Ranker builds and caches IndexEntry/query results for the Ranker/Index
// component (C4), implementing session.CacheInvalidator structurally so
// the session registry can invalidate it without importing this package.
type Ranker struct {
	indexCache *lru.Cache[indexKey, entrySized]
	queryCache *lru.Cache[queryKey, resultSet]
}

// New builds a Ranker with the given index/query cache entry ceilings.
// These two caches are entry-count-only (maxBytes=0); only the chunk
// cache tracks a byte budget.
func New(indexCacheMaxEntries, queryCacheMaxEntries int) *Ranker {
	return &Ranker{
		indexCache: lru.New[indexKey, entrySized](indexCacheMaxEntries, 0),
		queryCache: lru.New[queryKey, resultSet](queryCacheMaxEntries, 0),
	}
}

// Index returns the IndexEntry for (sessionID, contextID, strategy,
// options), building it from chunks if absent or if the cached entry's
// content-hash or tokenizer mode no longer matches.
func (r *Ranker) Index(sessionID, contextID, strategy string, options map[string]any, chunks []decompose.Chunk, contentHash, tokenizerMode string) *IndexEntry {
	key := indexKey{sessionID: sessionID, contextID: contextID, strategy: strategy, options: canonicalizeOptions(options)}

	if cached, ok := r.indexCache.Get(key); ok {
		if cached.IndexEntry.ContentHash == contentHash && cached.IndexEntry.TokenizerMode == tokenizerMode {
			return cached.IndexEntry
		}
		r.indexCache.Delete(key)
	}

	entry := BuildIndex(chunks, contentHash, tokenizerMode)
	r.indexCache.Set(key, entrySized{entry})
	return entry
}

// Rank scores a query against the given index, memoizing the ranked
// result per (index key, query, topK, minScore, tokenizerMode).
func (r *Ranker) Rank(sessionID, contextID, strategy string, options map[string]any, entry *IndexEntry, query string, topK int, minScore float64, tokenizerMode string) []Result {
	qk := queryKey{
		indexKey:      indexKey{sessionID: sessionID, contextID: contextID, strategy: strategy, options: canonicalizeOptions(options)},
		query:         query,
		topK:          topK,
		minScore:      minScore,
		tokenizerMode: tokenizerMode,
	}
	if cached, ok := r.queryCache.Get(qk); ok {
		return cached
	}

	results := entry.Score(query, tokenizerMode, topK, minScore)
	r.queryCache.Set(qk, resultSet(results))
	return results
}

// InvalidatePrefix implements session.CacheInvalidator.
func (r *Ranker) InvalidatePrefix(sessionID, contextID string) {
	r.indexCache.DeleteMatching(func(k indexKey) bool {
		if k.sessionID != sessionID {
			return false
		}
		return contextID == "" || k.contextID == contextID
	})
	r.queryCache.DeleteMatching(func(k queryKey) bool {
		if k.sessionID != sessionID {
			return false
		}
		return contextID == "" || k.contextID == contextID
	})
}

func canonicalizeOptions(options map[string]any) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renderOption(options[k]))
	}
	return b.String()
}

func renderOption(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
