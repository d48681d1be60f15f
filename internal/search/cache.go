package search

import (
	"strconv"

	"github.com/rlm-server/rlm/internal/lru"
)

// Kind distinguishes a regex search from a find-all substring scan for
// cache-key purposes; the two never collide even given identical options.
type Kind string

const (
	KindSearch  Kind = "search"
	KindFindAll Kind = "find_all"
)

type cacheKey struct {
	sessionID   string
	contextID   string
	kind        Kind
	options     string
	contentHash string
}

type matchSet []Match

// EstimatedBytes implements lru.Sized.
func (m matchSet) EstimatedBytes() int {
	total := 64
	for _, match := range m {
		total += len(match.Text) + len(match.Context) + 64
		for _, g := range match.Groups {
			total += len(g)
		}
	}
	return total
}

// Searcher caches regex/substring results by content hash, discarding a hit
// whenever the bound text has since changed.
type Searcher struct {
	cache *lru.Cache[cacheKey, matchSet]
}

// NewSearcher builds a query-result cache holding up to maxEntries entries.
func NewSearcher(maxEntries int) *Searcher {
	return &Searcher{cache: lru.New[cacheKey, matchSet](maxEntries, 0)}
}

// SearchRegex runs (or replays a cached run of) a regex search over text.
func (s *Searcher) SearchRegex(sessionID, contextID, pattern string, opts Options, text, contentHash string) ([]Match, error) {
	key := cacheKey{
		sessionID:   sessionID,
		contextID:   contextID,
		kind:        KindSearch,
		options:     regexOptionsKey(pattern, opts),
		contentHash: contentHash,
	}
	if hit, ok := s.cache.Get(key); ok {
		return hit, nil
	}
	matches, err := Regex(text, pattern, opts)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, matchSet(matches))
	return matches, nil
}

// FindAll runs (or replays a cached run of) a substring scan over text.
func (s *Searcher) FindAll(sessionID, contextID, needle string, caseSensitive bool, maxMatches int, text, contentHash string) []Match {
	key := cacheKey{
		sessionID:   sessionID,
		contextID:   contextID,
		kind:        KindFindAll,
		options:     findAllOptionsKey(needle, caseSensitive, maxMatches),
		contentHash: contentHash,
	}
	if hit, ok := s.cache.Get(key); ok {
		return hit
	}
	matches := Substring(text, needle, caseSensitive, maxMatches)
	s.cache.Set(key, matchSet(matches))
	return matches
}

// InvalidatePrefix drops every cached result for sessionID/contextID, or
// for the whole session when contextID is empty, implementing
// session.CacheInvalidator structurally.
func (s *Searcher) InvalidatePrefix(sessionID, contextID string) {
	s.cache.DeleteMatching(func(k cacheKey) bool {
		return k.sessionID == sessionID && (contextID == "" || k.contextID == contextID)
	})
}

func regexOptionsKey(pattern string, opts Options) string {
	sep := "0"
	if opts.CaseSensitive {
		sep = "1"
	}
	compact := "0"
	if opts.Compact {
		compact = "1"
	}
	return "pattern=" + pattern +
		"&cs=" + sep +
		"&compact=" + compact +
		"&ctx=" + strconv.Itoa(opts.ContextChars) +
		"&max=" + strconv.Itoa(opts.MaxMatches) +
		"&timeout=" + strconv.FormatInt(opts.TimeoutMs, 10)
}

func findAllOptionsKey(needle string, caseSensitive bool, maxMatches int) string {
	cs := "0"
	if caseSensitive {
		cs = "1"
	}
	return "needle=" + needle + "&cs=" + cs + "&max=" + strconv.Itoa(maxMatches)
}
