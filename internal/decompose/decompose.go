package decompose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/tokenizer"
)

// Strategies lists every supported strategy tag, in the order
// decomposeText dispatches on them.
var Strategies = []string{"fixed_size", "by_lines", "by_paragraphs", "by_sections", "by_sentences", "by_regex", "by_tokens"}

// decomposeText performs the raw, uncached split. Indices are assigned
// 0..N-1 in generation order once the strategy-specific spans are known.
func decomposeText(text, strategy string, options map[string]any, resolve func(string) (tokenizer.Provider, error)) ([]Chunk, error) {
	var (
		chunks []Chunk
		err    error
	)

	switch strategy {
	case "fixed_size":
		chunks, err = fixedSize(text, options)
	case "by_lines":
		chunks, err = byLines(text, options)
	case "by_paragraphs":
		chunks, err = byParagraphs(text, options)
	case "by_sections":
		chunks, err = bySections(text, options)
	case "by_sentences":
		chunks, err = bySentences(text, options)
	case "by_regex":
		chunks, err = byRegex(text, options)
	case "by_tokens":
		chunks, err = byTokens(text, options, resolve)
	default:
		return nil, errors.NewInvalidInput("strategy", "unknown decomposition strategy: "+strategy)
	}
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks, nil
}

// Decomposer wraps decomposeText with a max-chunks guard and a
// content-hash-bound chunk cache.
type Decomposer struct {
	cfg   *config.Config
	tok   *tokenizer.Registry
	cache *chunkCache
}

// New builds a Decomposer bounded by cfg.MaxChunks/ChunkCacheMaxEntries/
// ChunkCacheMaxBytes, resolving by_tokens providers through tok.
func New(cfg *config.Config, tok *tokenizer.Registry) *Decomposer {
	return &Decomposer{
		cfg:   cfg,
		tok:   tok,
		cache: newChunkCache(cfg.ChunkCacheMaxEntries, cfg.ChunkCacheMaxBytes),
	}
}

// Decompose returns the chunks for (sessionID, contextID, strategy,
// options) against text, whose content-hash is contentHash. A cache hit
// bound to a stale content-hash is dropped, not returned.
func (d *Decomposer) Decompose(sessionID, contextID, strategy string, options map[string]any, text, contentHash string) ([]Chunk, error) {
	key := cacheKey{sessionID: sessionID, contextID: contextID, strategy: strategy, options: canonicalizeOptions(options)}

	if entry, ok := d.cache.Get(key); ok {
		if entry.contentHash == contentHash {
			return entry.chunks, nil
		}
		d.cache.Delete(key)
	}

	chunks, err := decomposeText(text, strategy, options, d.tok.Resolve)
	if err != nil {
		return nil, err
	}
	if d.cfg.MaxChunks > 0 && len(chunks) > d.cfg.MaxChunks {
		return nil, errors.NewChunkLimit(d.cfg.MaxChunks)
	}

	d.cache.Set(key, cacheEntry{chunks: chunks, contentHash: contentHash})
	return chunks, nil
}

// InvalidatePrefix implements session.CacheInvalidator: it drops every
// cached decomposition for (sessionID, contextID), or every decomposition
// for sessionID when contextID is empty (session-wide eviction/clear).
func (d *Decomposer) InvalidatePrefix(sessionID, contextID string) {
	d.cache.DeleteMatching(func(k cacheKey) bool {
		if k.sessionID != sessionID {
			return false
		}
		return contextID == "" || k.contextID == contextID
	})
}

// canonicalizeOptions renders an option bag into a stable string so that
// two calls with the same options in different key orders share a cache
// entry. Only scalar option values are expected; anything else is
// rendered with fmt's %v formatting.
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
		return fmt.Sprintf("%v", t)
	}
}
