package decompose

import (
	"testing"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/contenthash"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/tokenizer"
	"github.com/rlm-server/rlm/internal/tokenizer/simple"
)

func newTestDecomposer(t *testing.T) *Decomposer {
	t.Helper()
	cfg := config.DefaultConfig()
	reg := tokenizer.NewRegistry(simple.New())
	return New(cfg, reg)
}

func TestDecomposer_CachesByContentHash(t *testing.T) {
	d := newTestDecomposer(t)
	text := "hello world, this is some text."
	hash := contenthash.Hash(text)

	chunks1, err := d.Decompose("s1", "main", "fixed_size", map[string]any{"chunkSize": float64(5)}, text, hash)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	if d.cache.c.Len() != 1 {
		t.Fatalf("cache Len() = %d, want 1", d.cache.c.Len())
	}

	chunks2, err := d.Decompose("s1", "main", "fixed_size", map[string]any{"chunkSize": float64(5)}, text, hash)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(chunks1) != len(chunks2) {
		t.Errorf("cached call returned different chunk count: %d vs %d", len(chunks1), len(chunks2))
	}
}

func TestDecomposer_StaleContentHashRecomputes(t *testing.T) {
	d := newTestDecomposer(t)
	text1 := "hello"
	text2 := "hello world"

	d.Decompose("s1", "main", "fixed_size", map[string]any{"chunkSize": float64(2)}, text1, contenthash.Hash(text1))
	chunks, err := d.Decompose("s1", "main", "fixed_size", map[string]any{"chunkSize": float64(2)}, text2, contenthash.Hash(text2))
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	var joined string
	for _, c := range chunks {
		joined += c.Content
	}
	if joined != text2 {
		t.Errorf("recomputed chunks joined = %q, want %q", joined, text2)
	}
}

func TestDecomposer_InvalidatePrefix(t *testing.T) {
	d := newTestDecomposer(t)
	text := "hello world"
	hash := contenthash.Hash(text)
	d.Decompose("s1", "main", "fixed_size", nil, text, hash)
	d.Decompose("s1", "other", "fixed_size", nil, text, hash)
	d.Decompose("s2", "main", "fixed_size", nil, text, hash)

	d.InvalidatePrefix("s1", "main")

	if _, ok := d.cache.Get(cacheKey{sessionID: "s1", contextID: "main", strategy: "fixed_size", options: canonicalizeOptions(nil)}); ok {
		t.Error("s1/main entry survived InvalidatePrefix")
	}
	if _, ok := d.cache.Get(cacheKey{sessionID: "s1", contextID: "other", strategy: "fixed_size", options: canonicalizeOptions(nil)}); !ok {
		t.Error("s1/other entry was wrongly invalidated")
	}
	if _, ok := d.cache.Get(cacheKey{sessionID: "s2", contextID: "main", strategy: "fixed_size", options: canonicalizeOptions(nil)}); !ok {
		t.Error("s2/main entry was wrongly invalidated")
	}
}

func TestDecomposer_MaxChunksExceeded(t *testing.T) {
	d := newTestDecomposer(t)
	d.cfg.MaxChunks = 2
	text := "abcdefghij"

	_, err := d.Decompose("s1", "main", "fixed_size", map[string]any{"chunkSize": float64(2)}, text, contenthash.Hash(text))
	if !errors.Is(err, errors.CodeChunkLimit) {
		t.Fatalf("err = %v, want CHUNK_LIMIT_EXCEEDED", err)
	}
}

func TestDecomposer_UnknownStrategy(t *testing.T) {
	d := newTestDecomposer(t)
	_, err := d.Decompose("s1", "main", "nonsense", nil, "text", "hash")
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestCanonicalizeOptions_OrderIndependent(t *testing.T) {
	a := canonicalizeOptions(map[string]any{"chunkSize": float64(5), "overlap": float64(1)})
	b := canonicalizeOptions(map[string]any{"overlap": float64(1), "chunkSize": float64(5)})
	if a != b {
		t.Errorf("canonicalizeOptions not order-independent: %q vs %q", a, b)
	}
}
