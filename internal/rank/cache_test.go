package rank

import (
	"testing"

	"github.com/rlm-server/rlm/internal/decompose"
)

func TestRanker_IndexCachesUntilContentHashChanges(t *testing.T) {
	r := New(100, 100)
	chunks := []decompose.Chunk{{Content: "the cat sat"}}

	e1 := r.Index("s1", "main", "fixed_size", nil, chunks, "hash1", "word")
	e2 := r.Index("s1", "main", "fixed_size", nil, chunks, "hash1", "word")
	if e1 != e2 {
		t.Error("Index() rebuilt despite matching content-hash")
	}

	e3 := r.Index("s1", "main", "fixed_size", nil, chunks, "hash2", "word")
	if e3 == e1 {
		t.Error("Index() reused stale entry after content-hash changed")
	}
}

func TestRanker_RankMemoizesQuery(t *testing.T) {
	r := New(100, 100)
	chunks := []decompose.Chunk{{Content: "the cat sat"}, {Content: "dogs bark"}}
	entry := r.Index("s1", "main", "fixed_size", nil, chunks, "hash1", "word")

	res1 := r.Rank("s1", "main", "fixed_size", nil, entry, "cat", 0, 0, "word")
	res2 := r.Rank("s1", "main", "fixed_size", nil, entry, "cat", 0, 0, "word")
	if len(res1) != len(res2) {
		t.Errorf("Rank() results diverged across calls: %v vs %v", res1, res2)
	}
}

func TestRanker_InvalidatePrefixDropsBothCaches(t *testing.T) {
	r := New(100, 100)
	chunks := []decompose.Chunk{{Content: "the cat sat"}}
	entry := r.Index("s1", "main", "fixed_size", nil, chunks, "hash1", "word")
	r.Rank("s1", "main", "fixed_size", nil, entry, "cat", 0, 0, "word")

	r.InvalidatePrefix("s1", "main")

	if r.indexCache.Len() != 0 {
		t.Errorf("indexCache.Len() = %d, want 0 after invalidation", r.indexCache.Len())
	}
	if r.queryCache.Len() != 0 {
		t.Errorf("queryCache.Len() = %d, want 0 after invalidation", r.queryCache.Len())
	}
}
