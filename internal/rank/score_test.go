package rank

import (
	"testing"

	"github.com/rlm-server/rlm/internal/decompose"
)

func TestScore_E3(t *testing.T) {
	chunks := []decompose.Chunk{
		{Index: 0, Content: "the cat sat"},
		{Index: 1, Content: "dogs bark"},
		{Index: 2, Content: "the cat and the cat"},
	}
	idx := BuildIndex(chunks, "hash", "word")

	results := idx.Score("cat", "word", 0, 0)

	byDoc := map[int]float64{}
	for _, r := range results {
		byDoc[r.DocID] = r.Score
	}
	if _, ok := byDoc[1]; ok {
		t.Errorf("chunk 1 should be absent (score 0), got %v", byDoc[1])
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2 entries", results)
	}
	if results[0].DocID != 2 {
		t.Errorf("results[0].DocID = %d, want 2 (highest tf chunk ranks first)", results[0].DocID)
	}
	if results[1].DocID != 0 {
		t.Errorf("results[1].DocID = %d, want 0", results[1].DocID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results[0].Score = %v should exceed results[1].Score = %v", results[0].Score, results[1].Score)
	}
}

func TestScore_RespectsTopKAndMinScore(t *testing.T) {
	chunks := []decompose.Chunk{
		{Content: "apple apple apple"},
		{Content: "apple"},
		{Content: "banana"},
	}
	idx := BuildIndex(chunks, "hash", "word")

	results := idx.Score("apple", "word", 1, 0)
	if len(results) != 1 {
		t.Fatalf("results = %+v, want 1 (topK=1)", results)
	}

	all := idx.Score("apple", "word", 0, 0)
	if len(all) != 2 {
		t.Fatalf("results = %+v, want 2 chunks containing apple", all)
	}

	filtered := idx.Score("apple", "word", 0, 1e9)
	if len(filtered) != 0 {
		t.Errorf("results = %+v, want none above an unreachable min_score", filtered)
	}
}

func TestScore_Monotonicity(t *testing.T) {
	base := []decompose.Chunk{
		{Content: "the cat sat"},
		{Content: "the cat ran"},
	}
	idxBase := BuildIndex(base, "hash1", "word")
	before := idxBase.Score("cat", "word", 0, 0)

	withExtra := append(append([]decompose.Chunk{}, base...), decompose.Chunk{Content: "totally unrelated dogs bark"})
	idxExtra := BuildIndex(withExtra, "hash2", "word")
	after := idxExtra.Score("cat", "word", 0, 0)

	if len(before) != len(after) {
		t.Fatalf("adding a disjoint-term chunk changed result count: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].DocID != after[i].DocID {
			t.Errorf("rank order changed at position %d: %d vs %d", i, before[i].DocID, after[i].DocID)
		}
	}
}
