// Package rank implements the Ranker/Index component (C4): a per-
// decomposition inverted index and BM25 scorer, cached under the same
// content-hash discipline the decomposer uses.
package rank

import "github.com/rlm-server/rlm/internal/decompose"

// Posting is one (chunk, term-frequency) pair in an inverted-index
// postings list.
type Posting struct {
	DocID int
	TF    int
}

// ChunkMeta is the minimal per-chunk record an IndexEntry keeps: enough to
// map a scored docId back to its span without holding the full chunk.
type ChunkMeta struct {
	StartOffset int
	EndOffset   int
	Length      int
}

// IndexEntry is the inverted index for one (session, context, strategy,
// options) decomposition, bound to the content-hash it was built from.
type IndexEntry struct {
	ContentHash   string
	TokenizerMode string
	ChunkCount    int
	DocLengths    []int
	AvgDocLen     float64
	Postings      map[string][]Posting
	Chunks        []ChunkMeta
}

// EstimatedBytes implements lru.Sized.
func (e *IndexEntry) EstimatedBytes() int {
	total := 128 + e.ChunkCount*32
	for term, postings := range e.Postings {
		total += len(term)*2 + 40 + len(postings)*16
	}
	return total
}

// BuildIndex tokenizes every chunk's content and inverts the resulting
// term frequencies into a postings list keyed by term.
func BuildIndex(chunks []decompose.Chunk, contentHash, tokenizerMode string) *IndexEntry {
	entry := &IndexEntry{
		ContentHash:   contentHash,
		TokenizerMode: tokenizerMode,
		ChunkCount:    len(chunks),
		DocLengths:    make([]int, len(chunks)),
		Postings:      make(map[string][]Posting),
		Chunks:        make([]ChunkMeta, len(chunks)),
	}

	var totalLen int
	for i, c := range chunks {
		terms := Tokenize(c.Content, tokenizerMode)
		entry.DocLengths[i] = len(terms)
		totalLen += len(terms)
		entry.Chunks[i] = ChunkMeta{StartOffset: c.StartOffset, EndOffset: c.EndOffset, Length: len(c.Content)}

		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		for term, count := range tf {
			entry.Postings[term] = append(entry.Postings[term], Posting{DocID: i, TF: count})
		}
	}
	if len(chunks) > 0 {
		entry.AvgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return entry
}
