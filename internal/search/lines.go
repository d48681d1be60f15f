// Package search implements the Searcher (C5): regex search and substring
// scan over a context's text, with pre-compile ReDoS rejection, a
// wall-clock execution budget, a match cap, and a query-result cache.
package search

import "sort"

// LineIndex answers "which line is this byte offset on?" by binary search
// over a precomputed line-start table.
type LineIndex struct {
	starts []int
}

// NewLineIndex scans text once for '\n' bytes.
func NewLineIndex(text string) *LineIndex {
	starts := make([]int, 1, 64)
	starts[0] = 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts}
}

// LineAt returns the 1-indexed line number containing offset.
func (l *LineIndex) LineAt(offset int) int {
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
}
