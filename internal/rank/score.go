package rank

import (
	"math"
	"sort"
)

// Standard BM25 parameters.
const (
	K1 = 1.5
	B  = 0.75
)

// Result is one scored chunk from a ranked query.
type Result struct {
	DocID int     `json:"docId"`
	Score float64 `json:"score"`
}

// Score ranks every chunk in e against query, returning results sorted by
// score descending (ties broken by ascending DocID for determinism),
// filtered to score > 0 and >= minScore, truncated to topK when topK > 0.
func (e *IndexEntry) Score(query, tokenizerMode string, topK int, minScore float64) []Result {
	terms := Tokenize(query, tokenizerMode)
	if len(terms) == 0 || e.ChunkCount == 0 {
		return nil
	}

	qf := make(map[string]int, len(terms))
	for _, t := range terms {
		qf[t]++
	}

	n := float64(e.ChunkCount)
	scores := make(map[int]float64)
	for term, freq := range qf {
		postings, ok := e.Postings[term]
		if !ok {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			var ratio float64
			if e.AvgDocLen > 0 {
				ratio = float64(e.DocLengths[p.DocID]) / e.AvgDocLen
			}
			denom := float64(p.TF) + K1*(1-B+B*ratio)
			scores[p.DocID] += float64(freq) * idf * (float64(p.TF) * (K1 + 1)) / denom
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		if score <= 0 || score < minScore {
			continue
		}
		results = append(results, Result{DocID: docID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
