package search

import "strings"

// Substring scans text for literal occurrences of needle, case-sensitive or
// not, up to maxMatches (defaulting the same as Regex).
func Substring(text, needle string, caseSensitive bool, maxMatches int) []Match {
	if needle == "" {
		return nil
	}
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	haystack, target := text, needle
	if !caseSensitive {
		haystack, target = strings.ToLower(text), strings.ToLower(needle)
	}

	lines := NewLineIndex(text)
	var matches []Match
	pos := 0
	for len(matches) < maxMatches {
		idx := strings.Index(haystack[pos:], target)
		if idx < 0 {
			break
		}
		start := pos + idx
		end := start + len(needle)
		matches = append(matches, Match{
			Line:   lines.LineAt(start),
			Offset: start,
			Length: end - start,
			Text:   text[start:end],
		})
		pos = end
	}
	return matches
}
