package search

import (
	"regexp"
	"time"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/redos"
)

// Match is one search hit: its line, its offset and length into the
// original text, the literal matched text, any capture groups, and an
// optional surrounding-context window (omitted in compact mode).
type Match struct {
	Line    int      `json:"line"`
	Offset  int      `json:"offset"`
	Length  int      `json:"length"`
	Text    string   `json:"text"`
	Groups  []string `json:"groups,omitempty"`
	Context string   `json:"context,omitempty"`
}

// Options configures a regex search or substring scan.
type Options struct {
	CaseSensitive bool
	Compact       bool
	ContextChars  int
	MaxMatches    int
	TimeoutMs     int64
}

const (
	defaultMaxMatches   = 10000
	defaultTimeoutMs    = 1000
	defaultContextChars = 80
)

// Regex runs pattern against text under opts. Compilation failure or a
// rejected ReDoS-prone shape yields INVALID_REGEX; exceeding the
// wall-clock budget yields REGEX_TIMEOUT. Zero-length matches advance the
// scan position by one byte to prevent livelock.
func Regex(text, pattern string, opts Options) ([]Match, error) {
	if err := redos.Validate(pattern); err != nil {
		return nil, errors.NewInvalidRegex(pattern, err.Error())
	}

	p := pattern
	if !opts.CaseSensitive {
		p = "(?i)" + p
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, errors.NewInvalidRegex(pattern, err.Error())
	}

	maxMatches := opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}
	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	lines := NewLineIndex(text)
	var matches []Match
	pos := 0
	for len(matches) < maxMatches && pos <= len(text) {
		if time.Now().After(deadline) {
			return nil, errors.NewRegexTimeout(pattern, timeoutMs)
		}

		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		m := Match{
			Line:   lines.LineAt(start),
			Offset: start,
			Length: end - start,
			Text:   text[start:end],
		}
		for g := 1; g*2+1 < len(loc); g++ {
			if loc[g*2] < 0 {
				m.Groups = append(m.Groups, "")
				continue
			}
			m.Groups = append(m.Groups, text[pos+loc[g*2]:pos+loc[g*2+1]])
		}
		if !opts.Compact {
			m.Context = surroundingContext(text, start, end, opts.ContextChars)
		}
		matches = append(matches, m)

		if end == start {
			pos = end + 1
		} else {
			pos = end
		}
	}
	return matches, nil
}

func surroundingContext(text string, start, end, chars int) string {
	if chars <= 0 {
		chars = defaultContextChars
	}
	from := start - chars
	if from < 0 {
		from = 0
	}
	to := end + chars
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}
