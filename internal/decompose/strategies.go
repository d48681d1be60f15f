package decompose

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/redos"
	"github.com/rlm-server/rlm/internal/tokenizer"
)

func fixedSize(text string, options map[string]any) ([]Chunk, error) {
	chunkSize := optInt(options, "chunkSize", 1000)
	overlap := optInt(options, "overlap", 0)
	step := chunkSize - overlap
	if chunkSize < 1 || overlap < 0 || step <= 0 {
		return nil, errors.NewInvalidInput("chunkSize", "fixed_size requires chunkSize-overlap > 0")
	}

	n := len(text)
	var chunks []Chunk
	for start := 0; start < n; start += step {
		end := start + chunkSize
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			StartOffset: start,
			EndOffset:   end,
			Content:     text[start:end],
		})
	}
	if len(text) == 0 {
		chunks = append(chunks, Chunk{StartOffset: 0, EndOffset: 0, Content: ""})
	}
	return chunks, nil
}

// lineOffsets returns lines split on "\n" and the byte offset each line
// starts at, with a trailing sentinel equal to len(text) so that a chunk
// spanning lines [a,b) has StartOffset=starts[a] and, when b==len(lines),
// EndOffset=starts[len(lines)] (i.e. len(text)); otherwise
// EndOffset=starts[b]-1, dropping the separator before line b.
func lineOffsets(text string) (lines []string, starts []int) {
	lines = strings.Split(text, "\n")
	starts = make([]int, len(lines)+1)
	pos := 0
	for i, l := range lines {
		starts[i] = pos
		pos += len(l)
		if i < len(lines)-1 {
			pos++ // the '\n' separator
		}
	}
	starts[len(lines)] = pos
	return lines, starts
}

func byLines(text string, options map[string]any) ([]Chunk, error) {
	linesPerChunk := optInt(options, "linesPerChunk", 50)
	overlap := optInt(options, "overlap", 0)
	if linesPerChunk < 1 || overlap < 0 {
		return nil, errors.NewInvalidInput("linesPerChunk", "by_lines requires linesPerChunk >= 1 and overlap >= 0")
	}
	step := linesPerChunk - overlap
	if step < 1 {
		step = 1
	}

	lines, starts := lineOffsets(text)
	n := len(lines)

	var chunks []Chunk
	for a := 0; a < n; a += step {
		b := a + linesPerChunk
		if b > n {
			b = n
		}
		start := starts[a]
		var end int
		if b == n {
			end = starts[n]
		} else {
			end = starts[b] - 1
		}
		chunks = append(chunks, Chunk{
			StartOffset: start,
			EndOffset:   end,
			Content:     strings.Join(lines[a:b], "\n"),
			Metadata: map[string]any{
				"startLine": a + 1,
				"endLine":   b,
				"lineCount": b - a,
			},
		})
	}
	return chunks, nil
}

var paragraphSep = regexp.MustCompile(`\n{2,}`)

func isSpaceByte(b byte) bool { return unicode.IsSpace(rune(b)) }

// trimSpan trims leading/trailing whitespace from text[start:end] while
// keeping offsets anchored to the original string, so paragraph/sentence/
// regex splits can report the original offsets for their trimmed parts.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	for end > start && isSpaceByte(text[end-1]) {
		end--
	}
	return start, end
}

func byParagraphs(text string, _ map[string]any) ([]Chunk, error) {
	seps := paragraphSep.FindAllStringIndex(text, -1)

	var chunks []Chunk
	segStart := 0
	emit := func(segEnd int) {
		start, end := trimSpan(text, segStart, segEnd)
		if start >= end {
			return
		}
		chunks = append(chunks, Chunk{
			StartOffset: start,
			EndOffset:   end,
			Content:     text[start:end],
			Metadata:    map[string]any{"type": "paragraph"},
		})
	}
	for _, sep := range seps {
		emit(sep[0])
		segStart = sep[1]
	}
	emit(len(text))
	return chunks, nil
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)

func bySentences(text string, _ map[string]any) ([]Chunk, error) {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		if text == "" {
			return nil, nil
		}
		return []Chunk{{
			StartOffset: 0,
			EndOffset:   len(text),
			Content:     text,
			Metadata:    map[string]any{"type": "sentence"},
		}}, nil
	}

	var chunks []Chunk
	for _, m := range matches {
		start, end := trimSpan(text, m[0], m[1])
		if start >= end {
			continue
		}
		chunks = append(chunks, Chunk{
			StartOffset: start,
			EndOffset:   end,
			Content:     text[start:end],
			Metadata:    map[string]any{"type": "sentence"},
		})
	}
	return chunks, nil
}

// headerPattern matches markdown headers h1-h6 at the start of a line,
// mirroring the fence-skipping approach a sibling capsule-splitting
// heuristic in the pack uses for the same problem: headers inside fenced
// code blocks don't count as section boundaries.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+)$`)
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

func fencedRanges(text string) [][2]int {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}
	var ranges [][2]int
	var openChar byte
	var openLen, openStart int
	inFence := false
	for _, m := range matches {
		fenceChars := text[m[2]:m[3]]
		char := fenceChars[0]
		fenceLen := len(fenceChars)
		if !inFence {
			openChar, openLen, openStart, inFence = char, fenceLen, m[0], true
		} else if char == openChar && fenceLen >= openLen {
			ranges = append(ranges, [2]int{openStart, m[1]})
			inFence = false
		}
	}
	return ranges
}

func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func bySections(text string, options map[string]any) ([]Chunk, error) {
	minSectionLength := optInt(options, "minSectionLength", 0)
	mergeEmpty := optBool(options, "mergeEmptySections", false)

	all := headerPattern.FindAllStringSubmatchIndex(text, -1)
	fences := fencedRanges(text)
	var matches [][]int
	for _, m := range all {
		if !insideFence(m[0], fences) {
			matches = append(matches, m)
		}
	}

	if len(matches) == 0 {
		return []Chunk{{
			StartOffset: 0,
			EndOffset:   len(text),
			Content:     text,
			Metadata:    map[string]any{"type": "single"},
		}}, nil
	}

	var raw []Chunk
	if matches[0][0] > 0 {
		preambleEnd := dropTrailingNewline(text, 0, matches[0][0])
		preamble := text[0:preambleEnd]
		if strings.TrimSpace(preamble) != "" {
			raw = append(raw, Chunk{
				StartOffset: 0,
				EndOffset:   preambleEnd,
				Content:     preamble,
				Metadata:    map[string]any{"type": "preamble", "tags": []string{"preamble"}},
			})
		}
	}

	for i, m := range matches {
		level := m[3] - m[2]
		title := text[m[4]:m[5]]
		start := m[0]
		var end int
		if i+1 < len(matches) {
			end = dropTrailingNewline(text, start, matches[i+1][0])
		} else {
			end = len(text)
		}
		raw = append(raw, Chunk{
			StartOffset: start,
			EndOffset:   end,
			Content:     text[start:end],
			Metadata: map[string]any{
				"level": level,
				"title": title,
				"type":  "section",
				"tags":  []string{"section", sectionLevelTag(level)},
			},
		})
	}

	if mergeEmpty || minSectionLength > 0 {
		raw = coalesceSections(raw, minSectionLength)
	}

	return raw, nil
}

// dropTrailingNewline returns end unchanged unless it falls right after the
// "\n" that separates this span from the next header, in which case it
// backs off by one so the emitted content doesn't carry that separator —
// the same convention by_lines uses for its own line-boundary offsets.
func dropTrailingNewline(text string, start, end int) int {
	if end > start && text[end-1] == '\n' {
		return end - 1
	}
	return end
}

func sectionLevelTag(level int) string {
	return "level-" + string(rune('0'+level))
}

// coalesceSections merges a section into its predecessor when the
// section's own content (excluding its header line) is empty or shorter
// than minLength, per the by_sections options mergeEmptySections and
// minSectionLength.
func coalesceSections(chunks []Chunk, minLength int) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if len(out) > 0 && c.Metadata != nil && c.Metadata["type"] == "section" {
			body := ""
			if nl := strings.IndexByte(c.Content, '\n'); nl >= 0 {
				body = strings.TrimSpace(c.Content[nl+1:])
			}
			if body == "" || len(body) < minLength {
				prev := &out[len(out)-1]
				if prev.EndOffset < c.StartOffset {
					prev.Content += "\n" // the separator dropTrailingNewline removed
				}
				prev.EndOffset = c.EndOffset
				prev.Content += c.Content
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func byRegex(text string, options map[string]any) ([]Chunk, error) {
	pattern := optString(options, "pattern", "")
	if pattern == "" {
		return nil, errors.NewInvalidInput("pattern", "by_regex requires a pattern")
	}
	if err := redos.Validate(pattern); err != nil {
		return nil, errors.NewInvalidRegex(pattern, err.Error())
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewInvalidRegex(pattern, err.Error())
	}

	seps := re.FindAllStringIndex(text, -1)
	var chunks []Chunk
	segStart := 0
	emit := func(segEnd int) {
		start, end := trimSpan(text, segStart, segEnd)
		if start >= end {
			return
		}
		chunks = append(chunks, Chunk{StartOffset: start, EndOffset: end, Content: text[start:end]})
	}
	for _, sep := range seps {
		if sep[1] == sep[0] {
			continue // zero-length match: not a usable separator
		}
		emit(sep[0])
		segStart = sep[1]
	}
	emit(len(text))
	return chunks, nil
}

func byTokens(text string, options map[string]any, resolve func(name string) (tokenizer.Provider, error)) ([]Chunk, error) {
	tokensPerChunk := optInt(options, "tokensPerChunk", 500)
	tokenOverlap := optInt(options, "tokenOverlap", 0)
	step := tokensPerChunk - tokenOverlap
	if tokensPerChunk < 1 || tokenOverlap < 0 || step <= 0 {
		return nil, errors.NewInvalidInput("tokensPerChunk", "by_tokens requires tokensPerChunk-tokenOverlap > 0")
	}

	name := optString(options, "model", optString(options, "encoding", ""))
	provider, err := resolve(name)
	if err != nil || provider == nil {
		return nil, errors.NewInvalidInput("model", "requested tokenizer is unavailable")
	}

	tokens, err := provider.Encode(text)
	if err != nil {
		return nil, errors.NewInvalidInput("tokensPerChunk", "tokenizer failed to encode text: "+err.Error())
	}

	offsets := make([]int, len(tokens)+1)
	for i, tok := range tokens {
		offsets[i+1] = offsets[i] + len(tok.Text)
	}

	n := len(tokens)
	var chunks []Chunk
	for a := 0; a < n; a += step {
		b := a + tokensPerChunk
		if b > n {
			b = n
		}
		var content strings.Builder
		for _, tok := range tokens[a:b] {
			content.WriteString(tok.Text)
		}
		chunks = append(chunks, Chunk{
			StartOffset: offsets[a],
			EndOffset:   offsets[b],
			Content:     content.String(),
			Metadata: map[string]any{
				"token_start": a,
				"token_end":   b,
				"token_count": b - a,
			},
		})
	}
	if n == 0 {
		return nil, nil
	}
	return chunks, nil
}
