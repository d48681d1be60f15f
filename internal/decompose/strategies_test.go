package decompose

import (
	"testing"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/tokenizer"
	"github.com/rlm-server/rlm/internal/tokenizer/simple"
)

func fakeResolve(name string) (tokenizer.Provider, error) {
	return simple.New(), nil
}

func chunkContents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestFixedSize_E1(t *testing.T) {
	chunks, err := fixedSize("abcdefghij", map[string]any{"chunkSize": float64(4), "overlap": float64(1)})
	if err != nil {
		t.Fatalf("fixedSize() error = %v", err)
	}
	want := []string{"abcd", "defg", "ghij", "j"}
	got := chunkContents(chunks)
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != 4 {
		t.Errorf("chunk[0] offsets = (%d,%d), want (0,4)", chunks[0].StartOffset, chunks[0].EndOffset)
	}
	if chunks[3].StartOffset != 9 || chunks[3].EndOffset != 10 {
		t.Errorf("chunk[3] offsets = (%d,%d), want (9,10)", chunks[3].StartOffset, chunks[3].EndOffset)
	}
}

func TestFixedSize_RejectsNonPositiveStep(t *testing.T) {
	_, err := fixedSize("abc", map[string]any{"chunkSize": float64(2), "overlap": float64(2)})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestByLines_OffsetsAndContent(t *testing.T) {
	text := "one\ntwo\nthree\nfour"
	chunks, err := byLines(text, map[string]any{"linesPerChunk": float64(2), "overlap": float64(0)})
	if err != nil {
		t.Fatalf("byLines() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Content != "one\ntwo" {
		t.Errorf("chunk[0].Content = %q, want %q", chunks[0].Content, "one\ntwo")
	}
	if text[chunks[0].StartOffset:chunks[0].EndOffset] != chunks[0].Content {
		t.Errorf("chunk[0] offsets do not match its own content")
	}
	if chunks[1].Content != "three\nfour" {
		t.Errorf("chunk[1].Content = %q, want %q", chunks[1].Content, "three\nfour")
	}
	if text[chunks[1].StartOffset:chunks[1].EndOffset] != chunks[1].Content {
		t.Errorf("chunk[1] offsets do not match its own content")
	}
}

func TestByParagraphs_PreservesOriginalOffsets(t *testing.T) {
	text := "first para\n\n  second para  \n\nthird"
	chunks, err := byParagraphs(text, nil)
	if err != nil {
		t.Fatalf("byParagraphs() error = %v", err)
	}
	want := []string{"first para", "second para", "third"}
	got := chunkContents(chunks)
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i, c := range chunks {
		if text[c.StartOffset:c.EndOffset] != c.Content {
			t.Errorf("chunk[%d] offsets do not match its own content", i)
		}
		if c.Content != want[i] {
			t.Errorf("chunk[%d].Content = %q, want %q", i, c.Content, want[i])
		}
	}
}

func TestBySections_E2(t *testing.T) {
	text := "intro\n# A\na1\n# B\nb1"
	chunks, err := bySections(text, nil)
	if err != nil {
		t.Fatalf("bySections() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "intro" {
		t.Errorf("preamble = %q, want %q", chunks[0].Content, "intro")
	}
	if chunks[1].Content != "# A\na1" {
		t.Errorf("section A = %q, want %q", chunks[1].Content, "# A\na1")
	}
	if chunks[1].Metadata["level"] != 1 || chunks[1].Metadata["title"] != "A" {
		t.Errorf("section A metadata = %+v", chunks[1].Metadata)
	}
	if chunks[2].Content != "# B\nb1" {
		t.Errorf("section B = %q, want %q", chunks[2].Content, "# B\nb1")
	}
}

func TestBySections_NoHeadersEmitsSingleChunk(t *testing.T) {
	chunks, err := bySections("just plain text, no headers here", nil)
	if err != nil {
		t.Fatalf("bySections() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Metadata["type"] != "single" {
		t.Fatalf("chunks = %+v, want one chunk tagged single", chunks)
	}
}

func TestBySections_SkipsHeadersInsideFences(t *testing.T) {
	text := "# Real Header\ntext\n```\n# not a header\n```\nmore text"
	chunks, err := bySections(text, nil)
	if err != nil {
		t.Fatalf("bySections() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 (fenced header ignored): %+v", len(chunks), chunks)
	}
	if chunks[0].Metadata["title"] != "Real Header" {
		t.Errorf("title = %v, want Real Header", chunks[0].Metadata["title"])
	}
}

func TestBySentences_SplitsOnTerminators(t *testing.T) {
	text := "One. Two! Three?"
	chunks, err := bySentences(text, nil)
	if err != nil {
		t.Fatalf("bySentences() error = %v", err)
	}
	want := []string{"One.", "Two!", "Three?"}
	got := chunkContents(chunks)
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBySentences_NoTerminatorEmitsSingleChunk(t *testing.T) {
	chunks, err := bySentences("no terminator here", nil)
	if err != nil {
		t.Fatalf("bySentences() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "no terminator here" {
		t.Fatalf("chunks = %+v, want one whole-text chunk", chunks)
	}
}

func TestByRegex_SplitsOnPattern(t *testing.T) {
	chunks, err := byRegex("a,b;c", map[string]any{"pattern": `[,;]`})
	if err != nil {
		t.Fatalf("byRegex() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	got := chunkContents(chunks)
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestByRegex_RejectsReDoSShape(t *testing.T) {
	_, err := byRegex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa!", map[string]any{"pattern": `(a+)+$`})
	if !errors.Is(err, errors.CodeInvalidRegex) {
		t.Fatalf("err = %v, want INVALID_REGEX", err)
	}
}

func TestByTokens_ReconstructsOffsets(t *testing.T) {
	text := "hello world foo bar"
	chunks, err := byTokens(text, map[string]any{"tokensPerChunk": float64(2), "tokenOverlap": float64(0)}, fakeResolve)
	if err != nil {
		t.Fatalf("byTokens() error = %v", err)
	}
	for _, c := range chunks {
		if text[c.StartOffset:c.EndOffset] != c.Content {
			t.Errorf("chunk offsets (%d,%d) do not match content %q in %q", c.StartOffset, c.EndOffset, c.Content, text)
		}
	}
}
