package search

import (
	"strings"
	"testing"

	"github.com/rlm-server/rlm/internal/errors"
)

func TestRegex_BasicMatchesAndLines(t *testing.T) {
	text := "the cat sat\non the mat\ncat again"
	matches, err := Regex(text, "cat", Options{CaseSensitive: true})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2", matches)
	}
	if matches[0].Line != 1 || matches[1].Line != 3 {
		t.Errorf("lines = %d, %d, want 1, 3", matches[0].Line, matches[1].Line)
	}
	if matches[0].Text != "cat" {
		t.Errorf("Text = %q, want %q", matches[0].Text, "cat")
	}
}

func TestRegex_CaseInsensitiveByDefault(t *testing.T) {
	matches, err := Regex("The CAT sat", "cat", Options{})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want 1", matches)
	}
	if matches[0].Text != "CAT" {
		t.Errorf("Text = %q, want %q", matches[0].Text, "CAT")
	}
}

func TestRegex_CaseSensitiveExcludesMismatch(t *testing.T) {
	matches, err := Regex("The CAT sat", "cat", Options{CaseSensitive: true})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want none", matches)
	}
}

func TestRegex_RejectsReDoSShape(t *testing.T) {
	_, err := Regex("aaaa", "(a+)+", Options{})
	if err == nil {
		t.Fatal("expected an error for a nested-quantifier pattern")
	}
	if !errors.Is(err, errors.CodeInvalidRegex) {
		t.Errorf("error = %v, want CodeInvalidRegex", err)
	}
}

func TestRegex_RejectsInvalidSyntax(t *testing.T) {
	_, err := Regex("text", "(unclosed", Options{})
	if err == nil {
		t.Fatal("expected an error for invalid regex syntax")
	}
	if !errors.Is(err, errors.CodeInvalidRegex) {
		t.Errorf("error = %v, want CodeInvalidRegex", err)
	}
}

func TestRegex_ZeroLengthMatchAdvancesPosition(t *testing.T) {
	matches, err := Regex("abc", "x*", Options{CaseSensitive: true, MaxMatches: 10})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	// "x*" matches the empty string at every position; with advance-by-one
	// this must terminate and yield one match per position (4 for "abc").
	if len(matches) != 4 {
		t.Fatalf("matches = %+v, want 4 zero-length matches", matches)
	}
	for _, m := range matches {
		if m.Length != 0 {
			t.Errorf("match %+v has nonzero length", m)
		}
	}
}

func TestRegex_RespectsMaxMatches(t *testing.T) {
	text := strings.Repeat("a ", 50)
	matches, err := Regex(text, "a", Options{CaseSensitive: true, MaxMatches: 5})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if len(matches) != 5 {
		t.Fatalf("matches = %d, want 5", len(matches))
	}
}

func TestRegex_TimesOutOnExpiredBudget(t *testing.T) {
	_, err := Regex("aaaaaaaaaa", "a", Options{CaseSensitive: true, TimeoutMs: 1})
	// A budget this tight may or may not trip depending on scheduler
	// timing for such a small input; assert only that if it does trip, the
	// error is the documented timeout code.
	if err != nil && !errors.Is(err, errors.CodeRegexTimeout) {
		t.Errorf("error = %v, want CodeRegexTimeout or nil", err)
	}
}

func TestRegex_CaptureGroups(t *testing.T) {
	matches, err := Regex("name=alice", `name=(\w+)`, Options{CaseSensitive: true})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if len(matches) != 1 || len(matches[0].Groups) != 1 || matches[0].Groups[0] != "alice" {
		t.Fatalf("matches = %+v, want one group %q", matches, "alice")
	}
}

func TestRegex_CompactOmitsContext(t *testing.T) {
	text := "prefix content cat suffix content"
	compact, err := Regex(text, "cat", Options{CaseSensitive: true, Compact: true})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if compact[0].Context != "" {
		t.Errorf("Context = %q, want empty in compact mode", compact[0].Context)
	}

	full, err := Regex(text, "cat", Options{CaseSensitive: true, ContextChars: 5})
	if err != nil {
		t.Fatalf("Regex() error: %v", err)
	}
	if full[0].Context == "" {
		t.Error("Context = empty, want a surrounding window in non-compact mode")
	}
}

func TestSurroundingContext_ClampsToTextBounds(t *testing.T) {
	got := surroundingContext("cat", 0, 3, 100)
	if got != "cat" {
		t.Errorf("surroundingContext() = %q, want %q", got, "cat")
	}
}
