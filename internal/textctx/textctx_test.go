package textctx

import (
	"testing"
	"time"
)

func TestNew_DerivesMetadata(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New("main", "hello world\nsecond line", now)

	if c.Metadata.Length != len("hello world\nsecond line") {
		t.Errorf("Length = %d, want %d", c.Metadata.Length, len(c.Content))
	}
	if c.Metadata.LineCount != 2 {
		t.Errorf("LineCount = %d, want 2", c.Metadata.LineCount)
	}
	if c.Metadata.WordCount != 4 {
		t.Errorf("WordCount = %d, want 4", c.Metadata.WordCount)
	}
	if !c.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, now)
	}
}

func TestMutate_AppendPreservesCreatedAt(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New("main", "hello", now)

	mutated := c.Mutate(ModeAppend, " world")
	if mutated.Content != "hello world" {
		t.Errorf("Content = %q, want %q", mutated.Content, "hello world")
	}
	if !mutated.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt changed on append: %v, want %v", mutated.CreatedAt, now)
	}
	if c.Content != "hello" {
		t.Errorf("original Context mutated in place: %q", c.Content)
	}
}

func TestMutate_Prepend(t *testing.T) {
	c := New("main", "world", time.Unix(0, 0))
	mutated := c.Mutate(ModePrepend, "hello ")
	if mutated.Content != "hello world" {
		t.Errorf("Content = %q, want %q", mutated.Content, "hello world")
	}
}

func TestDetectStructure(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Structure
	}{
		{"empty", "", StructurePlainText},
		{"plain text", "just some words here without markers", StructurePlainText},
		{"json object", `{"a": 1, "b": [1,2,3]}`, StructureJSON},
		{"json array", `[1, 2, 3]`, StructureJSON},
		{"xml", "<?xml version=\"1.0\"?>\n<root><child/></root>", StructureXML},
		{"xml no prolog", "<root>\n  <child>text</child>\n</root>", StructureXML},
		{"csv", "a,b,c\n1,2,3\n4,5,6\n7,8,9\n", StructureCSV},
		{"markdown headers", "# Title\n\nSome text.\n\n## Section\n\nMore text.\n", StructureMarkdown},
		{"markdown list", "Intro line\n\n- item one\n- item two\n- item three\n", StructureMarkdown},
		{"go code", "package main\n\nfunc main() {\n\tvar x = 1\n\tprint(x)\n}\n", StructureCode},
		{"python code", "import os\n\ndef main():\n    class Foo:\n        pass\n", StructureCode},
		{"log lines", "2024-01-01T10:00:00 started\n2024-01-01T10:00:01 running\n2024-01-01T10:00:02 done\n", StructureLog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectStructure(tt.content)
			if got != tt.want {
				t.Errorf("detectStructure(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDetectStructure_MixedFencedProse(t *testing.T) {
	content := "Some prose about a snippet:\n\n```\nplain fenced text, not really code\n```\n\nMore prose after.\n"
	got := detectStructure(content)
	if got != StructureMixed {
		t.Errorf("detectStructure() = %q, want %q", got, StructureMixed)
	}
}

func TestCountWords(t *testing.T) {
	if n := countWords("  hello   world  "); n != 2 {
		t.Errorf("countWords() = %d, want 2", n)
	}
	if n := countWords(""); n != 0 {
		t.Errorf("countWords(\"\") = %d, want 0", n)
	}
}

func TestCountLines(t *testing.T) {
	cases := map[string]int{
		"":            0,
		"one":         1,
		"one\ntwo":    2,
		"one\ntwo\n":  2,
		"\n":          1,
	}
	for input, want := range cases {
		if got := countLines(input); got != want {
			t.Errorf("countLines(%q) = %d, want %d", input, got, want)
		}
	}
}
