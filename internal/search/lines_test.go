package search

import "testing"

func TestLineIndex_FirstLine(t *testing.T) {
	l := NewLineIndex("hello world")
	if got := l.LineAt(0); got != 1 {
		t.Errorf("LineAt(0) = %d, want 1", got)
	}
	if got := l.LineAt(6); got != 1 {
		t.Errorf("LineAt(6) = %d, want 1", got)
	}
}

func TestLineIndex_MultipleLines(t *testing.T) {
	text := "one\ntwo\nthree"
	l := NewLineIndex(text)

	cases := []struct {
		offset int
		want   int
	}{
		{0, 1},  // 'o' of "one"
		{3, 1},  // '\n' terminating line 1
		{4, 2},  // 't' of "two"
		{7, 2},  // '\n' terminating line 2
		{8, 3},  // 't' of "three"
		{12, 3}, // last char of "three"
	}
	for _, c := range cases {
		if got := l.LineAt(c.offset); got != c.want {
			t.Errorf("LineAt(%d) = %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestLineIndex_EmptyText(t *testing.T) {
	l := NewLineIndex("")
	if got := l.LineAt(0); got != 1 {
		t.Errorf("LineAt(0) on empty text = %d, want 1", got)
	}
}
