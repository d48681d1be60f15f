package decompose

import "testing"

func TestSuggestStrategy_HeadersFavorBySections(t *testing.T) {
	text := "# One\ntext\n## Two\nmore text"
	got := SuggestStrategy(text)
	if got.Strategy != "by_sections" {
		t.Errorf("Strategy = %q, want by_sections", got.Strategy)
	}
}

func TestSuggestStrategy_LongTextFavorsFixedSize(t *testing.T) {
	text := make([]byte, LongTextThreshold+1)
	for i := range text {
		text[i] = 'a'
	}
	got := SuggestStrategy(string(text))
	if got.Strategy != "fixed_size" {
		t.Errorf("Strategy = %q, want fixed_size", got.Strategy)
	}
}

func TestSuggestStrategy_ManyParagraphsFavorsByParagraphs(t *testing.T) {
	text := ""
	for i := 0; i < ParagraphCountThreshold+2; i++ {
		text += "paragraph text here\n\n"
	}
	got := SuggestStrategy(text)
	if got.Strategy != "by_paragraphs" {
		t.Errorf("Strategy = %q, want by_paragraphs", got.Strategy)
	}
}

func TestSuggestStrategy_ShortTextIsLowConfidenceParagraphs(t *testing.T) {
	got := SuggestStrategy("short text")
	if got.Strategy != "by_paragraphs" {
		t.Errorf("Strategy = %q, want by_paragraphs", got.Strategy)
	}
	if got.Confidence >= 0.5 {
		t.Errorf("Confidence = %v, want a weak recommendation", got.Confidence)
	}
}

func TestSuggestStrategy_DefaultFallsBackToSentences(t *testing.T) {
	text := ""
	for i := 0; i < 20; i++ {
		text += "This is one plain sentence without paragraph breaks. "
	}
	got := SuggestStrategy(text)
	if got.Strategy != "by_sentences" {
		t.Errorf("Strategy = %q, want by_sentences", got.Strategy)
	}
}
