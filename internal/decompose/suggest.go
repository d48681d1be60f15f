package decompose

import (
	"regexp"
	"strings"
)

// Thresholds behind rlm_suggest_strategy. Named and exported as tunable,
// observable constants rather than magic numbers buried in the function
// body.
const (
	// SectionHeaderThreshold: at least this many markdown headers signals
	// a document meant to be split by section.
	SectionHeaderThreshold = 2
	// ParagraphCountThreshold: more paragraphs than this favors
	// paragraph-level splitting over a single fixed-size pass.
	ParagraphCountThreshold = 10
	// LongTextThreshold (bytes): beyond this, fixed_size is recommended
	// unless the header check (SectionHeaderThreshold) already chose
	// by_sections; paragraph structure is not consulted.
	LongTextThreshold = 50_000
	// ShortTextThreshold (bytes): below this, splitting at all is
	// unlikely to help; by_paragraphs is still suggested but as a weak
	// recommendation (see Suggestion.Confidence).
	ShortTextThreshold = 500
)

var suggestHeaderPattern = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)

// Suggestion is rlm_suggest_strategy's response: a recommended strategy,
// a starter option bag, and the reasoning that produced it.
type Suggestion struct {
	Strategy   string         `json:"strategy"`
	Options    map[string]any `json:"options"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence"`
}

// SuggestStrategy recommends a decomposition strategy from the shape of
// text, without decomposing it.
func SuggestStrategy(text string) Suggestion {
	n := len(text)

	if headers := suggestHeaderPattern.FindAllString(text, -1); len(headers) >= SectionHeaderThreshold {
		return Suggestion{
			Strategy:   "by_sections",
			Options:    map[string]any{},
			Reason:     "text contains multiple markdown headers",
			Confidence: 0.9,
		}
	}

	if n > LongTextThreshold {
		return Suggestion{
			Strategy:   "fixed_size",
			Options:    map[string]any{"chunkSize": 2000, "overlap": 200},
			Reason:     "text exceeds the long-text threshold; fixed-size chunking bounds worst-case chunk count",
			Confidence: 0.7,
		}
	}

	paragraphs := strings.Count(strings.TrimSpace(text), "\n\n")
	if paragraphs+1 > ParagraphCountThreshold {
		return Suggestion{
			Strategy:   "by_paragraphs",
			Options:    map[string]any{},
			Reason:     "text has many paragraph breaks",
			Confidence: 0.75,
		}
	}

	if n < ShortTextThreshold {
		return Suggestion{
			Strategy:   "by_paragraphs",
			Options:    map[string]any{},
			Reason:     "text is short; paragraph splitting is a safe default",
			Confidence: 0.4,
		}
	}

	return Suggestion{
		Strategy:   "by_sentences",
		Options:    map[string]any{},
		Reason:     "no strong structural signal found; sentence splitting is the general-purpose default",
		Confidence: 0.5,
	}
}
