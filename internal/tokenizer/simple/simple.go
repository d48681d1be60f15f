// Package simple provides a dependency-free tokenizer.Provider: a Unicode
// word/punctuation/whitespace-run approximation good enough for offset
// bookkeeping and rough chunk sizing when no external tokenizer is wired.
package simple

import (
	"unicode"

	"github.com/rlm-server/rlm/internal/tokenizer"
)

// Provider is the default tokenizer.Provider. It has no state and is safe
// for concurrent use.
type Provider struct{}

// New returns a ready-to-use Provider.
func New() *Provider { return &Provider{} }

// Name implements tokenizer.Provider.
func (*Provider) Name() string { return "simple" }

// Release implements tokenizer.Provider. Simple holds no resources.
func (*Provider) Release() {}

// Encode splits text into maximal runs of the same Unicode class (letter,
// digit, whitespace, or other), each run one token, byte offsets implicit
// in generation order. Every byte of text is covered by exactly one token,
// so Encode/decode-by-concatenation round-trips exactly.
func (*Provider) Encode(text string) ([]tokenizer.Token, error) {
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	var tokens []tokenizer.Token
	start := 0
	id := 0
	classOf := func(r rune) int {
		switch {
		case unicode.IsSpace(r):
			return 0
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return 1
		default:
			return 2
		}
	}

	curClass := classOf(runes[0])
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && classOf(runes[i]) == curClass {
			continue
		}
		tokens = append(tokens, tokenizer.Token{ID: id, Text: string(runes[start:i])})
		id++
		if i < len(runes) {
			start = i
			curClass = classOf(runes[i])
		}
	}
	return tokens, nil
}

var _ tokenizer.Provider = (*Provider)(nil)
