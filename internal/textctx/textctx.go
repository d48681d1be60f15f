// Package textctx implements the Context Store: per-session named text
// entities with derived metadata, append/prepend semantics, and
// structure detection.
package textctx

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Structure is the tagged enum detectStructure derives at load time.
type Structure string

const (
	StructurePlainText Structure = "plain_text"
	StructureJSON       Structure = "json"
	StructureCSV        Structure = "csv"
	StructureCode       Structure = "code"
	StructureMarkdown   Structure = "markdown"
	StructureXML        Structure = "xml"
	StructureLog        Structure = "log"
	StructureMixed      Structure = "mixed"
)

// Metadata is the derived block stored alongside a Context's content.
type Metadata struct {
	Length     int       `json:"length"`
	LineCount  int       `json:"lineCount"`
	WordCount  int       `json:"wordCount"`
	Structure  Structure `json:"structure"`
}

// Context is a session-local named text entity.
type Context struct {
	ID        string
	Content   string
	Metadata  Metadata
	CreatedAt time.Time
}

// New builds a fresh Context, deriving metadata from content. The caller
// is responsible for validating id and enforcing size caps before
// calling New — this constructor never fails.
func New(id, content string, now time.Time) *Context {
	return &Context{
		ID:        id,
		Content:   content,
		Metadata:  deriveMetadata(content),
		CreatedAt: now,
	}
}

// Mode selects append or prepend for Mutate.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModePrepend Mode = "prepend"
)

// Mutate returns a new Context with text added per mode, preserving the
// original creation timestamp. It never mutates c; the
// caller applies the result only after admission checks pass, keeping
// atomicity A1 at the call site.
func (c *Context) Mutate(mode Mode, addition string) *Context {
	var content string
	switch mode {
	case ModePrepend:
		content = addition + c.Content
	default:
		content = c.Content + addition
	}
	return &Context{
		ID:        c.ID,
		Content:   content,
		Metadata:  deriveMetadata(content),
		CreatedAt: c.CreatedAt,
	}
}

func deriveMetadata(content string) Metadata {
	return Metadata{
		Length:    len(content),
		LineCount: countLines(content),
		WordCount: countWords(content),
		Structure: detectStructure(content),
	}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n") + 1
	if strings.HasSuffix(s, "\n") {
		n--
	}
	return n
}

func countWords(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	}))
}

// detectStructure applies ordered heuristics: JSON parse success; XML
// start; CSV comma regularity over the first 10 lines; Markdown
// headers/list markers; code keyword at line start; ISO-like timestamp
// at line start. The first rule that fires wins.
func detectStructure(content string) Structure {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return StructurePlainText
	}

	if looksLikeJSON(trimmed) {
		return StructureJSON
	}
	if looksLikeXML(trimmed) {
		return StructureXML
	}
	if looksLikeCSV(content) {
		return StructureCSV
	}
	if looksLikeMarkdown(content) {
		return StructureMarkdown
	}
	if looksLikeCode(content) {
		return StructureCode
	}
	if looksLikeLog(content) {
		return StructureLog
	}
	if hasFencedCodeBlock(content) {
		return StructureMixed
	}
	return StructurePlainText
}

func looksLikeJSON(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	first := trimmed[0]
	if first != '{' && first != '[' {
		return false
	}
	var v any
	return json.Unmarshal([]byte(trimmed), &v) == nil
}

func looksLikeXML(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	return xmlTagPattern.MatchString(trimmed)
}

var xmlTagPattern = regexp.MustCompile(`^<\?xml|^<[A-Za-z][A-Za-z0-9:_-]*[\s>/]`)

// looksLikeCSV checks the first 10 non-empty lines for a consistent,
// non-trivial comma count.
func looksLikeCSV(content string) bool {
	lines := firstNLines(content, 10)
	if len(lines) < 2 {
		return false
	}

	var counts []int
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		counts = append(counts, strings.Count(line, ","))
	}
	if len(counts) < 2 {
		return false
	}
	first := counts[0]
	if first == 0 {
		return false
	}
	for _, c := range counts {
		if c != first {
			return false
		}
	}
	return true
}

var (
	markdownHeaderPattern = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	markdownListPattern   = regexp.MustCompile(`(?m)^\s*([-*+]\s+|\d+\.\s+)\S`)
)

// looksLikeMarkdown accepts on a header regex match alone. A list-marker
// regex match is then confirmed by walking a goldmark AST for heading or
// list nodes; content that neither regex matches is not parsed.
func looksLikeMarkdown(content string) bool {
	if markdownHeaderPattern.MatchString(content) {
		return true
	}
	if !markdownListPattern.MatchString(content) {
		return false
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader([]byte(content)))

	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindList:
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

var codeKeywordPattern = regexp.MustCompile(`(?m)^\s*(func|def|class|import|package|public|private|const|let|var|#include|fn|impl)\b`)

func looksLikeCode(content string) bool {
	lines := firstNLines(content, 40)
	hits := 0
	for _, l := range lines {
		if codeKeywordPattern.MatchString(l) {
			hits++
		}
	}
	return hits >= 2
}

var logTimestampPattern = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`)

func looksLikeLog(content string) bool {
	lines := firstNLines(content, 10)
	hits := 0
	for _, l := range lines {
		if logTimestampPattern.MatchString(l) {
			hits++
		}
	}
	return hits >= 2
}

var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

func hasFencedCodeBlock(content string) bool {
	return len(fencePattern.FindAllString(content, 2)) >= 2
}

func firstNLines(content string, n int) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content) && len(lines) < n; i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	if len(lines) < n && start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
