package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
	"github.com/rlm-server/rlm/internal/search"
)

var searchContextToolDef = mcp.NewTool("rlm_search_context",
	mcp.WithDescription("Search a context's content with a regular expression, guarded against catastrophic backtracking."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to search.")),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression to match.")),
	mcp.WithBoolean("case_sensitive", mcp.Description("Match case-sensitively; default false.")),
	mcp.WithBoolean("compact", mcp.Description("Omit the surrounding-context window from each match.")),
	mcp.WithNumber("context_chars", mcp.Description("Characters of surrounding context to include per match.")),
	mcp.WithNumber("max_matches", mcp.Description("Cap on the number of matches returned.")),
	mcp.WithNumber("timeout_ms", mcp.Description("Wall-clock budget for the search.")),
)

// SearchContextRequest is the argument shape for rlm_search_context.
type SearchContextRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	ContextID     string `json:"context_id"`
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	Compact       bool   `json:"compact,omitempty"`
	ContextChars  int    `json:"context_chars,omitempty"`
	MaxMatches    int    `json:"max_matches,omitempty"`
	TimeoutMs     int64  `json:"timeout_ms,omitempty"`
}

func (h *Handlers) HandleSearchContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	h.metrics.Inc(metrics.CounterSearchesTotal)
	stop := h.metrics.Timer(metrics.HistogramSearchDurationMs)
	defer stop()

	c, hash, err := h.requireContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	opts := search.Options{
		CaseSensitive: input.CaseSensitive,
		Compact:       input.Compact,
		ContextChars:  input.ContextChars,
		MaxMatches:    input.MaxMatches,
		TimeoutMs:     input.TimeoutMs,
	}
	matches, err := h.searcher.SearchRegex(input.SessionID, input.ContextID, input.Pattern, opts, c.Content, hash)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	return successResult(map[string]any{"matches": matches, "count": len(matches)})
}

var findAllToolDef = mcp.NewTool("rlm_find_all",
	mcp.WithDescription("Scan a context's content for every occurrence of a literal substring."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to search.")),
	mcp.WithString("needle", mcp.Required(), mcp.Description("Literal substring to find.")),
	mcp.WithBoolean("case_sensitive", mcp.Description("Match case-sensitively; default false.")),
	mcp.WithNumber("max_matches", mcp.Description("Cap on the number of matches returned.")),
)

// FindAllRequest is the argument shape for rlm_find_all.
type FindAllRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	ContextID     string `json:"context_id"`
	Needle        string `json:"needle"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	MaxMatches    int    `json:"max_matches,omitempty"`
}

func (h *Handlers) HandleFindAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FindAllRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	h.metrics.Inc(metrics.CounterSearchesTotal)
	stop := h.metrics.Timer(metrics.HistogramSearchDurationMs)
	defer stop()

	c, hash, err := h.requireContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	matches := h.searcher.FindAll(input.SessionID, input.ContextID, input.Needle, input.CaseSensitive, input.MaxMatches, c.Content, hash)
	return successResult(map[string]any{"matches": matches, "count": len(matches)})
}
