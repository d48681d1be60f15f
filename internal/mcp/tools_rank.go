package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var rankChunksToolDef = mcp.NewTool("rlm_rank_chunks",
	mcp.WithDescription("BM25-rank a context's chunks against a query, resolving the decomposition via decompose_id or the last decomposition for a context."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Description("Context to resolve the last decomposition for, when decompose_id is omitted.")),
	mcp.WithString("decompose_id", mcp.Description("A decompose_id returned by rlm_decompose_context, or \"main\" for the session's most recent.")),
	mcp.WithString("query", mcp.Required(), mcp.Description("Query text to score chunks against.")),
	mcp.WithNumber("top_k", mcp.Description("Cap on the number of ranked chunks returned.")),
	mcp.WithNumber("min_score", mcp.Description("Discard results scoring below this threshold.")),
	mcp.WithString("tokenizer_mode", mcp.Enum("word", "cjk", "bigram", "auto"), mcp.Description("Tokenizer mode to score with; default \"auto\".")),
)

// RankChunksRequest is the argument shape for rlm_rank_chunks.
type RankChunksRequest struct {
	SessionID     string  `json:"session_id,omitempty"`
	ContextID     string  `json:"context_id,omitempty"`
	DecomposeID   string  `json:"decompose_id,omitempty"`
	Query         string  `json:"query"`
	TopK          int     `json:"top_k,omitempty"`
	MinScore      float64 `json:"min_score,omitempty"`
	TokenizerMode string  `json:"tokenizer_mode,omitempty"`
}

func (h *Handlers) HandleRankChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RankChunksRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)

	rec, chunks, hash, err := h.resolveDecomposition(input.SessionID, input.ContextID, input.DecomposeID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	tokenizerMode := input.TokenizerMode
	if tokenizerMode == "" {
		tokenizerMode = "auto"
	}

	entry := h.ranker.Index(input.SessionID, rec.ContextID, rec.Strategy, rec.Options, chunks, hash, tokenizerMode)
	h.metrics.Inc(metrics.CounterIndexBuilds)

	results := h.ranker.Rank(input.SessionID, rec.ContextID, rec.Strategy, rec.Options, entry, input.Query, input.TopK, input.MinScore, tokenizerMode)

	ranked := make([]map[string]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{"docId": r.DocID, "score": r.Score}
		if r.DocID >= 0 && r.DocID < len(chunks) {
			item["chunk"] = chunks[r.DocID]
		}
		ranked = append(ranked, item)
	}

	return successResult(map[string]any{"decompose_id": rec.ID, "results": ranked})
}
