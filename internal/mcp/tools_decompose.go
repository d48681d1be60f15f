package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var decomposeContextToolDef = mcp.NewTool("rlm_decompose_context",
	mcp.WithDescription("Split a context into chunks using one of the seven decomposition strategies."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to split.")),
	mcp.WithString("strategy", mcp.Required(),
		mcp.Enum("fixed_size", "by_lines", "by_paragraphs", "by_sections", "by_sentences", "by_regex", "by_tokens"),
		mcp.Description("Decomposition strategy to apply.")),
	mcp.WithObject("options", mcp.Description("Strategy-specific options, e.g. {chunkSize, overlap} for fixed_size.")),
)

// DecomposeContextRequest is the argument shape for rlm_decompose_context.
type DecomposeContextRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	ContextID string         `json:"context_id"`
	Strategy  string         `json:"strategy"`
	Options   map[string]any `json:"options,omitempty"`
}

func (h *Handlers) HandleDecomposeContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DecomposeContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	stop := h.metrics.Timer(metrics.HistogramDecomposeDurationMs)
	defer stop()

	c, hash, err := h.requireContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	chunks, err := h.decomposer.Decompose(input.SessionID, input.ContextID, input.Strategy, input.Options, c.Content, hash)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	rec, err := h.registry.StoreDecomposition(input.SessionID, input.ContextID, input.Strategy, input.Options, len(chunks))
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"decompose_id": rec.ID,
		"chunk_count":  len(chunks),
	})
}

var getChunksToolDef = mcp.NewTool("rlm_get_chunks",
	mcp.WithDescription("Fetch chunk content by index, resolving the decomposition via decompose_id or the last decomposition for a context."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Description("Context to resolve the last decomposition for, when decompose_id is omitted.")),
	mcp.WithString("decompose_id", mcp.Description("A decompose_id returned by rlm_decompose_context, or \"main\" for the session's most recent.")),
	mcp.WithArray("indices", mcp.Description("Chunk indices to fetch; omit to fetch every chunk."),
		mcp.Items(map[string]any{"type": "number"})),
)

// GetChunksRequest is the argument shape for rlm_get_chunks.
type GetChunksRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	ContextID   string `json:"context_id,omitempty"`
	DecomposeID string `json:"decompose_id,omitempty"`
	Indices     []int  `json:"indices,omitempty"`
}

func (h *Handlers) HandleGetChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetChunksRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)

	_, chunks, _, err := h.resolveDecomposition(input.SessionID, input.ContextID, input.DecomposeID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	if len(input.Indices) == 0 {
		return successResult(map[string]any{"chunks": chunks})
	}

	out := make([]decompose.Chunk, 0, len(input.Indices))
	for _, idx := range input.Indices {
		if idx < 0 || idx >= len(chunks) {
			return errorResult(errors.NewOutOfRange("indices", idx)), nil
		}
		out = append(out, chunks[idx])
	}
	return successResult(map[string]any{"chunks": out})
}

var suggestStrategyToolDef = mcp.NewTool("rlm_suggest_strategy",
	mcp.WithDescription("Recommend a decomposition strategy from the shape of a context's content, without decomposing it."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to inspect.")),
)

// SuggestStrategyRequest is the argument shape for rlm_suggest_strategy.
type SuggestStrategyRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ContextID string `json:"context_id"`
}

func (h *Handlers) HandleSuggestStrategy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestStrategyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	return successResult(decompose.SuggestStrategy(c.Content))
}
