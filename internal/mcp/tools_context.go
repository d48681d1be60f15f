package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
	"github.com/rlm-server/rlm/internal/textctx"
)

var loadContextToolDef = mcp.NewTool("rlm_load_context",
	mcp.WithDescription("Create or replace a named context in a session."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name for the context within the session.")),
	mcp.WithString("text", mcp.Required(), mcp.Description("The context's full text content.")),
)

// LoadContextRequest is the argument shape for rlm_load_context.
type LoadContextRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ContextID string `json:"context_id"`
	Text      string `json:"text"`
}

func (h *Handlers) HandleLoadContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LoadContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}
	if _, ok := req.GetArguments()["text"]; !ok {
		return errorResult(errors.NewInvalidInput("text", "text is required")), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	stop := h.metrics.Timer(metrics.HistogramLoadContextDurationMs)
	defer stop()

	if err := h.registry.Load(input.SessionID, input.ContextID, input.Text); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	h.metrics.Inc(metrics.CounterContextsLoaded)

	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"context_id": c.ID,
		"metadata":   c.Metadata,
	})
}

var appendContextToolDef = mcp.NewTool("rlm_append_context",
	mcp.WithDescription("Append or prepend content to an existing context."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to mutate.")),
	mcp.WithString("text", mcp.Required(), mcp.Description("The text to add.")),
	mcp.WithString("mode", mcp.Description("\"append\" (default) or \"prepend\".")),
	mcp.WithBoolean("create_if_missing", mcp.Description("Create the context if it does not already exist.")),
)

// AppendContextRequest is the argument shape for rlm_append_context.
type AppendContextRequest struct {
	SessionID       string `json:"session_id,omitempty"`
	ContextID       string `json:"context_id"`
	Text            string `json:"text"`
	Mode            string `json:"mode,omitempty"`
	CreateIfMissing bool   `json:"create_if_missing,omitempty"`
}

func (h *Handlers) HandleAppendContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	mode := textctx.ModeAppend
	if input.Mode == "prepend" {
		mode = textctx.ModePrepend
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	stop := h.metrics.Timer(metrics.HistogramAppendContextDurationMs)
	defer stop()

	if err := h.registry.Append(input.SessionID, input.ContextID, input.Text, mode, input.CreateIfMissing); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	h.metrics.Inc(metrics.CounterContextsAppended)

	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"context_id": c.ID,
		"metadata":   c.Metadata,
	})
}

var unloadContextToolDef = mcp.NewTool("rlm_unload_context",
	mcp.WithDescription("Drop a context from live memory, snapshotting it first if storage is enabled."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to unload.")),
)

// UnloadContextRequest is the argument shape for rlm_unload_context.
type UnloadContextRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ContextID string `json:"context_id"`
}

func (h *Handlers) HandleUnloadContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UnloadContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	if err := h.registry.Unload(input.SessionID, input.ContextID); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	h.metrics.Inc(metrics.CounterContextsUnloaded)
	return successResult(map[string]any{"context_id": input.ContextID, "unloaded": true})
}

var getContextInfoToolDef = mcp.NewTool("rlm_get_context_info",
	mcp.WithDescription("Return a context's derived metadata and an optional text preview."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to inspect.")),
	mcp.WithNumber("preview_chars", mcp.Description("If set, include the first N characters of content as a preview.")),
)

// GetContextInfoRequest is the argument shape for rlm_get_context_info.
type GetContextInfoRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	ContextID    string `json:"context_id"`
	PreviewChars int    `json:"preview_chars,omitempty"`
}

func (h *Handlers) HandleGetContextInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetContextInfoRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	result := map[string]any{
		"context_id": c.ID,
		"metadata":   c.Metadata,
	}
	if input.PreviewChars > 0 {
		result["preview"] = truncateRunes(c.Content, input.PreviewChars)
	}
	return successResult(result)
}

var readContextToolDef = mcp.NewTool("rlm_read_context",
	mcp.WithDescription("Read a range of a context's content by character offsets or by line numbers."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to read.")),
	mcp.WithNumber("start_offset", mcp.Description("Inclusive start character offset.")),
	mcp.WithNumber("end_offset", mcp.Description("Exclusive end character offset.")),
	mcp.WithNumber("start_line", mcp.Description("1-based inclusive start line.")),
	mcp.WithNumber("end_line", mcp.Description("1-based inclusive end line.")),
)

// ReadContextRequest is the argument shape for rlm_read_context. Either
// the offset pair or the line pair may be given; offsets win if both are
// present.
type ReadContextRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	ContextID   string `json:"context_id"`
	StartOffset *int   `json:"start_offset,omitempty"`
	EndOffset   *int   `json:"end_offset,omitempty"`
	StartLine   *int   `json:"start_line,omitempty"`
	EndLine     *int   `json:"end_line,omitempty"`
}

func (h *Handlers) HandleReadContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReadContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}

	var slice string
	switch {
	case input.StartOffset != nil || input.EndOffset != nil:
		start, end := clampRange(orDefault(input.StartOffset, 0), orDefault(input.EndOffset, len(c.Content)), len(c.Content))
		slice = c.Content[start:end]
	case input.StartLine != nil || input.EndLine != nil:
		slice = linesRange(c.Content, orDefault(input.StartLine, 1), orDefault(input.EndLine, -1))
	default:
		slice = c.Content
	}

	return successResult(map[string]any{
		"context_id": c.ID,
		"content":    slice,
	})
}

func orDefault(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func clampRange(start, end, length int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > length {
		start = length
	}
	if end < start {
		end = start
	}
	return start, end
}

// linesRange returns the inclusive 1-based [startLine, endLine] span of
// content, joined back with "\n". endLine < 0 means "to the last line".
func linesRange(content string, startLine, endLine int) string {
	lines := splitLinesKeepEmpty(content)
	if startLine < 1 {
		startLine = 1
	}
	if endLine < 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return ""
	}
	if endLine < startLine {
		return ""
	}
	selected := lines[startLine-1 : endLine]
	out := ""
	for i, l := range selected {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitLinesKeepEmpty(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
