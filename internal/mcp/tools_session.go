package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var createSessionToolDef = mcp.NewTool("rlm_create_session",
	mcp.WithDescription("Create a new, empty session and return its id."),
)

// CreateSessionRequest is the argument shape for rlm_create_session.
type CreateSessionRequest struct{}

func (h *Handlers) HandleCreateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.metrics.Inc(metrics.CounterToolCallsTotal)
	id, err := h.registry.CreateSession()
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	h.metrics.Inc(metrics.CounterSessionsCreated)
	return successResult(map[string]any{"session_id": id})
}

var getSessionInfoToolDef = mcp.NewTool("rlm_get_session_info",
	mcp.WithDescription("Return a session's size and activity statistics."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
)

// GetSessionInfoRequest is the argument shape for rlm_get_session_info.
type GetSessionInfoRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handlers) HandleGetSessionInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetSessionInfoRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	stats, err := h.registry.Stats(input.SessionID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(stats)
}

var clearSessionToolDef = mcp.NewTool("rlm_clear_session",
	mcp.WithDescription("Remove every context, variable, and decomposition pointer from a session, keeping the session itself alive."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
)

// ClearSessionRequest is the argument shape for rlm_clear_session.
type ClearSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handlers) HandleClearSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearSessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	if err := h.registry.Clear(input.SessionID); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"session_id": input.SessionID, "cleared": true})
}
