package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var setVariableToolDef = mcp.NewTool("rlm_set_variable",
	mcp.WithDescription("Set a session-scoped variable, visible to rlm_execute_code as a top-level name."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Variable name.")),
	mcp.WithString("value", mcp.Description("Placeholder; any JSON value is accepted at runtime.")),
)

// SetVariableRequest is the argument shape for rlm_set_variable. Value is
// `any` so any JSON type — string, number, bool, object, array, null — is
// accepted, not just the string the tool schema above hints at (mcp-go's
// schema builder has no generic "any JSON value" primitive).
type SetVariableRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Value     any    `json:"value"`
}

func (h *Handlers) HandleSetVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetVariableRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	if err := h.registry.SetVariable(input.SessionID, input.Name, input.Value); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"name": input.Name, "set": true})
}

var getVariableToolDef = mcp.NewTool("rlm_get_variable",
	mcp.WithDescription("Read a session-scoped variable."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Variable name.")),
)

// GetVariableRequest is the argument shape for rlm_get_variable.
type GetVariableRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
}

func (h *Handlers) HandleGetVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetVariableRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	value, ok, err := h.registry.GetVariable(input.SessionID, input.Name)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"name": input.Name, "value": value, "found": ok})
}

var setAnswerToolDef = mcp.NewTool("rlm_set_answer",
	mcp.WithDescription("Replace the session's distinguished answer content and readiness flag."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("content", mcp.Required(), mcp.Description("The answer's full content.")),
	mcp.WithBoolean("ready", mcp.Description("Whether the answer is considered final.")),
)

// SetAnswerRequest is the argument shape for rlm_set_answer.
type SetAnswerRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
	Ready     bool   `json:"ready,omitempty"`
}

func (h *Handlers) HandleSetAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetAnswerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	if err := h.registry.SetAnswer(input.SessionID, input.Content, input.Ready); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"set": true})
}

var appendAnswerToolDef = mcp.NewTool("rlm_append_answer",
	mcp.WithDescription("Append text to the session's accumulated answer content."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Text to append.")),
)

// AppendAnswerRequest is the argument shape for rlm_append_answer.
type AppendAnswerRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

func (h *Handlers) HandleAppendAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendAnswerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	if err := h.registry.AppendAnswer(input.SessionID, input.Text); err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"appended": true})
}

var getAnswerToolDef = mcp.NewTool("rlm_get_answer",
	mcp.WithDescription("Read the session's distinguished answer content and readiness flag."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
)

// GetAnswerRequest is the argument shape for rlm_get_answer.
type GetAnswerRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (h *Handlers) HandleGetAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetAnswerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	answer, err := h.registry.GetAnswer(input.SessionID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(answer)
}
