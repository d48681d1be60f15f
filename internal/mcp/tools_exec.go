package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var executeCodeToolDef = mcp.NewTool("rlm_execute_code",
	mcp.WithDescription("Run an expression against a session's variables and answer state inside a sandboxed interpreter."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("code", mcp.Required(), mcp.Description("Code to evaluate.")),
)

// ExecuteCodeRequest is the argument shape for rlm_execute_code.
type ExecuteCodeRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code"`
}

// HandleExecuteCode always answers with successResult: a script failure is
// materialized in the returned record's Error field, never surfaced as an
// RPC error, so a caller's mistake never masks whether the call itself
// reached the sandbox.
func (h *Handlers) HandleExecuteCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExecuteCodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	stop := h.metrics.Timer(metrics.HistogramCodeExecutionDurationMs)
	defer stop()

	sb := h.sandboxFor(input.SessionID)
	record := sb.Run(ctx, newULID(), input.Code)

	h.metrics.Inc(metrics.CounterCodeExecutions)
	if record.Error != "" {
		h.metrics.Inc(metrics.CounterCodeExecErrors)
	}

	return successResult(record)
}
