package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/metrics"
)

var getStatisticsToolDef = mcp.NewTool("rlm_get_statistics",
	mcp.WithDescription("Return a context's structural statistics: length, line count, word count, and detected structure."),
	mcp.WithString("session_id", mcp.Description("Session id; defaults to the shared default session.")),
	mcp.WithString("context_id", mcp.Required(), mcp.Description("Name of the context to inspect.")),
)

// GetStatisticsRequest is the argument shape for rlm_get_statistics.
type GetStatisticsRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ContextID string `json:"context_id"`
}

func (h *Handlers) HandleGetStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetStatisticsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidInput("", err.Error())), nil
	}

	h.metrics.Inc(metrics.CounterToolCallsTotal)
	c, err := h.registry.GetContext(input.SessionID, input.ContextID)
	if err != nil {
		h.metrics.Inc(metrics.CounterToolCallsFailed)
		return errorResult(err), nil
	}
	return successResult(c.Metadata)
}

var getMetricsToolDef = mcp.NewTool("rlm_get_metrics",
	mcp.WithDescription("Snapshot of process-wide counters, gauges, and histograms."),
)

// GetMetricsRequest is the argument shape for rlm_get_metrics.
type GetMetricsRequest struct{}

func (h *Handlers) HandleGetMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.metrics.SetGauge(metrics.GaugeActiveSessions, int64(h.registry.ActiveSessionCount()))
	h.metrics.SetGauge(metrics.GaugeTotalMemoryBytes, h.registry.TotalMemoryBytes())
	return successResult(h.metrics.Snapshot())
}
