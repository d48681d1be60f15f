package mcp

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/rlm-server/rlm/internal/errors"
)

// errorResult builds the error envelope:
// {error:true, code, message, details?, timestamp, traceId?}. Every
// failure that reaches the RPC boundary is typed as *errors.RLMError by
// the time it gets here; anything else is folded into INTERNAL without
// leaking its message, so no internal error text ever escapes to a
// caller.
func errorResult(err error) *mcp.CallToolResult {
	envelope := map[string]any{
		"error":     true,
		"timestamp": time.Now().UnixMilli(),
		"traceId":   newTraceID(),
	}

	if rlmErr, ok := err.(*errors.RLMError); ok {
		envelope["code"] = string(rlmErr.Code)
		envelope["message"] = rlmErr.Message
		if rlmErr.Code != errors.CodeInternal && len(rlmErr.Details) > 0 {
			envelope["details"] = rlmErr.Details
		}
	} else {
		envelope["code"] = string(errors.CodeInternal)
		envelope["message"] = "an internal error occurred"
	}

	content, _ := json.Marshal(envelope)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult wraps data as the tool's JSON result payload.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

func newTraceID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
