package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/metrics"
	"github.com/rlm-server/rlm/internal/rank"
	"github.com/rlm-server/rlm/internal/search"
	"github.com/rlm-server/rlm/internal/session"
	"github.com/rlm-server/rlm/internal/store"
	"github.com/rlm-server/rlm/internal/tokenizer"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps every rlm_* tool name to its definition and handler
// factory. Every tool shares this prefix, so unlike the capsule server this
// registry never groups tools by a type; disabling is by exact tool name
// only.
var toolRegistry = map[string]toolEntry{
	"rlm_load_context": {
		def:     loadContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoadContext },
	},
	"rlm_append_context": {
		def:     appendContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAppendContext },
	},
	"rlm_unload_context": {
		def:     unloadContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUnloadContext },
	},
	"rlm_get_context_info": {
		def:     getContextInfoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetContextInfo },
	},
	"rlm_read_context": {
		def:     readContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReadContext },
	},
	"rlm_decompose_context": {
		def:     decomposeContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDecomposeContext },
	},
	"rlm_get_chunks": {
		def:     getChunksToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetChunks },
	},
	"rlm_suggest_strategy": {
		def:     suggestStrategyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestStrategy },
	},
	"rlm_search_context": {
		def:     searchContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchContext },
	},
	"rlm_find_all": {
		def:     findAllToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFindAll },
	},
	"rlm_rank_chunks": {
		def:     rankChunksToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRankChunks },
	},
	"rlm_execute_code": {
		def:     executeCodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExecuteCode },
	},
	"rlm_set_variable": {
		def:     setVariableToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetVariable },
	},
	"rlm_get_variable": {
		def:     getVariableToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetVariable },
	},
	"rlm_set_answer": {
		def:     setAnswerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetAnswer },
	},
	"rlm_append_answer": {
		def:     appendAnswerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAppendAnswer },
	},
	"rlm_get_answer": {
		def:     getAnswerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetAnswer },
	},
	"rlm_create_session": {
		def:     createSessionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateSession },
	},
	"rlm_get_session_info": {
		def:     getSessionInfoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetSessionInfo },
	},
	"rlm_clear_session": {
		def:     clearSessionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearSession },
	},
	"rlm_get_statistics": {
		def:     getStatisticsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetStatistics },
	},
	"rlm_get_metrics": {
		def:     getMetricsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetMetrics },
	},
}

// AllToolNames returns every registered tool name.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns the subset of names that are not real tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Dependencies bundles the core components NewServer wires into a set of
// Handlers.
type Dependencies struct {
	Registry    *session.Registry
	Decomposer  *decompose.Decomposer
	Ranker      *rank.Ranker
	Searcher    *search.Searcher
	Tokenizers  *tokenizer.Registry
	Metrics     *metrics.Registry
	Persistence store.Persistence
}

// NewServer creates a new MCP server with every non-disabled rlm_* tool
// registered.
func NewServer(deps Dependencies, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rlm",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps.Registry, deps.Decomposer, deps.Ranker, deps.Searcher, deps.Tokenizers, deps.Metrics, deps.Persistence, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Dependencies, cfg *config.Config, version string) error {
	s := NewServer(deps, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature every tool handler satisfies.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
