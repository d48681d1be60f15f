package metrics

// Well-known counter, gauge, and histogram names. Handlers are free to
// report ad hoc names too; these are the ones the metrics snapshot tool
// names explicitly.
const (
	CounterToolCallsTotal    = "tool_calls_total"
	CounterToolCallsFailed   = "tool_calls_failed"
	CounterContextsLoaded    = "contexts_loaded"
	CounterContextsAppended  = "contexts_appended"
	CounterContextsUnloaded  = "contexts_unloaded"
	CounterCodeExecutions    = "code_executions"
	CounterCodeExecErrors    = "code_execution_errors"
	CounterSearchesTotal     = "searches_total"
	CounterCacheHits         = "cache_hits"
	CounterCacheMisses       = "cache_misses"
	CounterIndexBuilds       = "index_builds"
	CounterSessionsCreated   = "sessions_created"
	CounterSessionsDestroyed = "sessions_destroyed"
	CounterSessionsEvicted   = "sessions_evicted"

	GaugeActiveSessions   = "active_sessions"
	GaugeTotalMemoryBytes = "total_memory_bytes"
	GaugeCacheSize        = "cache_size"
	GaugeIndexSize        = "index_size"

	HistogramToolDurationMs           = "tool_duration_ms"
	HistogramSearchDurationMs         = "search_duration_ms"
	HistogramDecomposeDurationMs      = "decompose_duration_ms"
	HistogramCodeExecutionDurationMs  = "code_execution_duration_ms"
	HistogramLoadContextDurationMs    = "load_context_duration_ms"
	HistogramAppendContextDurationMs  = "append_context_duration_ms"
)
