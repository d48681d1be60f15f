// Package config loads and merges server configuration: quotas for the
// Session Registry, bounds for the three caches, and RPC tool toggles.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds server-wide tunables. Every field has a sane default via
// DefaultConfig; a config.json overlay only needs to name what it changes.
type Config struct {
	// Session quotas
	SessionMemoryCapBytes int64 `json:"session_memory_cap_bytes"`
	SessionMaxContexts    int   `json:"session_max_contexts"`
	SessionMaxVariables   int   `json:"session_max_variables"`
	SessionMaxVarBytes    int   `json:"session_max_variable_bytes"`
	SessionHistoryDepth   int   `json:"session_history_depth"`
	SessionTTLSeconds     int64 `json:"session_ttl_seconds"`
	MaxSessions           int   `json:"max_sessions"`
	ScavengeIntervalSecs  int64 `json:"scavenge_interval_seconds"`

	// Context limits
	ContextMaxBytes int64 `json:"context_max_bytes"`

	// Decomposer bounds
	MaxChunks            int `json:"max_chunks"`
	ChunkCacheMaxEntries int `json:"chunk_cache_max_entries"`
	ChunkCacheMaxBytes   int `json:"chunk_cache_max_bytes"`

	// Ranker/index bounds
	IndexCacheMaxEntries int `json:"index_cache_max_entries"`
	QueryCacheMaxEntries int `json:"query_cache_max_entries"`

	// Searcher bounds
	RegexTimeoutMs     int64 `json:"regex_timeout_ms"`
	RegexMaxMatches    int   `json:"regex_max_matches"`
	SearchContextChars int   `json:"search_context_chars"`

	// Expression engine bounds
	ExecTimeoutMs       int64 `json:"exec_timeout_ms"`
	ExecOutputMaxChars  int   `json:"exec_output_max_chars"`
	ExecHistoryDepth    int   `json:"exec_history_depth"`
	ExecRegexMaxMatches int   `json:"exec_regex_max_matches"`

	// Persistence
	StorageBaseDir      string `json:"storage_base_dir,omitempty"`
	StorageSnapshots    bool   `json:"storage_snapshots,omitempty"`
	StorageMaxSnapshots int    `json:"storage_max_snapshots,omitempty"`
	DBMaxOpenConns      int    `json:"db_max_open_conns,omitempty"`
	DBMaxIdleConns      int    `json:"db_max_idle_conns,omitempty"`

	// RPC tool catalog toggles (mirrors moss's disabled-tools posture)
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the built-in defaults used when no config.json
// overlay is present.
func DefaultConfig() *Config {
	return &Config{
		SessionMemoryCapBytes: 256 * 1024 * 1024,
		SessionMaxContexts:    200,
		SessionMaxVariables:   500,
		SessionMaxVarBytes:    1 * 1024 * 1024,
		SessionHistoryDepth:   100,
		SessionTTLSeconds:     3600,
		MaxSessions:           1000,
		ScavengeIntervalSecs:  60,

		ContextMaxBytes: 100 * 1024 * 1024,

		MaxChunks:            50000,
		ChunkCacheMaxEntries: 2000,
		ChunkCacheMaxBytes:   512 * 1024 * 1024,

		IndexCacheMaxEntries: 500,
		QueryCacheMaxEntries: 2000,

		RegexTimeoutMs:     1000,
		RegexMaxMatches:    10000,
		SearchContextChars: 80,

		ExecTimeoutMs:       30000,
		ExecOutputMaxChars:  50000,
		ExecHistoryDepth:    100,
		ExecRegexMaxMatches: 1000,

		StorageMaxSnapshots: 20,
	}
}

// Load loads configuration from baseDir/config.json, falling back to
// defaults for anything the file doesn't set. A missing file is not an
// error.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw reads configPath, returning a zero-valued Config (not
// defaults) when the file is absent.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay: overlay wins for any field it sets to
// a non-zero value, base wins otherwise; string slices are merged and
// deduplicated.
func Merge(base, overlay *Config) *Config {
	result := *base

	mergeInt64 := func(b, o int64) int64 {
		if o != 0 {
			return o
		}
		return b
	}
	mergeInt := func(b, o int) int {
		if o != 0 {
			return o
		}
		return b
	}
	mergeStr := func(b, o string) string {
		if o != "" {
			return o
		}
		return b
	}

	result.SessionMemoryCapBytes = mergeInt64(base.SessionMemoryCapBytes, overlay.SessionMemoryCapBytes)
	result.SessionMaxContexts = mergeInt(base.SessionMaxContexts, overlay.SessionMaxContexts)
	result.SessionMaxVariables = mergeInt(base.SessionMaxVariables, overlay.SessionMaxVariables)
	result.SessionMaxVarBytes = mergeInt(base.SessionMaxVarBytes, overlay.SessionMaxVarBytes)
	result.SessionHistoryDepth = mergeInt(base.SessionHistoryDepth, overlay.SessionHistoryDepth)
	result.SessionTTLSeconds = mergeInt64(base.SessionTTLSeconds, overlay.SessionTTLSeconds)
	result.MaxSessions = mergeInt(base.MaxSessions, overlay.MaxSessions)
	result.ScavengeIntervalSecs = mergeInt64(base.ScavengeIntervalSecs, overlay.ScavengeIntervalSecs)

	result.ContextMaxBytes = mergeInt64(base.ContextMaxBytes, overlay.ContextMaxBytes)

	result.MaxChunks = mergeInt(base.MaxChunks, overlay.MaxChunks)
	result.ChunkCacheMaxEntries = mergeInt(base.ChunkCacheMaxEntries, overlay.ChunkCacheMaxEntries)
	result.ChunkCacheMaxBytes = mergeInt(base.ChunkCacheMaxBytes, overlay.ChunkCacheMaxBytes)

	result.IndexCacheMaxEntries = mergeInt(base.IndexCacheMaxEntries, overlay.IndexCacheMaxEntries)
	result.QueryCacheMaxEntries = mergeInt(base.QueryCacheMaxEntries, overlay.QueryCacheMaxEntries)

	result.RegexTimeoutMs = mergeInt64(base.RegexTimeoutMs, overlay.RegexTimeoutMs)
	result.RegexMaxMatches = mergeInt(base.RegexMaxMatches, overlay.RegexMaxMatches)
	result.SearchContextChars = mergeInt(base.SearchContextChars, overlay.SearchContextChars)

	result.ExecTimeoutMs = mergeInt64(base.ExecTimeoutMs, overlay.ExecTimeoutMs)
	result.ExecOutputMaxChars = mergeInt(base.ExecOutputMaxChars, overlay.ExecOutputMaxChars)
	result.ExecHistoryDepth = mergeInt(base.ExecHistoryDepth, overlay.ExecHistoryDepth)
	result.ExecRegexMaxMatches = mergeInt(base.ExecRegexMaxMatches, overlay.ExecRegexMaxMatches)

	result.StorageBaseDir = mergeStr(base.StorageBaseDir, overlay.StorageBaseDir)
	result.StorageSnapshots = base.StorageSnapshots || overlay.StorageSnapshots
	result.StorageMaxSnapshots = mergeInt(base.StorageMaxSnapshots, overlay.StorageMaxSnapshots)
	result.DBMaxOpenConns = mergeInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = mergeInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return &result
}

func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
