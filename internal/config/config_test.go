package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionMemoryCapBytes != DefaultConfig().SessionMemoryCapBytes {
		t.Fatalf("SessionMemoryCapBytes = %d, want %d", cfg.SessionMemoryCapBytes, DefaultConfig().SessionMemoryCapBytes)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"max_chunks": 500}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxChunks != 500 {
		t.Fatalf("MaxChunks = %d, want %d", cfg.MaxChunks, 500)
	}
	// Untouched fields keep their defaults.
	if cfg.SessionMaxContexts != DefaultConfig().SessionMaxContexts {
		t.Fatalf("SessionMaxContexts = %d, want default %d", cfg.SessionMaxContexts, DefaultConfig().SessionMaxContexts)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["rlm_execute_code", "rlm_unload_context"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxChunks: 10000, RegexMaxMatches: 5}
	overlay := &Config{MaxChunks: 5000} // RegexMaxMatches is 0 (zero value)

	result := Merge(base, overlay)

	if result.MaxChunks != 5000 {
		t.Errorf("MaxChunks = %d, want 5000 (overlay)", result.MaxChunks)
	}
	if result.RegexMaxMatches != 5 {
		t.Errorf("RegexMaxMatches = %d, want 5 (base, overlay is zero)", result.RegexMaxMatches)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{StorageSnapshots: true}
	overlay := &Config{StorageSnapshots: false}

	result := Merge(base, overlay)

	if !result.StorageSnapshots {
		t.Error("StorageSnapshots should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"rlm_execute_code", "rlm_unload_context"}}
	overlay := &Config{DisabledTools: []string{"rlm_unload_context", "rlm_clear_session"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"rlm_execute_code", "rlm_unload_context", "rlm_clear_session"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}
