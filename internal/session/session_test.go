package session

import (
	"testing"
	"time"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/store"
	"github.com/rlm-server/rlm/internal/textctx"
)

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) InvalidatePrefix(sessionID, contextID string) {
	r.calls = append(r.calls, sessionID+"/"+contextID)
}

func newTestRegistry(t *testing.T) (*Registry, *recordingInvalidator) {
	t.Helper()
	cfg := config.DefaultConfig()
	p, err := store.Open(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	inv := &recordingInvalidator{}
	return NewRegistry(cfg, p, inv), inv
}

func TestGetOrDefault_CreatesNoNewSessionForEmptyID(t *testing.T) {
	r, _ := newTestRegistry(t)

	s, err := r.GetOrDefault("")
	if err != nil {
		t.Fatalf("GetOrDefault() error = %v", err)
	}
	if s.ID != DefaultSessionID {
		t.Errorf("ID = %q, want %q", s.ID, DefaultSessionID)
	}
	if !s.Default {
		t.Error("Default = false, want true")
	}
}

func TestGetOrDefault_UnknownSessionErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.GetOrDefault("nope")
	if !errors.Is(err, errors.CodeSessionNotFound) {
		t.Fatalf("err = %v, want SESSION_NOT_FOUND", err)
	}
}

func TestCreateSession_ReturnsUniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(t)

	id1, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	id2, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if id1 == id2 {
		t.Errorf("CreateSession() returned duplicate ids: %q", id1)
	}

	if _, err := r.GetOrDefault(id1); err != nil {
		t.Errorf("GetOrDefault(%q) error = %v", id1, err)
	}
}

func TestLoad_RejectsInvalidContextID(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Load(DefaultSessionID, "bad id with spaces", "hello")
	if !errors.Is(err, errors.CodeContextInvalidID) {
		t.Fatalf("err = %v, want CONTEXT_INVALID_ID", err)
	}
}

func TestLoad_RejectsOversizedContext(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.cfg.ContextMaxBytes = 10

	err := r.Load(DefaultSessionID, "main", "this text is definitely over ten bytes")
	if !errors.Is(err, errors.CodeContextTooLarge) {
		t.Fatalf("err = %v, want CONTEXT_TOO_LARGE", err)
	}
}

func TestLoad_PublishesAndInvalidates(t *testing.T) {
	r, inv := newTestRegistry(t)

	if err := r.Load(DefaultSessionID, "main", "hello world"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c, err := r.GetContext(DefaultSessionID, "main")
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if c.Content != "hello world" {
		t.Errorf("Content = %q, want %q", c.Content, "hello world")
	}

	if len(inv.calls) != 1 || inv.calls[0] != DefaultSessionID+"/main" {
		t.Errorf("invalidator calls = %v, want one call for %s/main", inv.calls, DefaultSessionID)
	}
}

func TestLoad_ReplaceInvalidatesAgainAndSnapshots(t *testing.T) {
	r, inv := newTestRegistry(t)

	r.Load(DefaultSessionID, "main", "v1")
	r.Load(DefaultSessionID, "main", "v2")

	if len(inv.calls) != 2 {
		t.Fatalf("invalidator calls = %v, want 2", inv.calls)
	}

	c, _ := r.GetContext(DefaultSessionID, "main")
	if c.Content != "v2" {
		t.Errorf("Content = %q, want v2", c.Content)
	}
}

func TestAppend_CreateIfMissingFalseErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Append(DefaultSessionID, "main", "more", textctx.ModeAppend, false)
	if !errors.Is(err, errors.CodeContextNotFound) {
		t.Fatalf("err = %v, want CONTEXT_NOT_FOUND", err)
	}
}

func TestAppend_CreateIfMissingTrueCreates(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.Append(DefaultSessionID, "main", "hello", textctx.ModeAppend, true); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	c, _ := r.GetContext(DefaultSessionID, "main")
	if c.Content != "hello" {
		t.Errorf("Content = %q, want hello", c.Content)
	}
}

func TestAppend_Prepend(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "world")

	if err := r.Append(DefaultSessionID, "main", "hello ", textctx.ModePrepend, false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	c, _ := r.GetContext(DefaultSessionID, "main")
	if c.Content != "hello world" {
		t.Errorf("Content = %q, want %q", c.Content, "hello world")
	}
}

func TestAppend_OverCapLeavesPriorIntact(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.cfg.ContextMaxBytes = 10
	r.Load(DefaultSessionID, "main", "12345")

	err := r.Append(DefaultSessionID, "main", "abcdefghij", textctx.ModeAppend, false)
	if !errors.Is(err, errors.CodeContextTooLarge) {
		t.Fatalf("err = %v, want CONTEXT_TOO_LARGE", err)
	}

	c, _ := r.GetContext(DefaultSessionID, "main")
	if c.Content != "12345" {
		t.Errorf("prior content mutated after failed append: %q", c.Content)
	}
}

func TestUnload_RemovesContext(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "hello")

	if err := r.Unload(DefaultSessionID, "main"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	_, err := r.GetContext(DefaultSessionID, "main")
	if !errors.Is(err, errors.CodeContextNotFound) {
		t.Fatalf("err after unload = %v, want CONTEXT_NOT_FOUND", err)
	}
}

func TestSetVariable_RejectsReservedNames(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, name := range []string{"__proto__", "constructor", "prototype"} {
		err := r.SetVariable(DefaultSessionID, name, "x")
		if !errors.Is(err, errors.CodeInvalidInput) {
			t.Errorf("SetVariable(%q) err = %v, want INVALID_INPUT", name, err)
		}
	}
}

func TestSetVariable_RoundTrip(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.SetVariable(DefaultSessionID, "count", float64(3)); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}
	v, ok, err := r.GetVariable(DefaultSessionID, "count")
	if err != nil {
		t.Fatalf("GetVariable() error = %v", err)
	}
	if !ok || v != float64(3) {
		t.Errorf("GetVariable() = %v, %v, want 3, true", v, ok)
	}
}

func TestDeleteVariable_RemovesKeyEntirely(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.SetVariable(DefaultSessionID, "count", float64(3)); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}
	if err := r.DeleteVariable(DefaultSessionID, "count"); err != nil {
		t.Fatalf("DeleteVariable() error = %v", err)
	}
	_, ok, err := r.GetVariable(DefaultSessionID, "count")
	if err != nil {
		t.Fatalf("GetVariable() error = %v", err)
	}
	if ok {
		t.Error("GetVariable() ok = true after delete, want false")
	}
}

func TestDeleteVariable_MissingNameIsNotError(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.DeleteVariable(DefaultSessionID, "neverSet"); err != nil {
		t.Errorf("DeleteVariable() on missing name error = %v, want nil", err)
	}
}

func TestListVariables_ReturnsShallowCopy(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.SetVariable(DefaultSessionID, "a", float64(1)); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}
	if err := r.SetVariable(DefaultSessionID, "b", "x"); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}

	vars, err := r.ListVariables(DefaultSessionID)
	if err != nil {
		t.Fatalf("ListVariables() error = %v", err)
	}
	if len(vars) != 2 || vars["a"] != float64(1) || vars["b"] != "x" {
		t.Errorf("ListVariables() = %v, want map with a=1, b=x", vars)
	}

	vars["a"] = "mutated"
	v, _, _ := r.GetVariable(DefaultSessionID, "a")
	if v != float64(1) {
		t.Error("mutating the returned map affected the registry's own state")
	}
}

func TestSetVariable_EnforcesCountCap(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.cfg.SessionMaxVariables = 1

	if err := r.SetVariable(DefaultSessionID, "a", "x"); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}
	err := r.SetVariable(DefaultSessionID, "b", "y")
	if !errors.Is(err, errors.CodeVariableLimit) {
		t.Fatalf("err = %v, want VARIABLE_LIMIT_EXCEEDED", err)
	}
}

func TestAnswerState_SeededEmpty(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.GetAnswer(DefaultSessionID)
	if err != nil {
		t.Fatalf("GetAnswer() error = %v", err)
	}
	if a.Content != "" || a.Ready {
		t.Errorf("GetAnswer() = %+v, want zero value", a)
	}
}

func TestSetAnswer_AndAppendAnswer(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.SetAnswer(DefaultSessionID, "first", false)
	r.AppendAnswer(DefaultSessionID, " second")

	a, _ := r.GetAnswer(DefaultSessionID)
	if a.Content != "first second" {
		t.Errorf("Content = %q, want %q", a.Content, "first second")
	}
}

func TestDecomposition_LookupByExplicitID(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "hello world")

	rec, err := r.StoreDecomposition(DefaultSessionID, "main", "fixed_size", map[string]any{"chunkSize": float64(100)}, 2)
	if err != nil {
		t.Fatalf("StoreDecomposition() error = %v", err)
	}

	got, err := r.LookupDecomposition(DefaultSessionID, "main", rec.ID)
	if err != nil {
		t.Fatalf("LookupDecomposition() error = %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got.ID = %q, want %q", got.ID, rec.ID)
	}
}

func TestDecomposition_UseLastForExistingContext(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "hello world")

	r.StoreDecomposition(DefaultSessionID, "main", "fixed_size", nil, 2)
	rec2, _ := r.StoreDecomposition(DefaultSessionID, "main", "by_lines", nil, 3)

	got, err := r.LookupDecomposition(DefaultSessionID, "main", "")
	if err != nil {
		t.Fatalf("LookupDecomposition() error = %v", err)
	}
	if got.ID != rec2.ID {
		t.Errorf("got.ID = %q, want most recent %q", got.ID, rec2.ID)
	}
}

func TestDecomposition_UseLastForMissingContextFallsBackToGlobal(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "hello world")
	rec, _ := r.StoreDecomposition(DefaultSessionID, "main", "fixed_size", nil, 2)

	got, err := r.LookupDecomposition(DefaultSessionID, "other", "")
	if err != nil {
		t.Fatalf("LookupDecomposition() error = %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got.ID = %q, want global most recent %q", got.ID, rec.ID)
	}
}

func TestClear_ResetsSessionButKeepsItAlive(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Load(DefaultSessionID, "main", "hello")
	r.SetVariable(DefaultSessionID, "x", "y")

	if err := r.Clear(DefaultSessionID); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := r.GetContext(DefaultSessionID, "main"); !errors.Is(err, errors.CodeContextNotFound) {
		t.Errorf("context survived Clear(): err = %v", err)
	}
	if _, err := r.GetOrDefault(DefaultSessionID); err != nil {
		t.Errorf("default session gone after Clear(): %v", err)
	}
}

func TestDestroy_RemovesNonDefaultSession(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.CreateSession()

	if err := r.Destroy(id); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := r.GetOrDefault(id); !errors.Is(err, errors.CodeSessionNotFound) {
		t.Errorf("session survived Destroy(): err = %v", err)
	}
}

func TestDestroy_RefusesDefaultSession(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Destroy(DefaultSessionID)
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestEvictExpired_RemovesIdleNonDefaultSessions(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.cfg.SessionTTLSeconds = 1

	fixed := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return fixed }

	id, _ := r.CreateSession()

	r.now = func() time.Time { return fixed.Add(10 * time.Second) }
	r.evictExpired()

	if _, err := r.GetOrDefault(id); !errors.Is(err, errors.CodeSessionNotFound) {
		t.Errorf("session survived eviction: err = %v", err)
	}
	if _, err := r.GetOrDefault(DefaultSessionID); err != nil {
		t.Errorf("default session evicted: %v", err)
	}
}

func TestCreateSession_EvictsLRUWhenAtCap(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.cfg.MaxSessions = 2 // default + 1 extra

	fixed := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return fixed }
	oldID, _ := r.CreateSession()

	r.now = func() time.Time { return fixed.Add(time.Minute) }
	newID, err := r.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := r.GetOrDefault(oldID); !errors.Is(err, errors.CodeSessionNotFound) {
		t.Errorf("oldest session survived cap eviction: err = %v", err)
	}
	if _, err := r.GetOrDefault(newID); err != nil {
		t.Errorf("new session missing: %v", err)
	}
}
