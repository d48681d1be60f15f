package session

import (
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/textctx"
	"github.com/rlm-server/rlm/internal/validate"
)

// invalidateSession fires every registered CacheInvalidator for every
// context prefix of a session. Used on TTL/LRU eviction, clear, and
// destroy, where there is no single Context boundary to key off.
func (r *Registry) invalidateSession(sessionID string) {
	for _, inv := range r.invalidators {
		inv.InvalidatePrefix(sessionID, "")
	}
}

// invalidateContext fires every registered CacheInvalidator for one
// (session, context) pair. This is step (b)(c)(d) of invariant M1.
func (r *Registry) invalidateContext(sessionID, contextID string) {
	for _, inv := range r.invalidators {
		inv.InvalidatePrefix(sessionID, contextID)
	}
}

// Load creates or replaces a named context (invariant M1, A1 atomicity):
// the prior Context, if any, is snapshotted, every downstream cache
// entry for (session, contextID) is invalidated, and only then is the
// new Context published. On any admission failure the prior Context (or
// absence of one) is left untouched.
func (r *Registry) Load(sessionID, contextID, text string) error {
	if !validate.ContextID(contextID) {
		return errors.NewContextInvalidID(contextID)
	}
	if int64(len(text)) > r.cfg.ContextMaxBytes {
		return errors.NewContextTooLarge(int(r.cfg.ContextMaxBytes), len(text))
	}

	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	now := r.now()
	next := textctx.New(contextID, text, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, existed := s.contexts[contextID]

	if !existed && r.cfg.SessionMaxContexts > 0 && len(s.contexts) >= r.cfg.SessionMaxContexts {
		return errors.NewVariableLimit("contexts", r.cfg.SessionMaxContexts)
	}

	projected := s.memoryBytesLocked() - contextBytesLocked(prior) + estimateContextBytes(len(text))
	if r.cfg.SessionMemoryCapBytes > 0 && projected > r.cfg.SessionMemoryCapBytes {
		return errors.NewSessionMemoryExceeded(r.cfg.SessionMemoryCapBytes, projected)
	}

	// M1(a): snapshot the prior content before it is overwritten.
	if existed {
		if err := r.snapshot(s.ID, prior); err != nil {
			return err
		}
	}

	// M1(b)(c)(d): invalidate every downstream cache before publishing.
	r.invalidateContext(s.ID, contextID)

	// M1(e): publish.
	s.contexts[contextID] = next
	s.touch(now)

	return nil
}

// Append adds text to an existing context (or creates it, if
// createIfMissing) in the given mode. Same M1/A1 guarantees as Load.
func (r *Registry) Append(sessionID, contextID, text string, mode textctx.Mode, createIfMissing bool) error {
	if !validate.ContextID(contextID) {
		return errors.NewContextInvalidID(contextID)
	}

	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	now := r.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, existed := s.contexts[contextID]
	if !existed {
		if !createIfMissing {
			return errors.NewContextNotFound(contextID)
		}
		if r.cfg.SessionMaxContexts > 0 && len(s.contexts) >= r.cfg.SessionMaxContexts {
			return errors.NewVariableLimit("contexts", r.cfg.SessionMaxContexts)
		}
		if int64(len(text)) > r.cfg.ContextMaxBytes {
			return errors.NewContextTooLarge(int(r.cfg.ContextMaxBytes), len(text))
		}

		next := textctx.New(contextID, text, now)
		projected := s.memoryBytesLocked() + estimateContextBytes(len(text))
		if r.cfg.SessionMemoryCapBytes > 0 && projected > r.cfg.SessionMemoryCapBytes {
			return errors.NewSessionMemoryExceeded(r.cfg.SessionMemoryCapBytes, projected)
		}

		r.invalidateContext(s.ID, contextID)
		s.contexts[contextID] = next
		s.touch(now)
		return nil
	}

	next := prior.Mutate(mode, text)
	if int64(len(next.Content)) > r.cfg.ContextMaxBytes {
		return errors.NewContextTooLarge(int(r.cfg.ContextMaxBytes), len(next.Content))
	}

	projected := s.memoryBytesLocked() - contextBytesLocked(prior) + estimateContextBytes(len(next.Content))
	if r.cfg.SessionMemoryCapBytes > 0 && projected > r.cfg.SessionMemoryCapBytes {
		return errors.NewSessionMemoryExceeded(r.cfg.SessionMemoryCapBytes, projected)
	}

	if err := r.snapshot(s.ID, prior); err != nil {
		return err
	}
	r.invalidateContext(s.ID, contextID)
	s.contexts[contextID] = next
	s.touch(now)

	return nil
}

// Unload drops a context from live memory. Persistence, if enabled,
// clears the context's earlier history and records the final content as
// its one remaining snapshot before the in-memory copy is dropped.
func (r *Registry) Unload(sessionID, contextID string) error {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.contexts[contextID]
	if !ok {
		return errors.NewContextNotFound(contextID)
	}

	_ = r.persistence.DeleteContext(s.ID, contextID)
	if err := r.snapshot(s.ID, prior); err != nil {
		return err
	}

	r.invalidateContext(s.ID, contextID)
	delete(s.contexts, contextID)
	delete(s.lastByContext, contextID)
	s.touch(r.now())

	return nil
}

// GetContext returns a session's context by id.
func (r *Registry) GetContext(sessionID, contextID string) (*textctx.Context, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[contextID]
	if !ok {
		return nil, errors.NewContextNotFound(contextID)
	}
	return c, nil
}

// ListContexts returns the ids of every context loaded in a session.
func (r *Registry) ListContexts(sessionID string) ([]string, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Registry) snapshot(sessionID string, c *textctx.Context) error {
	if c == nil {
		return nil
	}
	if err := r.persistence.SaveSnapshot(sessionID, c.ID, c.Content, c.Metadata); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func contextBytesLocked(c *textctx.Context) int64 {
	if c == nil {
		return 0
	}
	return estimateContextBytes(len(c.Content))
}

// SetVariable sets a session-scoped variable, enforcing name grammar,
// count cap, and per-variable byte cap.
func (r *Registry) SetVariable(sessionID, name string, value any) error {
	if !validate.VariableName(name) {
		return errors.NewInvalidInput("name", "invalid variable name")
	}

	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	size := estimateValue(value)
	if r.cfg.SessionMaxVarBytes > 0 && size > int64(r.cfg.SessionMaxVarBytes) {
		return errors.NewVariableLimit("variable_bytes", r.cfg.SessionMaxVarBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.variables[name]
	if !existed && r.cfg.SessionMaxVariables > 0 && len(s.variables) >= r.cfg.SessionMaxVariables {
		return errors.NewVariableLimit("variables", r.cfg.SessionMaxVariables)
	}

	prevTotal := s.memoryBytesLocked()
	var prevSize int64
	if existed {
		prevSize = estimateValue(s.variables[name])
	}
	projected := prevTotal - prevSize + size
	if r.cfg.SessionMemoryCapBytes > 0 && projected > r.cfg.SessionMemoryCapBytes {
		return errors.NewSessionMemoryExceeded(r.cfg.SessionMemoryCapBytes, projected)
	}

	s.variables[name] = value
	s.touch(r.now())
	return nil
}

// GetVariable reads a session-scoped variable.
func (r *Registry) GetVariable(sessionID, name string) (any, bool, error) {
	if !validate.VariableName(name) {
		return nil, false, errors.NewInvalidInput("name", "invalid variable name")
	}

	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok, nil
}

// DeleteVariable removes a session-scoped variable. Deleting a name that
// was never set is not an error.
func (r *Registry) DeleteVariable(sessionID, name string) error {
	if !validate.VariableName(name) {
		return errors.NewInvalidInput("name", "invalid variable name")
	}

	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.variables, name)
	s.touch(r.now())
	return nil
}

// ListVariables returns a shallow copy of every session-scoped variable.
func (r *Registry) ListVariables(sessionID string) (map[string]any, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.variables))
	for k, v := range s.variables {
		out[k] = v
	}
	return out, nil
}

// SetAnswer replaces the distinguished `answer` variable's content and
// ready flag.
func (r *Registry) SetAnswer(sessionID, content string, ready bool) error {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = AnswerState{Content: content, Ready: ready}
	s.touch(r.now())
	return nil
}

// AppendAnswer appends text to the answer's accumulated content.
func (r *Registry) AppendAnswer(sessionID, text string) error {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer.Content += text
	s.touch(r.now())
	return nil
}

// GetAnswer reads the distinguished `answer` variable.
func (r *Registry) GetAnswer(sessionID string) (AnswerState, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return AnswerState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answer, nil
}

// StoreDecomposition records a new DecompositionRecord and marks it as
// the most recent for both its context and the whole session.
func (r *Registry) StoreDecomposition(sessionID, contextID, strategy string, options map[string]any, chunkCount int) (*DecompositionRecord, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, err
	}

	id, err := newULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rec := &DecompositionRecord{
		ID:         id,
		ContextID:  contextID,
		Strategy:   strategy,
		Options:    options,
		ChunkCount: chunkCount,
		CreatedAt:  r.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.decompositions[id] = rec
	s.lastByContext[contextID] = id
	s.lastGlobal = id
	s.touch(r.now())

	return rec, nil
}

// LookupDecomposition resolves a decomposition reference. If decomposeID
// is non-empty and not the sentinel "main", it is looked up directly and
// must belong to contextID unless contextID is empty or the sentinel.
// Otherwise, "use last decompose" semantics apply: an existing context
// returns its own last record; a missing context returns the session's
// globally most recent record.
func (r *Registry) LookupDecomposition(sessionID, contextID, decomposeID string) (*DecompositionRecord, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if decomposeID != "" && decomposeID != "main" {
		rec, ok := s.decompositions[decomposeID]
		if !ok {
			return nil, errors.NewInvalidInput("decompose_id", "no such decomposition: "+decomposeID)
		}
		if contextID != "" && contextID != "main" && rec.ContextID != contextID {
			return nil, errors.NewInvalidInput("context_id", "decompose_id does not belong to the given context")
		}
		return rec, nil
	}

	if _, ok := s.contexts[contextID]; ok {
		if id, ok := s.lastByContext[contextID]; ok {
			return s.decompositions[id], nil
		}
		return nil, errors.NewInvalidInput("context_id", "no decomposition recorded for context: "+contextID)
	}

	if s.lastGlobal != "" {
		return s.decompositions[s.lastGlobal], nil
	}
	return nil, errors.NewInvalidInput("decompose_id", "no decomposition recorded for session")
}

// Clear removes every context, variable, and decomposition pointer from
// a session while keeping the session itself alive.
func (r *Registry) Clear(sessionID string) error {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.contexts = make(map[string]*textctx.Context)
	s.variables = make(map[string]any)
	s.answer = AnswerState{Content: "", Ready: false}
	s.decompositions = make(map[string]*DecompositionRecord)
	s.lastByContext = make(map[string]string)
	s.lastGlobal = ""
	s.touch(r.now())
	s.mu.Unlock()

	r.invalidateSession(sessionID)
	return r.persistence.DeleteSession(sessionID)
}

// Destroy removes a session entirely. The default session cannot be
// destroyed.
func (r *Registry) Destroy(sessionID string) error {
	if sessionID == DefaultSessionID {
		return errors.NewInvalidInput("session_id", "the default session cannot be destroyed")
	}

	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.NewSessionNotFound(sessionID)
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	r.invalidateSession(sessionID)
	return r.persistence.DeleteSession(sessionID)
}

// Stats returns a snapshot of a session's size and activity.
func (r *Registry) Stats(sessionID string) (Stats, error) {
	s, err := r.GetOrDefault(sessionID)
	if err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		SessionID:     s.ID,
		ContextCount:  len(s.contexts),
		VariableCount: len(s.variables),
		MemoryBytes:   s.memoryBytesLocked(),
		CreatedAt:     s.createdAt,
		LastActiveAt:  s.lastActiveAt,
	}, nil
}

// ActiveSessionCount reports how many sessions currently exist, for the
// rlm_get_metrics gauge.
func (r *Registry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TotalMemoryBytes sums estimated memory across every session, for the
// rlm_get_metrics gauge.
func (r *Registry) TotalMemoryBytes() int64 {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sessions := r.sessions
	r.mu.RUnlock()

	var total int64
	for _, id := range ids {
		s, ok := sessions[id]
		if !ok {
			continue
		}
		s.mu.RLock()
		total += s.memoryBytesLocked()
		s.mu.RUnlock()
	}
	return total
}
