package mcp

import (
	"github.com/rlm-server/rlm/internal/session"
)

// sessionHost adapts a Registry bound to one session id into the narrow
// exec.Host surface the sandbox is allowed to reach into. It never
// returns an error to the sandbox; a failed registry call just yields the
// helper's documented zero value, matching the sandbox's own
// error-swallowing contract.
type sessionHost struct {
	registry  *session.Registry
	sessionID string
}

func (h *sessionHost) GetContext(contextID string) (string, bool) {
	c, err := h.registry.GetContext(h.sessionID, contextID)
	if err != nil {
		return "", false
	}
	return c.Content, true
}

func (h *sessionHost) GetContextMetadata(contextID string) (map[string]any, bool) {
	c, err := h.registry.GetContext(h.sessionID, contextID)
	if err != nil {
		return nil, false
	}
	return map[string]any{
		"length":    int64(c.Metadata.Length),
		"lineCount": int64(c.Metadata.LineCount),
		"wordCount": int64(c.Metadata.WordCount),
		"structure": string(c.Metadata.Structure),
	}, true
}

func (h *sessionHost) ListContexts() []string {
	ids, err := h.registry.ListContexts(h.sessionID)
	if err != nil {
		return nil
	}
	return ids
}

func (h *sessionHost) SetVariable(name string, value any) bool {
	return h.registry.SetVariable(h.sessionID, name, value) == nil
}

func (h *sessionHost) GetVariable(name string) (any, bool) {
	v, ok, err := h.registry.GetVariable(h.sessionID, name)
	if err != nil {
		return nil, false
	}
	return v, ok
}

func (h *sessionHost) ListVariables() map[string]any {
	vars, err := h.registry.ListVariables(h.sessionID)
	if err != nil {
		return map[string]any{}
	}
	return vars
}

func (h *sessionHost) DeleteVariable(name string) bool {
	return h.registry.DeleteVariable(h.sessionID, name) == nil
}

func (h *sessionHost) SetAnswer(content string, ready bool) {
	_ = h.registry.SetAnswer(h.sessionID, content, ready)
}

func (h *sessionHost) AppendAnswer(content string) {
	_ = h.registry.AppendAnswer(h.sessionID, content)
}

func (h *sessionHost) GetAnswer() (string, bool) {
	a, err := h.registry.GetAnswer(h.sessionID)
	if err != nil {
		return "", false
	}
	return a.Content, a.Ready
}
