package mcp

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/contenthash"
	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/exec"
	"github.com/rlm-server/rlm/internal/metrics"
	"github.com/rlm-server/rlm/internal/rank"
	"github.com/rlm-server/rlm/internal/search"
	"github.com/rlm-server/rlm/internal/session"
	"github.com/rlm-server/rlm/internal/store"
	"github.com/rlm-server/rlm/internal/textctx"
	"github.com/rlm-server/rlm/internal/tokenizer"
)

// Handlers holds every core component a tool handler may need, plus a
// lazily-built, per-session sandbox pool.
type Handlers struct {
	registry    *session.Registry
	decomposer  *decompose.Decomposer
	ranker      *rank.Ranker
	searcher    *search.Searcher
	tokenizers  *tokenizer.Registry
	metrics     *metrics.Registry
	persistence store.Persistence
	cfg         *config.Config

	mu        sync.Mutex
	sandboxes map[string]*exec.Sandbox
}

// NewHandlers wires every core component into a single Handlers instance.
func NewHandlers(
	registry *session.Registry,
	decomposer *decompose.Decomposer,
	ranker *rank.Ranker,
	searcher *search.Searcher,
	tokenizers *tokenizer.Registry,
	metricsRegistry *metrics.Registry,
	persistence store.Persistence,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		registry:    registry,
		decomposer:  decomposer,
		ranker:      ranker,
		searcher:    searcher,
		tokenizers:  tokenizers,
		metrics:     metricsRegistry,
		persistence: persistence,
		cfg:         cfg,
		sandboxes:   make(map[string]*exec.Sandbox),
	}
}

// sandboxFor returns the Sandbox bound to sessionID, building one on first
// use. One sandbox per session keeps each session's execution history and
// output budget isolated from every other session's (invariant: an
// expression cannot observe state from another session).
func (h *Handlers) sandboxFor(sessionID string) *exec.Sandbox {
	key := sessionID
	if key == "" {
		key = session.DefaultSessionID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sb, ok := h.sandboxes[key]; ok {
		return sb
	}
	sb := exec.NewSandbox(&sessionHost{registry: h.registry, sessionID: key}, h.cfg)
	h.sandboxes[key] = sb
	return sb
}

// requireContext fetches a context and its content-hash together, since
// nearly every read-only tool needs both.
func (h *Handlers) requireContext(sessionID, contextID string) (*textctx.Context, string, error) {
	c, err := h.registry.GetContext(sessionID, contextID)
	if err != nil {
		return nil, "", err
	}
	return c, contenthash.Hash(c.Content), nil
}

// resolveDecomposition resolves a decompose_id (or "use last decompose"
// reference) to its record and re-derives its chunks against the bound
// context's current content, which is a cache hit unless the context has
// changed since the decomposition was recorded.
func (h *Handlers) resolveDecomposition(sessionID, contextID, decomposeID string) (*session.DecompositionRecord, []decompose.Chunk, string, error) {
	rec, err := h.registry.LookupDecomposition(sessionID, contextID, decomposeID)
	if err != nil {
		return nil, nil, "", err
	}

	c, hash, err := h.requireContext(sessionID, rec.ContextID)
	if err != nil {
		return nil, nil, "", err
	}

	chunks, err := h.decomposer.Decompose(sessionID, rec.ContextID, rec.Strategy, rec.Options, c.Content, hash)
	if err != nil {
		return nil, nil, "", err
	}
	return rec, chunks, hash, nil
}

// RunSandboxed runs code in sessionID's sandbox, for callers outside the
// tool-handler surface (the CLI's exec command).
func (h *Handlers) RunSandboxed(ctx context.Context, sessionID, code string) *exec.Record {
	return h.sandboxFor(sessionID).Run(ctx, newULID(), code)
}

func newULID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
