// Package session implements the Session Registry (C1): the process-wide
// table of isolated sessions, each owning named text contexts, variables,
// an accumulated answer, and pointers to prior decompositions, with
// memory accounting, TTL/LRU eviction, and coordinated downstream cache
// invalidation on every mutation (invariant M1).
package session

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/store"
	"github.com/rlm-server/rlm/internal/textctx"
)

// DefaultSessionID is the distinguished session id for clients that do
// not manage sessions themselves. It is never evicted.
const DefaultSessionID = "default"

// DecompositionRecord is the immutable pointer a session keeps to a
// prior split, letting a later call reproduce it without re-transmitting
// strategy/options.
type DecompositionRecord struct {
	ID         string
	ContextID  string
	Strategy   string
	Options    map[string]any
	ChunkCount int
	CreatedAt  time.Time
}

// AnswerState is the distinguished `answer` variable every session is
// seeded with.
type AnswerState struct {
	Content string `json:"content"`
	Ready   bool   `json:"ready"`
}

// Session is a single isolated workspace: contexts, variables, answer,
// and decomposition pointers, guarded by its own lock so concurrent
// readers never block on each other, only on a mutator.
type Session struct {
	ID      string
	Default bool

	mu             sync.RWMutex
	contexts       map[string]*textctx.Context
	variables      map[string]any
	answer         AnswerState
	decompositions map[string]*DecompositionRecord
	lastByContext  map[string]string // contextID -> most recent decompose id
	lastGlobal     string            // session-wide most recent decompose id

	createdAt    time.Time
	lastActiveAt time.Time
}

func newSession(id string, isDefault bool, now time.Time) *Session {
	return &Session{
		ID:             id,
		Default:        isDefault,
		contexts:       make(map[string]*textctx.Context),
		variables:      make(map[string]any),
		answer:         AnswerState{Content: "", Ready: false},
		decompositions: make(map[string]*DecompositionRecord),
		lastByContext:  make(map[string]string),
		createdAt:      now,
		lastActiveAt:   now,
	}
}

func (s *Session) touch(now time.Time) {
	s.lastActiveAt = now
}

// Stats is the snapshot returned by Registry.Stats, feeding
// rlm_get_session_info and the CLI's session info command.
type Stats struct {
	SessionID     string
	ContextCount  int
	VariableCount int
	MemoryBytes   int64
	CreatedAt     time.Time
	LastActiveAt  time.Time
}

// CacheInvalidator is implemented by every downstream cache the registry
// must clear before publishing a mutated Context (invariant M1). Keeping
// this as a one-method interface lets the chunk/index/query caches live
// in their own packages without the registry importing them.
type CacheInvalidator interface {
	InvalidatePrefix(sessionID, contextID string)
}

// Registry is the process-wide session table.
type Registry struct {
	cfg          *config.Config
	persistence  store.Persistence
	invalidators []CacheInvalidator

	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time

	scavengeCancel context.CancelFunc
	scavengeDone   chan struct{}
}

// NewRegistry builds a Registry with the `default` session pre-created.
// persistence may be a no-op implementation; invalidators are notified,
// in order, on every mutation per invariant M1.
func NewRegistry(cfg *config.Config, persistence store.Persistence, invalidators ...CacheInvalidator) *Registry {
	r := &Registry{
		cfg:          cfg,
		persistence:  persistence,
		invalidators: invalidators,
		sessions:     make(map[string]*Session),
		now:          time.Now,
	}
	now := r.now()
	r.sessions[DefaultSessionID] = newSession(DefaultSessionID, true, now)
	return r
}

// StartScavenger launches the background eviction loop. It runs every
// cfg.ScavengeIntervalSecs (default 60s) until ctx is cancelled or Stop
// is called.
func (r *Registry) StartScavenger(ctx context.Context) {
	interval := time.Duration(r.cfg.ScavengeIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	scavengeCtx, cancel := context.WithCancel(ctx)
	r.scavengeCancel = cancel
	r.scavengeDone = make(chan struct{})

	go func() {
		defer close(r.scavengeDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-scavengeCtx.Done():
				return
			case <-ticker.C:
				r.evictExpired()
			}
		}
	}()
}

// Stop halts the scavenger goroutine and waits for it to exit.
func (r *Registry) Stop() {
	if r.scavengeCancel == nil {
		return
	}
	r.scavengeCancel()
	<-r.scavengeDone
}

func (r *Registry) evictExpired() {
	ttl := time.Duration(r.cfg.SessionTTLSeconds) * time.Second
	if ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.Default {
			continue
		}
		s.mu.RLock()
		idle := s.lastActiveAt.Before(cutoff)
		s.mu.RUnlock()
		if idle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.invalidateSession(id)
		_ = r.persistence.DeleteSession(id)
	}
}

// CreateSession allocates a new session id, evicting the least-recently
// active non-default session first if the configured maximum is reached.
func (r *Registry) CreateSession() (string, error) {
	id, err := newULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		victim := r.lruVictimLocked()
		if victim != "" {
			delete(r.sessions, victim)
			r.mu.Unlock()
			r.invalidateSession(victim)
			_ = r.persistence.DeleteSession(victim)
			r.mu.Lock()
		} else {
			r.mu.Unlock()
			return "", errors.NewSessionMaxReached(r.cfg.MaxSessions)
		}
	}
	r.sessions[id] = newSession(id, false, r.now())
	r.mu.Unlock()

	return id, nil
}

// lruVictimLocked returns the non-default session with the oldest
// lastActiveAt. Caller must hold r.mu.
func (r *Registry) lruVictimLocked() string {
	var victim string
	var oldest time.Time
	for id, s := range r.sessions {
		if s.Default {
			continue
		}
		s.mu.RLock()
		la := s.lastActiveAt
		s.mu.RUnlock()
		if victim == "" || la.Before(oldest) {
			victim = id
			oldest = la
		}
	}
	return victim
}

// GetOrDefault returns the session for id, or the default session if id
// is empty. Touches last-activity time.
func (r *Registry) GetOrDefault(id string) (*Session, error) {
	if id == "" {
		id = DefaultSessionID
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewSessionNotFound(id)
	}

	s.mu.Lock()
	s.touch(r.now())
	s.mu.Unlock()

	return s, nil
}

func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
