// Package store defines the Persistence boundary the session registry
// mutates through, and its two implementations: a SQLite-backed store
// for durable history, and a no-op store for when persistence is
// disabled entirely.
package store

import (
	"database/sql"
	"encoding/json"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/db"
	"github.com/rlm-server/rlm/internal/errors"
)

// Persistence is the storage contract the session registry drives.
// Every method is safe to call with storage disabled: the no-op
// implementation makes each one a cheap non-mutating success.
type Persistence interface {
	// SaveSnapshot appends a pre-mutation snapshot of a context's content.
	SaveSnapshot(sessionID, contextID, content string, metadata any) error

	// LoadSnapshots returns every stored snapshot for a context, oldest first.
	LoadSnapshots(sessionID, contextID string) ([]Snapshot, error)

	// DeleteContext removes all persisted history for one context.
	DeleteContext(sessionID, contextID string) error

	// DeleteSession removes all persisted history and state for a session.
	DeleteSession(sessionID string) error

	// SaveState persists a session's variables and accumulated answer.
	SaveState(sessionID string, variables map[string]any, answer []string) error

	// LoadState fetches a session's persisted variables and answer.
	// Returns (nil, nil, nil) if nothing was ever saved for sessionID.
	LoadState(sessionID string) (variables map[string]any, answer []string, err error)

	// Close releases any underlying resources.
	Close() error
}

// Snapshot is a single stored history entry, decoded for callers outside
// this package.
type Snapshot struct {
	Seq       int64
	Content   string
	Metadata  json.RawMessage
	CreatedAt int64
}

// Open returns a Persistence backed by SQLite when cfg.StorageSnapshots
// is set, or a no-op store otherwise. baseDir is where the database file
// is created.
func Open(baseDir string, cfg *config.Config) (Persistence, error) {
	if cfg == nil || !cfg.StorageSnapshots {
		return noop{}, nil
	}

	sqlDB, err := db.Init(baseDir)
	if err != nil {
		return nil, err
	}
	db.ConfigurePool(sqlDB, cfg)

	return &sqliteStore{db: sqlDB, maxSnapshots: cfg.StorageMaxSnapshots}, nil
}

type sqliteStore struct {
	db           *sql.DB
	maxSnapshots int
}

func (s *sqliteStore) SaveSnapshot(sessionID, contextID, content string, metadata any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return errors.NewInternal(err)
	}

	seq, err := db.LatestSnapshotSeq(s.db, sessionID, contextID)
	if err != nil {
		return err
	}

	return db.InsertSnapshot(s.db, db.Snapshot{
		SessionID:    sessionID,
		ContextID:    contextID,
		Seq:          seq + 1,
		Content:      content,
		MetadataJSON: string(metaJSON),
		CreatedAt:    db.Now(),
	}, s.maxSnapshots)
}

func (s *sqliteStore) LoadSnapshots(sessionID, contextID string) ([]Snapshot, error) {
	rows, err := db.ListSnapshots(s.db, sessionID, contextID)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, len(rows))
	for i, r := range rows {
		out[i] = Snapshot{Seq: r.Seq, Content: r.Content, Metadata: json.RawMessage(r.MetadataJSON), CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (s *sqliteStore) DeleteContext(sessionID, contextID string) error {
	return db.DeleteContextSnapshots(s.db, sessionID, contextID)
}

func (s *sqliteStore) DeleteSession(sessionID string) error {
	if err := db.DeleteSessionSnapshots(s.db, sessionID); err != nil {
		return err
	}
	return db.DeleteSessionState(s.db, sessionID)
}

func (s *sqliteStore) SaveState(sessionID string, variables map[string]any, answer []string) error {
	return db.SaveSessionState(s.db, db.SessionState{
		SessionID: sessionID,
		Variables: variables,
		Answer:    answer,
		UpdatedAt: db.Now(),
	})
}

func (s *sqliteStore) LoadState(sessionID string) (map[string]any, []string, error) {
	st, err := db.LoadSessionState(s.db, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, nil
	}
	return st.Variables, st.Answer, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// noop is the Persistence used when storage is disabled: every mutation
// succeeds without touching disk, every read reports nothing stored.
type noop struct{}

func (noop) SaveSnapshot(string, string, string, any) error      { return nil }
func (noop) LoadSnapshots(string, string) ([]Snapshot, error)    { return nil, nil }
func (noop) DeleteContext(string, string) error                 { return nil }
func (noop) DeleteSession(string) error                          { return nil }
func (noop) SaveState(string, map[string]any, []string) error   { return nil }
func (noop) LoadState(string) (map[string]any, []string, error) { return nil, nil, nil }
func (noop) Close() error                                        { return nil }
