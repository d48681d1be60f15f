package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rlm-server/rlm/internal/errors"
)

// Snapshot is one row of a context's history: the content as it stood
// immediately before a mutation, plus the metadata computed for it.
type Snapshot struct {
	SessionID    string
	ContextID    string
	Seq          int64
	Content      string
	MetadataJSON string
	CreatedAt    int64
}

// InsertSnapshot appends a new snapshot row and, if maxSnapshots > 0,
// deletes the oldest rows for (sessionID, contextID) beyond that cap.
// seq must be monotonically increasing per (sessionID, contextID); the
// caller (internal/store) is responsible for computing it.
func InsertSnapshot(db *sql.DB, s Snapshot, maxSnapshots int) error {
	_, err := db.Exec(`
		INSERT INTO context_snapshots (session_id, context_id, snapshot_seq, content, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.SessionID, s.ContextID, s.Seq, s.Content, s.MetadataJSON, s.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	if maxSnapshots > 0 {
		if err := trimSnapshots(db, s.SessionID, s.ContextID, maxSnapshots); err != nil {
			return err
		}
	}
	return nil
}

// trimSnapshots deletes the oldest rows beyond the newest maxSnapshots
// for a given (sessionID, contextID) pair.
func trimSnapshots(db *sql.DB, sessionID, contextID string, maxSnapshots int) error {
	_, err := db.Exec(`
		DELETE FROM context_snapshots
		WHERE session_id = ? AND context_id = ?
		AND snapshot_seq NOT IN (
			SELECT snapshot_seq FROM context_snapshots
			WHERE session_id = ? AND context_id = ?
			ORDER BY snapshot_seq DESC
			LIMIT ?
		)
	`, sessionID, contextID, sessionID, contextID, maxSnapshots)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LatestSnapshotSeq returns the highest snapshot_seq stored for
// (sessionID, contextID), or 0 if none exist.
func LatestSnapshotSeq(db *sql.DB, sessionID, contextID string) (int64, error) {
	var seq sql.NullInt64
	err := db.QueryRow(`
		SELECT MAX(snapshot_seq) FROM context_snapshots
		WHERE session_id = ? AND context_id = ?
	`, sessionID, contextID).Scan(&seq)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// ListSnapshots returns every stored snapshot for (sessionID, contextID),
// oldest first.
func ListSnapshots(db *sql.DB, sessionID, contextID string) ([]Snapshot, error) {
	rows, err := db.Query(`
		SELECT session_id, context_id, snapshot_seq, content, metadata_json, created_at
		FROM context_snapshots
		WHERE session_id = ? AND context_id = ?
		ORDER BY snapshot_seq ASC
	`, sessionID, contextID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.SessionID, &s.ContextID, &s.Seq, &s.Content, &s.MetadataJSON, &s.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteContextSnapshots removes every snapshot for (sessionID, contextID),
// used when a context is unloaded.
func DeleteContextSnapshots(db *sql.DB, sessionID, contextID string) error {
	_, err := db.Exec(`DELETE FROM context_snapshots WHERE session_id = ? AND context_id = ?`, sessionID, contextID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteSessionSnapshots removes every snapshot for a whole session, used
// when a session is destroyed or cleared.
func DeleteSessionSnapshots(db *sql.DB, sessionID string) error {
	_, err := db.Exec(`DELETE FROM context_snapshots WHERE session_id = ?`, sessionID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SessionState is the persisted slice of session data that lives outside
// context content: variables and the accumulated answer.
type SessionState struct {
	SessionID string
	Variables map[string]any
	Answer    []string
	UpdatedAt int64
}

// SaveSessionState upserts a session's variables and answer accumulator.
func SaveSessionState(db *sql.DB, st SessionState) error {
	varsJSON, err := json.Marshal(st.Variables)
	if err != nil {
		return errors.NewInternal(err)
	}
	answerJSON, err := json.Marshal(st.Answer)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.Exec(`
		INSERT INTO session_state (session_id, variables_json, answer_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			variables_json = excluded.variables_json,
			answer_json = excluded.answer_json,
			updated_at = excluded.updated_at
	`, st.SessionID, string(varsJSON), string(answerJSON), st.UpdatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LoadSessionState fetches a session's persisted variables and answer.
// Returns (nil, nil) if no row exists — an empty session is not an error.
func LoadSessionState(db *sql.DB, sessionID string) (*SessionState, error) {
	var varsJSON, answerJSON sql.NullString
	var updatedAt int64

	err := db.QueryRow(`
		SELECT variables_json, answer_json, updated_at FROM session_state WHERE session_id = ?
	`, sessionID).Scan(&varsJSON, &answerJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	st := &SessionState{SessionID: sessionID, UpdatedAt: updatedAt}
	if varsJSON.Valid && varsJSON.String != "" {
		if err := json.Unmarshal([]byte(varsJSON.String), &st.Variables); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	if answerJSON.Valid && answerJSON.String != "" {
		if err := json.Unmarshal([]byte(answerJSON.String), &st.Answer); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return st, nil
}

// DeleteSessionState removes a session's persisted variables and answer.
func DeleteSessionState(db *sql.DB, sessionID string) error {
	_, err := db.Exec(`DELETE FROM session_state WHERE session_id = ?`, sessionID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Now returns the current time as Unix seconds, the unit the created_at and
// updated_at columns store.
func Now() int64 {
	return time.Now().Unix()
}
