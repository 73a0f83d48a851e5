// Package feedback persists the thumbs up/down signals users attach to
// assistant messages.
package feedback

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrFeedbackNotFound = errors.New("feedback not found")

// Feedback is one recorded submission
type Feedback struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"message_id"`
	FeedbackType string    `json:"feedback_type"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store handles feedback persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new feedback store with SQLite backend
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "feedback.db")
	// Enable WAL mode and busy timeout for better concurrent access
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		feedback_type TEXT NOT NULL,
		session_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_message ON feedback(message_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one feedback submission, minting its ID. A resubmission
// for the same message replaces the earlier vote.
func (s *Store) Record(f *Feedback) error {
	if f.ID == "" {
		f.ID = "fb_" + uuid.New().String()[:8]
	}
	f.CreatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM feedback WHERE message_id = ?", f.MessageID); err != nil {
		return fmt.Errorf("failed to clear previous vote: %w", err)
	}

	var sessionID sql.NullString
	if f.SessionID != "" {
		sessionID = sql.NullString{String: f.SessionID, Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO feedback (id, message_id, feedback_type, session_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.MessageID, f.FeedbackType, sessionID, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	return tx.Commit()
}

// GetByMessage returns the current vote for a message
func (s *Store) GetByMessage(messageID string) (*Feedback, error) {
	var f Feedback
	var sessionID sql.NullString

	err := s.db.QueryRow(`
		SELECT id, message_id, feedback_type, session_id, created_at
		FROM feedback WHERE message_id = ?`, messageID,
	).Scan(&f.ID, &f.MessageID, &f.FeedbackType, &sessionID, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}

	if sessionID.Valid {
		f.SessionID = sessionID.String
	}
	return &f, nil
}

// ListBySession returns all feedback recorded for a conversation
func (s *Store) ListBySession(sessionID string) ([]*Feedback, error) {
	rows, err := s.db.Query(`
		SELECT id, message_id, feedback_type, session_id, created_at
		FROM feedback WHERE session_id = ? ORDER BY created_at ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Feedback
	for rows.Next() {
		var f Feedback
		var sid sql.NullString
		if err := rows.Scan(&f.ID, &f.MessageID, &f.FeedbackType, &sid, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if sid.Valid {
			f.SessionID = sid.String
		}
		result = append(result, &f)
	}

	return result, rows.Err()
}

// PruneOlderThan deletes feedback recorded before the cutoff and returns
// the number of rows removed
func (s *Store) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM feedback WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune feedback: %w", err)
	}
	return result.RowsAffected()
}
