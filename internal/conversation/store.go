// Package conversation keeps the client side of a chat thread: the
// conversation identifier minted by the server, the persisted message
// history, and the unread marker for the notification badge.
//
// A conversation is one versioned record with a single load/save
// boundary, validated on read, rather than loose per-field keys with
// JSON handling at every call site.
package conversation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/goland-group/aguimock/internal/protocol"
)

// recordVersion is bumped when the persisted shape changes; older
// records are rejected on read rather than silently misread.
const recordVersion = 1

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrBadRecord            = errors.New("invalid conversation record")
)

// Message is one persisted chat message
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Feedback  string    `json:"feedback,omitempty"` // positive or negative
}

// NewMessage creates a message with a minted ID and current timestamp
func NewMessage(role, content string) Message {
	return Message{
		ID:        "msg_" + uuid.New().String()[:8],
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Record is the full persisted state of one conversation
type Record struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`

	// SeenCount is how many assistant messages the user has seen; the
	// difference against the current assistant count drives the badge.
	SeenCount int       `json:"seen_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssistantCount returns the number of assistant messages in the record
func (r *Record) AssistantCount() int {
	n := 0
	for _, m := range r.Messages {
		if m.Role == protocol.RoleAssistant {
			n++
		}
	}
	return n
}

// UnreadCount returns how many assistant messages arrived since the user
// last looked at the conversation
func (r *Record) UnreadCount() int {
	unread := r.AssistantCount() - r.SeenCount
	if unread < 0 {
		return 0
	}
	return unread
}

// validate checks a record after decoding from storage
func (r *Record) validate() error {
	if r.Version != recordVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadRecord, r.Version, recordVersion)
	}
	if r.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrBadRecord)
	}
	for i, m := range r.Messages {
		if m.Role != protocol.RoleUser && m.Role != protocol.RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrBadRecord, i, m.Role)
		}
	}
	return nil
}

// Store persists conversation records keyed by session identifier
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store with SQLite backend
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "conversations.db")
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
	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS active_conversation (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		session_id TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreate returns the active conversation record, or a fresh unsaved
// one when there is none. The fresh record has no session id; the server
// mints one on the first run and Adopt persists it.
func (s *Store) GetOrCreate() (*Record, error) {
	id, err := s.CurrentSessionID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return &Record{}, nil
	}
	rec, err := s.Load(id)
	if errors.Is(err, ErrConversationNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CurrentSessionID returns the active conversation identifier, or empty
// when the next run should let the server mint one
func (s *Store) CurrentSessionID() (string, error) {
	var id string
	err := s.db.QueryRow("SELECT session_id FROM active_conversation WHERE id = 1").Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active conversation: %w", err)
	}
	return id, nil
}

// Adopt makes id the active conversation, creating an empty record when
// none exists yet. Called when the server returns a session id in
// agent:start.
func (s *Store) Adopt(id string) error {
	if id == "" {
		return fmt.Errorf("cannot adopt an empty session id")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM conversations WHERE session_id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if exists == 0 {
		rec := Record{Version: recordVersion, SessionID: id, UpdatedAt: time.Now()}
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if _, err := tx.Exec(
			"INSERT INTO conversations (session_id, record, updated_at) VALUES (?, ?, ?)",
			id, string(data), rec.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO active_conversation (id, session_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET session_id = excluded.session_id`, id,
	); err != nil {
		return fmt.Errorf("failed to set active conversation: %w", err)
	}

	return tx.Commit()
}

// Forget removes a conversation and its messages. Clears the active
// pointer when it referenced the forgotten conversation. Used for the
// explicit "new conversation" action.
func (s *Store) Forget(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM conversations WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM active_conversation WHERE id = 1 AND session_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear active conversation: %w", err)
	}

	return tx.Commit()
}

// Load reads and validates one conversation record
func (s *Store) Load(id string) (*Record, error) {
	var data string
	err := s.db.QueryRow("SELECT record FROM conversations WHERE session_id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save writes one conversation record, the only write boundary for
// message history
func (s *Store) Save(rec *Record) error {
	rec.Version = recordVersion
	rec.UpdatedAt = time.Now()
	if err := rec.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO conversations (session_id, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.SessionID, string(data), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// MarkSeen records that the user has seen every assistant message
// currently in the conversation
func (s *Store) MarkSeen(id string) error {
	rec, err := s.Load(id)
	if err != nil {
		return err
	}
	rec.SeenCount = rec.AssistantCount()
	return s.Save(rec)
}
