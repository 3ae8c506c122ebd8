// Package store persists conversations, messages, uploads, database
// connections, feedback, and preferences in SQLite. The conversational core
// never writes here itself; the HTTP layer is the only caller.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nestor-ai/nestor/pkg/sqldb"
)

// Schema DDL, idempotent on open.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	path          TEXT NOT NULL,
	original_name TEXT NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS uploaded_databases (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	path          TEXT NOT NULL,
	original_name TEXT NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS database_connections (
	user_id        TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	sqlite_path    TEXT NOT NULL DEFAULT '',
	connection_url TEXT NOT NULL DEFAULT '',
	display_name   TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS message_feedback (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	message_id    TEXT NOT NULL,
	type          TEXT NOT NULL CHECK (type IN ('like', 'dislike', 'report')),
	report_reason TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	UNIQUE (user_id, message_id)
);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id         TEXT PRIMARY KEY,
	preferred_model TEXT NOT NULL DEFAULT 'gemini',
	theme           TEXT NOT NULL DEFAULT 'dark',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
`

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("not found")

// Conversation is one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted turn.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document is an uploaded corpus file.
type Document struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Path         string    `json:"path"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// Feedback is a user's reaction to one assistant message.
type Feedback struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	MessageID    string    `json:"message_id"`
	Type         string    `json:"type"`
	ReportReason string    `json:"report_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Preferences are per-user settings.
type Preferences struct {
	UserID         string `json:"user_id"`
	PreferredModel string `json:"preferred_model"`
	Theme          string `json:"theme"`
}

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateConversation starts a thread for a user.
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, summary, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return c, nil
}

// GetConversation loads one thread.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, summary, created_at, updated_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Summary, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns a user's threads, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, summary, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a thread and, via cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddMessage appends a turn and touches the thread's updated_at.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		m.CreatedAt, conversationID); err != nil {
		return nil, err
	}
	return m, tx.Commit()
}

// ListMessages returns a thread's turns, oldest first, ready to hand to the
// orchestrator as history.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddDocument records an uploaded corpus file.
func (s *Store) AddDocument(ctx context.Context, userID, path, originalName string, size int64) (*Document, error) {
	return s.addUpload(ctx, "documents", userID, path, originalName, size)
}

// AddUploadedDatabase records an uploaded SQLite database file.
func (s *Store) AddUploadedDatabase(ctx context.Context, userID, path, originalName string, size int64) (*Document, error) {
	return s.addUpload(ctx, "uploaded_databases", userID, path, originalName, size)
}

func (s *Store) addUpload(ctx context.Context, table, userID, path, originalName string, size int64) (*Document, error) {
	d := &Document{
		ID:           uuid.NewString(),
		UserID:       userID,
		Path:         path,
		OriginalName: originalName,
		Size:         size,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, user_id, path, original_name, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Path, d.OriginalName, d.Size, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("recording upload: %w", err)
	}
	return d, nil
}

// ListDocuments returns a user's uploaded corpus files, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, path, original_name, size, created_at
		 FROM documents WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Path, &d.OriginalName, &d.Size, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDocument loads one uploaded file record.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, path, original_name, size, created_at
		 FROM documents WHERE id = ?`, id).
		Scan(&d.ID, &d.UserID, &d.Path, &d.OriginalName, &d.Size, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes one uploaded file record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetConnection stores the user's single active connection descriptor,
// replacing any previous one.
func (s *Store) SetConnection(ctx context.Context, userID string, details sqldb.ConnectionDetails) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO database_connections (user_id, mode, sqlite_path, connection_url, display_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			mode = excluded.mode,
			sqlite_path = excluded.sqlite_path,
			connection_url = excluded.connection_url,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		userID, details.Mode, details.SQLitePath, details.ConnectionURL, details.DisplayName, now, now)
	if err != nil {
		return fmt.Errorf("storing connection: %w", err)
	}
	return nil
}

// GetConnection implements sqldb.ConnectionSource.
func (s *Store) GetConnection(ctx context.Context, userID string) (*sqldb.ConnectionDetails, error) {
	var d sqldb.ConnectionDetails
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, sqlite_path, connection_url, display_name
		 FROM database_connections WHERE user_id = ?`, userID).
		Scan(&d.Mode, &d.SQLitePath, &d.ConnectionURL, &d.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sqldb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertFeedback records or updates a user's reaction to a message. One row
// per (user, message); a second reaction replaces the first.
func (s *Store) UpsertFeedback(ctx context.Context, userID, messageID, feedbackType, reportReason string) (*Feedback, error) {
	now := time.Now().UTC()
	f := &Feedback{
		ID:           uuid.NewString(),
		UserID:       userID,
		MessageID:    messageID,
		Type:         feedbackType,
		ReportReason: reportReason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_feedback (id, user_id, message_id, type, report_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, message_id) DO UPDATE SET
			type = excluded.type,
			report_reason = excluded.report_reason,
			updated_at = excluded.updated_at`,
		f.ID, f.UserID, f.MessageID, f.Type, f.ReportReason, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}
	return f, nil
}

// GetFeedback loads a user's reaction to one message.
func (s *Store) GetFeedback(ctx context.Context, userID, messageID string) (*Feedback, error) {
	var f Feedback
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, message_id, type, report_reason, created_at, updated_at
		 FROM message_feedback WHERE user_id = ? AND message_id = ?`, userID, messageID).
		Scan(&f.ID, &f.UserID, &f.MessageID, &f.Type, &f.ReportReason, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetPreferences loads a user's settings, returning defaults when none were
// ever stored.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	p := &Preferences{UserID: userID, PreferredModel: "gemini", Theme: "dark"}
	err := s.db.QueryRowContext(ctx,
		`SELECT preferred_model, theme FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&p.PreferredModel, &p.Theme)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return p, nil
}

// SetPreferences stores a user's settings.
func (s *Store) SetPreferences(ctx context.Context, p Preferences) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, preferred_model, theme, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			preferred_model = excluded.preferred_model,
			theme = excluded.theme,
			updated_at = excluded.updated_at`,
		p.UserID, p.PreferredModel, p.Theme, now, now)
	if err != nil {
		return fmt.Errorf("storing preferences: %w", err)
	}
	return nil
}

var _ sqldb.ConnectionSource = (*Store)(nil)
