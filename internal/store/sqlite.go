// ABOUTME: SQLite implementation of SessionStore using modernc.org/sqlite
// ABOUTME: Sessions and their append-only message logs with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so that text comparison in ORDER BY matches
// chronological order. RFC3339Nano trims trailing zeros and does not.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements SessionStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "driver", "sqlite")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			metadata_json TEXT,
			timestamp  TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id),
			CHECK (role IN ('user', 'model'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_ts
			ON messages(session_id, timestamp, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Databases created before citations were stored lack metadata_json.
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('messages') WHERE name = 'metadata_json'`,
			apply:  `ALTER TABLE messages ADD COLUMN metadata_json TEXT`,
			column: "metadata_json",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to messages: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "messages")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetSession retrieves all messages of a session in chronological order.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, role, content, metadata_json, timestamp
		FROM messages
		WHERE session_id = ?
		ORDER BY timestamp ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, unavailable("querying messages", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role, tsStr string
		var metadataJSON sql.NullString

		if err := rows.Scan(&msg.ID, &role, &msg.Content, &metadataJSON, &tsStr); err != nil {
			return nil, unavailable("scanning message row", err)
		}
		msg.Role = Role(role)

		msg.Timestamp, err = time.Parse(timeFormat, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			var md Metadata
			if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
				return nil, fmt.Errorf("decoding message metadata: %w", err)
			}
			msg.Metadata = &md
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating message rows", err)
	}

	return messages, nil
}

// SaveMessage appends a message to the session, creating the session row on
// first write. Session creation and the insert share one transaction, and the
// timestamp never precedes the session's latest message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, msg Message) (string, error) {
	msg, err := prepareMessage(sessionID, msg, s.now())
	if err != nil {
		return "", err
	}

	metadata, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", unavailable("beginning transaction", err)
	}
	defer tx.Rollback()

	ts := msg.Timestamp.Format(timeFormat)

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		sessionID, ts,
	); err != nil {
		return "", unavailable("creating session", err)
	}

	// A clock step backwards must not reorder the session
	var last sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&last); err != nil {
		return "", unavailable("reading last timestamp", err)
	}
	if last.Valid && last.String > ts {
		prev, err := time.Parse(timeFormat, last.String)
		if err != nil {
			return "", fmt.Errorf("parsing stored timestamp %q: %w", last.String, err)
		}
		msg.Timestamp = prev.UTC()
		ts = last.String
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, metadata_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		sessionID,
		string(msg.Role),
		msg.Content,
		metadata,
		ts,
	); err != nil {
		return "", unavailable("inserting message", err)
	}

	if err := tx.Commit(); err != nil {
		return "", unavailable("committing message", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "session_id", sessionID, "role", msg.Role)
	return msg.ID, nil
}

// SessionCreatedAt returns when the session record was created.
// Returns ErrNotFound if no message was ever written to it.
func (s *SQLiteStore) SessionCreatedAt(ctx context.Context, sessionID string) (time.Time, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return time.Time{}, err
	}

	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM sessions WHERE id = ?`, sessionID).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, unavailable("querying session", err)
	}
	return time.Parse(timeFormat, createdAt)
}

// encodeMetadata returns the JSON column value, nil when there is no metadata
func encodeMetadata(md *Metadata) (any, error) {
	if md == nil {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding message metadata: %w", err)
	}
	return string(data), nil
}
