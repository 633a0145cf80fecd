// ABOUTME: PostgreSQL implementation of SessionStore using a pgx connection pool
// ABOUTME: Same two-table layout as SQLite; metadata is stored as JSONB

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements SessionStore on PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore connects to the database at url, verifies the connection
// and creates the schema if needed.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store", "driver", "postgres")

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq        BIGSERIAL PRIMARY KEY,
			id         UUID NOT NULL UNIQUE,
			session_id UUID NOT NULL REFERENCES sessions(id),
			role       TEXT NOT NULL CHECK (role IN ('user', 'model')),
			content    TEXT NOT NULL,
			metadata   JSONB,
			timestamp  TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_ts
			ON messages(session_id, timestamp, seq);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases all pooled connections
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	s.pool.Close()
	return nil
}

// GetSession retrieves all messages of a session in chronological order.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, role, content, metadata, timestamp
		FROM messages
		WHERE session_id = $1
		ORDER BY timestamp ASC, seq ASC
	`, sessionID)
	if err != nil {
		return nil, unavailable("querying messages", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role string
		var metadata []byte

		if err := rows.Scan(&msg.ID, &role, &msg.Content, &metadata, &msg.Timestamp); err != nil {
			return nil, unavailable("scanning message row", err)
		}
		msg.Role = Role(role)
		msg.Timestamp = msg.Timestamp.UTC()

		if len(metadata) > 0 {
			var md Metadata
			if err := json.Unmarshal(metadata, &md); err != nil {
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

// SaveMessage appends a message, creating the session row on first write.
// The timestamp never precedes the session's latest message.
func (s *PostgresStore) SaveMessage(ctx context.Context, sessionID string, msg Message) (string, error) {
	msg, err := prepareMessage(sessionID, msg, s.now())
	if err != nil {
		return "", err
	}

	var metadata []byte
	if msg.Metadata != nil {
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return "", fmt.Errorf("encoding message metadata: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", unavailable("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		sessionID, msg.Timestamp,
	); err != nil {
		return "", unavailable("creating session", err)
	}

	// Locking the session row serializes appends so the clamp below holds
	if _, err := tx.Exec(ctx, `SELECT 1 FROM sessions WHERE id = $1 FOR UPDATE`, sessionID); err != nil {
		return "", unavailable("locking session", err)
	}

	var last *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT MAX(timestamp) FROM messages WHERE session_id = $1`, sessionID,
	).Scan(&last); err != nil {
		return "", unavailable("reading last timestamp", err)
	}
	if last != nil && last.After(msg.Timestamp) {
		msg.Timestamp = last.UTC()
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, sessionID, string(msg.Role), msg.Content, metadata, msg.Timestamp); err != nil {
		return "", unavailable("inserting message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", unavailable("committing message", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "session_id", sessionID, "role", msg.Role)
	return msg.ID, nil
}

// SessionCreatedAt returns when the session record was created.
func (s *PostgresStore) SessionCreatedAt(ctx context.Context, sessionID string) (time.Time, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return time.Time{}, err
	}

	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT created_at FROM sessions WHERE id = $1`, sessionID).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, unavailable("querying session", err)
	}
	return createdAt.UTC(), nil
}
