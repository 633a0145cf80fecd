// ABOUTME: In-memory SessionStore used by tests and the "memory" database driver
// ABOUTME: Allows running the gateway without SQLite; contents are lost on exit

package store

import (
	"context"
	"sync"
	"time"
)

type mockSession struct {
	createdAt time.Time
	messages  []Message
}

// MockStore is an in-memory SessionStore implementation.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*mockSession // keyed by session ID
	now      func() time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*mockSession),
		now:      time.Now,
	}
}

// GetSession returns a copy of the session's messages.
func (m *MockStore) GetSession(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return []Message{}, nil
	}

	result := make([]Message, len(sess.messages))
	for i, msg := range sess.messages {
		result[i] = copyMessage(msg)
	}
	return result, nil
}

// SaveMessage appends a message. Timestamps are assigned under the write lock
// and never go backwards within a session, so slice order is timestamp order.
func (m *MockStore) SaveMessage(ctx context.Context, sessionID string, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := prepareMessage(sessionID, msg, m.now())
	if err != nil {
		return "", err
	}

	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &mockSession{createdAt: msg.Timestamp}
		m.sessions[sessionID] = sess
	}
	if n := len(sess.messages); n > 0 && msg.Timestamp.Before(sess.messages[n-1].Timestamp) {
		msg.Timestamp = sess.messages[n-1].Timestamp
	}

	sess.messages = append(sess.messages, msg)
	return msg.ID, nil
}

// SessionCreatedAt returns when the session was first written.
func (m *MockStore) SessionCreatedAt(ctx context.Context, sessionID string) (time.Time, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return time.Time{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return sess.createdAt, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// copyMessage returns msg with its own copy of the metadata
func copyMessage(msg Message) Message {
	if msg.Metadata != nil {
		citations := make([]string, len(msg.Metadata.Citations))
		copy(citations, msg.Metadata.Citations)
		msg.Metadata = &Metadata{Citations: citations}
	}
	return msg
}
