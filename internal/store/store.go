// ABOUTME: SessionStore interface and data types for travelmind-gateway persistence
// ABOUTME: Defines Message/Metadata, role constants, validation, and the store error taxonomy

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSessionID is returned when a session id is not a canonical v4 UUID
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidMessage is returned when a message is missing its role or content
	ErrInvalidMessage = errors.New("invalid message")

	// ErrStorageUnavailable wraps any failure of the underlying database
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned when a requested session record does not exist
	ErrNotFound = errors.New("not found")
)

// Role identifies who authored a message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Metadata carries optional structured data attached to a message.
// Model messages use it for grounding citations.
type Metadata struct {
	Citations []string `json:"citations"`
}

// Message is one entry of a session's append-only log
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore is the persistence contract for conversation sessions.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// GetSession returns every message of the session ordered by server
	// timestamp, ties broken by insertion order. An unknown session yields an
	// empty slice.
	GetSession(ctx context.Context, sessionID string) ([]Message, error)

	// SaveMessage appends msg to the session, creating the session record on
	// first write. The timestamp is always assigned by the store.
	SaveMessage(ctx context.Context, sessionID string, msg Message) (string, error)

	Close() error
}

// SessionInspector exposes the session record created alongside the first
// message. All bundled stores implement it; the verify command uses it.
type SessionInspector interface {
	SessionCreatedAt(ctx context.Context, sessionID string) (time.Time, error)
}

// ValidateSessionID accepts only RFC 4122 version-4 UUIDs in canonical
// lowercase form.
// uuid.Parse also accepts braces, urn prefixes and upper case, so the parsed
// value must round-trip to the exact input.
func ValidateSessionID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q is not a UUID", ErrInvalidSessionID, id)
	}
	if parsed.Version() != 4 {
		return fmt.Errorf("%w: %q is not a version 4 UUID", ErrInvalidSessionID, id)
	}
	if parsed.Variant() != uuid.RFC4122 {
		return fmt.Errorf("%w: %q is not an RFC 4122 UUID", ErrInvalidSessionID, id)
	}
	if parsed.String() != id {
		return fmt.Errorf("%w: %q is not in canonical form", ErrInvalidSessionID, id)
	}
	return nil
}

// NewSessionID returns a fresh canonical session id
func NewSessionID() string {
	return uuid.New().String()
}

// validateMessage checks the fields every stored message must carry
func validateMessage(msg Message) error {
	if msg.Role == "" {
		return fmt.Errorf("%w: role is required", ErrInvalidMessage)
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	return nil
}

// prepareMessage validates the session id and message, then stamps a new id
// and the server timestamp. Every backend runs it before writing.
func prepareMessage(sessionID string, msg Message, now time.Time) (Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return Message{}, err
	}
	if err := validateMessage(msg); err != nil {
		return Message{}, err
	}
	msg.ID = uuid.New().String()
	msg.Timestamp = now.UTC()
	if msg.Metadata != nil {
		citations := make([]string, len(msg.Metadata.Citations))
		copy(citations, msg.Metadata.Citations)
		msg.Metadata = &Metadata{Citations: citations}
	}
	return msg, nil
}

// unavailable wraps a backend error so callers can match ErrStorageUnavailable
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
