// ABOUTME: Cloud Firestore implementation of SessionStore (sessions/{id}/messages/{msg})
// ABOUTME: The client is created lazily on first use and shared for the process lifetime

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	sessionsCollection = "sessions"
	messagesCollection = "messages"
)

// firestoreMessage is the document layout under sessions/{id}/messages.
// A zero Timestamp is replaced by the server's commit time.
type firestoreMessage struct {
	Role      string             `firestore:"role"`
	Content   string             `firestore:"content"`
	Metadata  *firestoreMetadata `firestore:"metadata,omitempty"`
	Timestamp time.Time          `firestore:"timestamp,serverTimestamp"`
	Sequence  int64              `firestore:"seq"`
}

type firestoreMetadata struct {
	Citations []string `firestore:"citations"`
}

// FirestoreStore implements SessionStore on Cloud Firestore
type FirestoreStore struct {
	projectID  string
	databaseID string
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	client *firestore.Client
	dial   func(ctx context.Context) (*firestore.Client, error)
}

// NewFirestoreStore returns a store for the given project. No connection is
// made until the first read or write. An empty databaseID selects the
// project's default database.
func NewFirestoreStore(projectID, databaseID string) *FirestoreStore {
	s := &FirestoreStore{
		projectID:  projectID,
		databaseID: databaseID,
		logger:     slog.Default().With("component", "store", "driver", "firestore"),
		now:        time.Now,
	}
	s.dial = s.newClient
	return s
}

func (s *FirestoreStore) newClient(ctx context.Context) (*firestore.Client, error) {
	if s.databaseID == "" {
		return firestore.NewClient(ctx, s.projectID)
	}
	return firestore.NewClientWithDatabase(ctx, s.projectID, s.databaseID)
}

// db returns the shared client, creating it on first use. A failed attempt is
// not cached so a later request can succeed once credentials are available.
func (s *FirestoreStore) db(ctx context.Context) (*firestore.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	// The client outlives the request that happens to create it
	client, err := s.dial(context.WithoutCancel(ctx))
	if err != nil {
		return nil, unavailable("creating firestore client", err)
	}
	s.client = client
	s.logger.Info("Firestore client initialized", "project", s.projectID, "database", s.databaseID)
	return client, nil
}

// GetSession retrieves all messages of a session ordered by server timestamp.
func (s *FirestoreStore) GetSession(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	client, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(sessionsCollection).Doc(sessionID).
		Collection(messagesCollection).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	type row struct {
		msg Message
		seq int64
	}
	var rows []row

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, unavailable("querying messages", err)
		}

		var fm firestoreMessage
		if err := doc.DataTo(&fm); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", doc.Ref.ID, err)
		}

		msg := Message{
			ID:        doc.Ref.ID,
			Role:      Role(fm.Role),
			Content:   fm.Content,
			Timestamp: fm.Timestamp.UTC(),
		}
		if fm.Metadata != nil {
			citations := fm.Metadata.Citations
			if citations == nil {
				citations = []string{}
			}
			msg.Metadata = &Metadata{Citations: citations}
		}
		rows = append(rows, row{msg: msg, seq: fm.Sequence})
	}

	// Equal server timestamps fall back to write order
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].msg.Timestamp.Equal(rows[j].msg.Timestamp) {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].msg.Timestamp.Before(rows[j].msg.Timestamp)
	})

	messages := make([]Message, len(rows))
	for i, r := range rows {
		messages[i] = r.msg
	}
	return messages, nil
}

// SaveMessage appends a message document, creating the session document on
// first write. Returns the generated document id.
func (s *FirestoreStore) SaveMessage(ctx context.Context, sessionID string, msg Message) (string, error) {
	msg, err := prepareMessage(sessionID, msg, s.now())
	if err != nil {
		return "", err
	}

	client, err := s.db(ctx)
	if err != nil {
		return "", err
	}

	sessionRef := client.Collection(sessionsCollection).Doc(sessionID)
	_, err = sessionRef.Create(ctx, map[string]any{"created_at": firestore.ServerTimestamp})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return "", unavailable("creating session", err)
	}

	doc := firestoreMessage{
		Role:     string(msg.Role),
		Content:  msg.Content,
		Sequence: msg.Timestamp.UnixNano(),
	}
	if msg.Metadata != nil {
		doc.Metadata = &firestoreMetadata{Citations: msg.Metadata.Citations}
	}

	ref := sessionRef.Collection(messagesCollection).NewDoc()
	if _, err := ref.Set(ctx, doc); err != nil {
		return "", unavailable("writing message", err)
	}

	s.logger.Debug("saved message", "id", ref.ID, "session_id", sessionID, "role", msg.Role)
	return ref.ID, nil
}

// SessionCreatedAt returns the server time the session document was created.
func (s *FirestoreStore) SessionCreatedAt(ctx context.Context, sessionID string) (time.Time, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return time.Time{}, err
	}

	client, err := s.db(ctx)
	if err != nil {
		return time.Time{}, err
	}

	snap, err := client.Collection(sessionsCollection).Doc(sessionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, unavailable("reading session", err)
	}

	var rec struct {
		CreatedAt time.Time `firestore:"created_at"`
	}
	if err := snap.DataTo(&rec); err != nil {
		return time.Time{}, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	return rec.CreatedAt.UTC(), nil
}

// Close closes the client if it was ever created
func (s *FirestoreStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	s.logger.Info("closing Firestore client")
	err := s.client.Close()
	s.client = nil
	return err
}
