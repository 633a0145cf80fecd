// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on copy isolation and clock handling specific to the in-memory implementation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) SessionStore {
		return NewMockStore()
	})
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	id := NewSessionID()

	_, err := s.SaveMessage(ctx, id, Message{
		Role:     RoleModel,
		Content:  "Estambul",
		Metadata: &Metadata{Citations: []string{"gs://a.pdf"}},
	})
	require.NoError(t, err)

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	msgs[0].Content = "changed"
	msgs[0].Metadata.Citations[0] = "gs://changed.pdf"

	again, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Estambul", again[0].Content)
	assert.Equal(t, "gs://a.pdf", again[0].Metadata.Citations[0])
}

func TestMockStore_CallerMetadataIsNotAliased(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	id := NewSessionID()

	citations := []string{"gs://a.pdf"}
	_, err := s.SaveMessage(ctx, id, Message{Role: RoleModel, Content: "x", Metadata: &Metadata{Citations: citations}})
	require.NoError(t, err)
	citations[0] = "gs://mutated.pdf"

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "gs://a.pdf", msgs[0].Metadata.Citations[0])
}

func TestMockStore_ClockGoingBackwards(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	id := NewSessionID()

	later := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return later }
	_, err := s.SaveMessage(ctx, id, Message{Role: RoleUser, Content: "first"})
	require.NoError(t, err)

	s.now = func() time.Time { return later.Add(-time.Minute) }
	_, err = s.SaveMessage(ctx, id, Message{Role: RoleModel, Content: "second"})
	require.NoError(t, err)

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp))
}
