// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Runs the shared contract plus file creation, reopen and ordering checks

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a file-backed SQLite store in a temp dir
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) SessionStore {
		return newTestStore(t)
	})
}

func TestSQLiteStore_InMemoryContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) SessionStore {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestSQLiteStore_ReopenKeepsMessages(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	id := NewSessionID()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = s.SaveMessage(ctx, id, Message{
		Role:     RoleModel,
		Content:  "Capadocia en globo",
		Metadata: &Metadata{Citations: []string{"gs://promos/capadocia.pdf"}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs schema creation and migrations again
	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Capadocia en globo", msgs[0].Content)
	require.NotNil(t, msgs[0].Metadata)
	assert.Equal(t, []string{"gs://promos/capadocia.pdf"}, msgs[0].Metadata.Citations)
}

func TestSQLiteStore_MigratesLegacySchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = s.db.Exec(`ALTER TABLE messages DROP COLUMN metadata_json`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	var exists int
	err = s.db.QueryRow(`SELECT 1 FROM pragma_table_info('messages') WHERE name = 'metadata_json'`).Scan(&exists)
	require.NoError(t, err)
	assert.Equal(t, 1, exists)
}

func TestSQLiteStore_SameTimestampKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewSessionID()

	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	for _, content := range []string{"primero", "segundo", "tercero"} {
		_, err := s.SaveMessage(ctx, id, Message{Role: RoleUser, Content: content})
		require.NoError(t, err)
	}

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "primero", msgs[0].Content)
	assert.Equal(t, "segundo", msgs[1].Content)
	assert.Equal(t, "tercero", msgs[2].Content)
	assert.True(t, msgs[0].Timestamp.Equal(frozen))
}

func TestSQLiteStore_SubsecondTimestampsSortChronologically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewSessionID()

	// .1 and .12 sort the wrong way as trimmed RFC3339Nano strings
	times := []time.Time{
		time.Date(2025, 3, 1, 12, 0, 5, 100_000_000, time.UTC),
		time.Date(2025, 3, 1, 12, 0, 5, 120_000_000, time.UTC),
	}
	for i, ts := range times {
		ts := ts
		s.now = func() time.Time { return ts }
		_, err := s.SaveMessage(ctx, id, Message{Role: RoleUser, Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	msgs, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
}

func TestSQLiteStore_ClosedDatabaseIsUnavailable(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err = s.GetSession(ctx, NewSessionID())
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = s.SaveMessage(ctx, NewSessionID(), Message{Role: RoleUser, Content: "hola"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
