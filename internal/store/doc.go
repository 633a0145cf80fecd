// Package store persists conversation sessions for the gateway.
//
// # Model
//
// A session is an ordered, append-only log of messages identified by a
// canonical version-4 UUID. Each message has a role (user or model), text
// content, optional metadata carrying grounding citations, and a timestamp
// assigned by the store at write time. The session record is created
// implicitly by the first SaveMessage and never modified afterwards.
//
// # Backends
//
// SessionStore has four implementations:
//
//   - SQLiteStore: modernc.org/sqlite, WAL mode, the default
//   - PostgresStore: pgx connection pool, for shared deployments
//   - FirestoreStore: Cloud Firestore, sessions/{id}/messages/{msg}
//   - MockStore: in memory, used by tests and the "memory" driver
//
// Every backend returns messages ordered by timestamp with ties broken by
// insertion order, and wraps database failures in ErrStorageUnavailable.
//
// # Errors
//
//   - ErrInvalidSessionID: the id is not a canonical v4 UUID
//   - ErrInvalidMessage: role or content missing, or unknown role
//   - ErrStorageUnavailable: the database could not be reached or failed
//   - ErrNotFound: no session record exists (SessionInspector only)
//
// # Testing
//
// runStoreContract in store_test.go is shared by every backend. Postgres and
// Firestore runs are skipped unless TRAVELMIND_TEST_POSTGRES_URL or
// FIRESTORE_EMULATOR_HOST is set.
package store
