// Package store provides persistence implementations for execution records.
// The ExecutionStore interface is defined in the parent flowengine package
// to avoid import cycles between the engine and the store backends.
//
// This package contains concrete implementations:
//   - DynamoDBStore: AWS DynamoDB backend (single-table design, schema.go)
//   - SQLiteStore: embedded SQLite backend for local deployments
//   - MemoryStore: in-memory backend for testing
package store
