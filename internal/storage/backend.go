// Package storage provides the key-scoped document store the engine
// persists through. A scope is the unit of atomic read/write: one
// user's chore state, or one user's account plus transactions. Two
// interchangeable implementations satisfy the same contract, a single
// shared JSON file and a SQLite document table; callers select one at
// process start and cannot distinguish them behaviorally.
package storage

import (
	"context"
	"encoding/json"
)

// Scope name helpers. Every document key is one of these two forms.
const (
	stateScopePrefix   = "state:"
	accountScopePrefix = "account:"
)

// StateScope returns the scope key for a user's chore state document.
func StateScope(userID string) string { return stateScopePrefix + userID }

// AccountScope returns the scope key for a user's account document.
func AccountScope(userID string) string { return accountScopePrefix + userID }

// Document is one versioned JSON payload under a scope key.
type Document struct {
	Scope   string          `json:"scope"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Backend is the storage contract. All operations are atomic with
// respect to a single scope.
//
// Write is a compare-and-swap: it fails with core.ErrConflict when the
// stored version differs from expectedVersion, never silently
// overwriting. expectedVersion 0 means create-if-absent; creating over
// an existing document is also a conflict. The new document version is
// always expectedVersion+1.
//
// Reset replaces the document unconditionally, bumping the version
// past whatever is stored. Read returns core.ErrNotFound for absent
// scopes. Infrastructure failures surface as *core.StorageError.
type Backend interface {
	Read(ctx context.Context, scope string) (Document, error)
	Write(ctx context.Context, scope string, data json.RawMessage, expectedVersion int64) (Document, error)
	Reset(ctx context.Context, scope string, data json.RawMessage) (Document, error)
	Close() error
}
