package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mielski/chores/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores one row per scope in a documents table. The CAS
// write is an UPDATE guarded by the stored version; the managed-
// document behavior of the original deployment maps onto it directly.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, core.NewStorageError("init", false, fmt.Errorf("create db directory: %w", err))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, core.NewStorageError("init", false, fmt.Errorf("open sqlite database: %w", err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, core.NewStorageError("init", true, fmt.Errorf("ping database: %w", err))
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, core.NewStorageError("init", false, fmt.Errorf("run migrations: %w", err))
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read(ctx context.Context, scope string) (Document, error) {
	var (
		version int64
		data    []byte
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT version, data FROM documents WHERE scope = ?`, scope,
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("read scope %q: %w", scope, core.ErrNotFound)
	}
	if err != nil {
		return Document{}, core.NewStorageError("read", true, fmt.Errorf("select scope %q: %w", scope, err))
	}
	return Document{Scope: scope, Version: version, Data: json.RawMessage(data)}, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, scope string, data json.RawMessage, expectedVersion int64) (Document, error) {
	now := time.Now().UTC()

	if expectedVersion == 0 {
		_, err := b.db.ExecContext(ctx,
			`INSERT INTO documents (scope, version, data, updated_at) VALUES (?, 1, ?, ?)`,
			scope, []byte(data), now)
		if err != nil {
			if isUniqueViolation(err) {
				return Document{}, fmt.Errorf("create scope %q: document exists: %w", scope, core.ErrConflict)
			}
			return Document{}, core.NewStorageError("write", true, fmt.Errorf("insert scope %q: %w", scope, err))
		}
		return Document{Scope: scope, Version: 1, Data: data}, nil
	}

	res, err := b.db.ExecContext(ctx,
		`UPDATE documents SET version = ?, data = ?, updated_at = ? WHERE scope = ? AND version = ?`,
		expectedVersion+1, []byte(data), now, scope, expectedVersion)
	if err != nil {
		return Document{}, core.NewStorageError("write", true, fmt.Errorf("update scope %q: %w", scope, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Document{}, core.NewStorageError("write", true, fmt.Errorf("rows affected for scope %q: %w", scope, err))
	}
	if affected == 0 {
		return Document{}, fmt.Errorf("write scope %q: expected version %d not current: %w", scope, expectedVersion, core.ErrConflict)
	}
	return Document{Scope: scope, Version: expectedVersion + 1, Data: data}, nil
}

func (b *SQLiteBackend) Reset(ctx context.Context, scope string, data json.RawMessage) (Document, error) {
	now := time.Now().UTC()

	// Bump past any stored version in one statement so a concurrent CAS
	// writer cannot slip between the read and the replace.
	res := b.db.QueryRowContext(ctx,
		`INSERT INTO documents (scope, version, data, updated_at) VALUES (?, 1, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET version = documents.version + 1, data = excluded.data, updated_at = excluded.updated_at
		 RETURNING version`,
		scope, []byte(data), now)

	var version int64
	if err := res.Scan(&version); err != nil {
		return Document{}, core.NewStorageError("reset", true, fmt.Errorf("upsert scope %q: %w", scope, err))
	}
	return Document{Scope: scope, Version: version, Data: data}, nil
}

func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text;
	// the driver does not export a typed error for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
