package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mielski/chores/internal/core"
)

// fileDocument is the on-disk shape of one scope inside the shared file.
type fileDocument struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// FileBackend keeps every scope in one flat JSON file, the way the
// original household tracker stored its state. Writes go through a
// temp file and rename so a crash never leaves a partial document. A
// process-wide mutex serializes access; cross-device concurrency is
// still caught by the per-scope version check.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates the backing file's directory if needed. The
// file itself is created lazily on first write.
func NewFileBackend(path string) (*FileBackend, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, core.NewStorageError("init", false, fmt.Errorf("create state directory: %w", err))
		}
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Read(ctx context.Context, scope string) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scopes, err := b.load(ctx)
	if err != nil {
		return Document{}, err
	}
	doc, ok := scopes[scope]
	if !ok {
		return Document{}, fmt.Errorf("read scope %q: %w", scope, core.ErrNotFound)
	}
	return Document{Scope: scope, Version: doc.Version, Data: doc.Data}, nil
}

func (b *FileBackend) Write(ctx context.Context, scope string, data json.RawMessage, expectedVersion int64) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scopes, err := b.load(ctx)
	if err != nil {
		return Document{}, err
	}

	current, exists := scopes[scope]
	switch {
	case expectedVersion == 0 && exists:
		return Document{}, fmt.Errorf("create scope %q: document exists at version %d: %w", scope, current.Version, core.ErrConflict)
	case expectedVersion != 0 && !exists:
		return Document{}, fmt.Errorf("write scope %q: document missing, expected version %d: %w", scope, expectedVersion, core.ErrConflict)
	case expectedVersion != 0 && current.Version != expectedVersion:
		return Document{}, fmt.Errorf("write scope %q: stored version %d, expected %d: %w", scope, current.Version, expectedVersion, core.ErrConflict)
	}

	next := fileDocument{Version: expectedVersion + 1, Data: data}
	scopes[scope] = next
	if err := b.save(ctx, scopes); err != nil {
		return Document{}, err
	}
	return Document{Scope: scope, Version: next.Version, Data: data}, nil
}

func (b *FileBackend) Reset(ctx context.Context, scope string, data json.RawMessage) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scopes, err := b.load(ctx)
	if err != nil {
		return Document{}, err
	}
	next := fileDocument{Version: scopes[scope].Version + 1, Data: data}
	scopes[scope] = next
	if err := b.save(ctx, scopes); err != nil {
		return Document{}, err
	}
	return Document{Scope: scope, Version: next.Version, Data: data}, nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) load(ctx context.Context) (map[string]fileDocument, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]fileDocument{}, nil
	}
	if err != nil {
		return nil, core.NewStorageError("read", true, fmt.Errorf("read %s: %w", b.path, err))
	}
	if len(raw) == 0 {
		return map[string]fileDocument{}, nil
	}
	var scopes map[string]fileDocument
	if err := json.Unmarshal(raw, &scopes); err != nil {
		// A corrupt state file cannot be healed by retrying.
		return nil, core.NewStorageError("read", false, fmt.Errorf("decode %s: %w", b.path, err))
	}
	slog.DebugContext(ctx, "State file loaded", "path", b.path, "scopes", len(scopes))
	return scopes, nil
}

func (b *FileBackend) save(ctx context.Context, scopes map[string]fileDocument) error {
	raw, err := json.MarshalIndent(scopes, "", "  ")
	if err != nil {
		return core.NewStorageError("write", false, fmt.Errorf("encode state: %w", err))
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return core.NewStorageError("write", true, fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return core.NewStorageError("write", true, fmt.Errorf("rename %s: %w", tmp, err))
	}
	slog.DebugContext(ctx, "State file saved", "path", b.path, "scopes", len(scopes))
	return nil
}
