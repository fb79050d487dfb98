package storage

import (
	"fmt"
	"log/slog"
)

// BackendType selects the concrete storage implementation. The choice
// is made once at process start from configuration, never by runtime
// type inspection.
type BackendType string

const (
	FileBackendType   BackendType = "file"
	SQLiteBackendType BackendType = "sqlite"
)

func (bt BackendType) String() string { return string(bt) }

// IsValid returns true if the backend type is valid.
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackendType, SQLiteBackendType:
		return true
	default:
		return false
	}
}

// FactoryConfig holds what the factory needs to build either backend.
type FactoryConfig struct {
	Type          BackendType
	StateFilePath string
	SQLiteDBPath  string
}

// NewBackend builds the configured backend.
func NewBackend(cfg FactoryConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case FileBackendType:
		backend, err := NewFileBackend(cfg.StateFilePath)
		if err != nil {
			return nil, fmt.Errorf("initialize file backend: %w", err)
		}
		logger.Info("Initialized file backend", "path", cfg.StateFilePath)
		return backend, nil
	case SQLiteBackendType:
		backend, err := NewSQLiteBackend(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return backend, nil
	default:
		return nil, fmt.Errorf("invalid backend type: %q", cfg.Type)
	}
}
