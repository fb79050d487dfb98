// Package state owns the canonical per-user chore state. All writes go
// through a version-checked compare-and-swap against the storage
// backend; a lost race is retried once and then surfaced, so the last
// writer always observes the freshest version or fails explicitly.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mielski/chores/internal/core"
	"github.com/mielski/chores/internal/storage"
)

// stateDocument is the persisted payload; the version lives on the
// storage document, not in the payload.
type stateDocument struct {
	ChoreList []core.ChoreEntry `json:"choreList"`
}

type Store struct {
	backend storage.Backend
}

func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Get returns the user's current state, lazily creating the documented
// default (empty chore list, version 1) on first access.
func (s *Store) Get(ctx context.Context, userID string) (core.UserState, error) {
	doc, err := s.backend.Read(ctx, storage.StateScope(userID))
	if errors.Is(err, core.ErrNotFound) {
		return s.create(ctx, userID)
	}
	if err != nil {
		return core.UserState{}, fmt.Errorf("get state for %q: %w", userID, err)
	}
	return decode(doc)
}

// Set validates and persists a new chore list. On a version conflict it
// re-reads once and retries on top of the fresh version; a second
// conflict is returned to the caller. Chore entries are historical
// facts, so the new list replaces the old wholesale.
func (s *Store) Set(ctx context.Context, userID string, chores []core.ChoreEntry) (core.UserState, error) {
	if err := core.ValidateChoreList(chores); err != nil {
		return core.UserState{}, fmt.Errorf("set state for %q: %w", userID, err)
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return core.UserState{}, err
	}

	next, err := s.write(ctx, userID, chores, current.Version)
	if errors.Is(err, core.ErrConflict) {
		fresh, readErr := s.Get(ctx, userID)
		if readErr != nil {
			return core.UserState{}, readErr
		}
		slog.InfoContext(ctx, "State write conflict, retrying once",
			"user", userID, "stale_version", current.Version, "fresh_version", fresh.Version)
		next, err = s.write(ctx, userID, chores, fresh.Version)
	}
	if err != nil {
		return core.UserState{}, fmt.Errorf("set state for %q: %w", userID, err)
	}
	return next, nil
}

// Reset overwrites the chore list with an empty one and bumps the
// version. Used for the weekly rollover.
func (s *Store) Reset(ctx context.Context, userID string) (core.UserState, error) {
	data, err := encode(nil)
	if err != nil {
		return core.UserState{}, err
	}
	doc, err := s.backend.Reset(ctx, storage.StateScope(userID), data)
	if err != nil {
		return core.UserState{}, fmt.Errorf("reset state for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "State reset", "user", userID, "version", doc.Version)
	return decode(doc)
}

func (s *Store) create(ctx context.Context, userID string) (core.UserState, error) {
	state, err := s.write(ctx, userID, nil, 0)
	if errors.Is(err, core.ErrConflict) {
		// Another device created the default concurrently; theirs wins.
		doc, readErr := s.backend.Read(ctx, storage.StateScope(userID))
		if readErr != nil {
			return core.UserState{}, fmt.Errorf("get state for %q: %w", userID, readErr)
		}
		return decode(doc)
	}
	if err != nil {
		return core.UserState{}, fmt.Errorf("create state for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "State created with defaults", "user", userID)
	return state, nil
}

func (s *Store) write(ctx context.Context, userID string, chores []core.ChoreEntry, expectedVersion int64) (core.UserState, error) {
	data, err := encode(chores)
	if err != nil {
		return core.UserState{}, err
	}
	doc, err := s.backend.Write(ctx, storage.StateScope(userID), data, expectedVersion)
	if err != nil {
		return core.UserState{}, err
	}
	return decode(doc)
}

func encode(chores []core.ChoreEntry) (json.RawMessage, error) {
	if chores == nil {
		chores = []core.ChoreEntry{}
	}
	data, err := json.Marshal(stateDocument{ChoreList: chores})
	if err != nil {
		return nil, fmt.Errorf("encode state document: %w", err)
	}
	return data, nil
}

func decode(doc storage.Document) (core.UserState, error) {
	var payload stateDocument
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return core.UserState{}, fmt.Errorf("decode state document %q: %w", doc.Scope, err)
	}
	if payload.ChoreList == nil {
		payload.ChoreList = []core.ChoreEntry{}
	}
	return core.UserState{ChoreList: payload.ChoreList, Version: doc.Version}, nil
}
