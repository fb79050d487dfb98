package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mielski/chores/internal/core"
)

// The two implementations must be behaviorally indistinguishable, so
// both run the same contract suite.

func TestFileBackendContract(t *testing.T) {
	runBackendContract(t, func(t *testing.T) Backend {
		b, err := NewFileBackend(filepath.Join(t.TempDir(), "household_state.json"))
		if err != nil {
			t.Fatalf("new file backend: %v", err)
		}
		return b
	})
}

func TestSQLiteBackendContract(t *testing.T) {
	runBackendContract(t, func(t *testing.T) Backend {
		b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "chores.db"))
		if err != nil {
			t.Fatalf("new sqlite backend: %v", err)
		}
		return b
	})
}

func runBackendContract(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()
	doc := func(s string) json.RawMessage { return json.RawMessage(s) }

	t.Run("read missing scope", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		_, err := b.Read(ctx, StateScope("Milou"))
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create then read", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		created, err := b.Write(ctx, StateScope("Milou"), doc(`{"choreList":[]}`), 0)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.Version != 1 {
			t.Fatalf("expected version 1, got %d", created.Version)
		}

		read, err := b.Read(ctx, StateScope("Milou"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if read.Version != 1 || string(read.Data) != `{"choreList":[]}` {
			t.Fatalf("unexpected document: %+v", read)
		}
	})

	t.Run("create over existing conflicts", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{}`), 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{}`), 0); !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("versions increase strictly", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		var version int64
		for i := 0; i < 5; i++ {
			next, err := b.Write(ctx, StateScope("Luca"), doc(`{"i":`+string(rune('0'+i))+`}`), version)
			if err != nil {
				t.Fatalf("write %d: %v", i, err)
			}
			if next.Version != version+1 {
				t.Fatalf("expected version %d, got %d", version+1, next.Version)
			}
			version = next.Version
		}
	})

	t.Run("stale write conflicts", func(t *testing.T) {
		// Scenario: two devices read version 1; device A writes to
		// version 2; device B's write with expectedVersion 1 must fail.
		b := newBackend(t)
		defer b.Close()

		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{"n":0}`), 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{"n":1}`), 1); err != nil {
			t.Fatalf("device A write: %v", err)
		}
		_, err := b.Write(ctx, StateScope("Milou"), doc(`{"n":2}`), 1)
		if !errors.Is(err, core.ErrConflict) {
			t.Fatalf("expected ErrConflict for device B, got %v", err)
		}

		read, err := b.Read(ctx, StateScope("Milou"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(read.Data) != `{"n":1}` {
			t.Fatalf("losing write must not overwrite, got %s", read.Data)
		}
	})

	t.Run("reset replaces unconditionally", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{"n":0}`), 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{"n":1}`), 1); err != nil {
			t.Fatalf("write: %v", err)
		}

		reset, err := b.Reset(ctx, StateScope("Milou"), doc(`{"choreList":[]}`))
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
		if reset.Version <= 2 {
			t.Fatalf("reset must bump past stored version, got %d", reset.Version)
		}
	})

	t.Run("reset creates missing scope", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		reset, err := b.Reset(ctx, AccountScope("Luca"), doc(`{}`))
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
		if reset.Version != 1 {
			t.Fatalf("expected version 1, got %d", reset.Version)
		}
	})

	t.Run("scopes are independent", func(t *testing.T) {
		b := newBackend(t)
		defer b.Close()

		if _, err := b.Write(ctx, StateScope("Milou"), doc(`{"a":1}`), 0); err != nil {
			t.Fatalf("create state: %v", err)
		}
		if _, err := b.Write(ctx, AccountScope("Milou"), doc(`{"b":2}`), 0); err != nil {
			t.Fatalf("create account: %v", err)
		}

		state, _ := b.Read(ctx, StateScope("Milou"))
		account, _ := b.Read(ctx, AccountScope("Milou"))
		if string(state.Data) != `{"a":1}` || string(account.Data) != `{"b":2}` {
			t.Fatalf("scope bleed: state=%s account=%s", state.Data, account.Data)
		}
	})
}

func TestNewBackendFactory(t *testing.T) {
	cases := []struct {
		name string
		cfg  FactoryConfig
		ok   bool
	}{
		{"file", FactoryConfig{Type: FileBackendType, StateFilePath: filepath.Join(t.TempDir(), "s.json")}, true},
		{"sqlite", FactoryConfig{Type: SQLiteBackendType, SQLiteDBPath: filepath.Join(t.TempDir(), "c.db")}, true},
		{"unknown", FactoryConfig{Type: "cosmos"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewBackend(tc.cfg, nil)
			if tc.ok {
				if err != nil {
					t.Fatalf("expected backend, got %v", err)
				}
				b.Close()
			} else if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
