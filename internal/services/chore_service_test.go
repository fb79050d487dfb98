package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mielski/chores/internal/allowance"
	"github.com/mielski/chores/internal/core"
	"github.com/mielski/chores/internal/state"
	"github.com/mielski/chores/internal/storage"
)

var serviceDefaults = core.AllowanceSettings{
	WeeklyAllowanceCents:   200,
	TasksPerWeek:           7,
	BonusPerExtraTaskCents: 15,
	MaximumExtraTasks:      5,
}

type capturingPublisher struct {
	mu          sync.Mutex
	stateEvents []int64
	txEvents    []string
}

func (p *capturingPublisher) PublishStateChanged(_ context.Context, _ string, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateEvents = append(p.stateEvents, version)
	return nil
}

func (p *capturingPublisher) PublishTransactionRecorded(_ context.Context, _, txID string, _ core.Cents, _ core.TransactionType, _ core.Cents) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txEvents = append(p.txEvents, txID)
	return nil
}

func newService(t *testing.T) (*ChoreService, *capturingPublisher) {
	t.Helper()
	backend, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "household_state.json"))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	states := state.New(backend)
	ledger := allowance.New(backend, states, serviceDefaults, "EUR",
		allowance.WithClock(func() time.Time { return time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC) }),
	)
	publisher := &capturingPublisher{}
	return NewChoreService(states, ledger, publisher, 3), publisher
}

func chores(names ...string) []core.ChoreEntry {
	out := make([]core.ChoreEntry, len(names))
	for i, name := range names {
		out[i] = core.ChoreEntry{Name: name, Date: core.NewDate(2025, 12, 8+i)}
	}
	return out
}

func TestSetStateIsUndoableImmediately(t *testing.T) {
	ctx := context.Background()
	svc, publisher := newService(t)

	if svc.CanUndo("Milou") {
		t.Fatal("fresh session should have no undo history")
	}

	updated, err := svc.SetState(ctx, "Milou", chores("dishes"))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !svc.CanUndo("Milou") {
		t.Fatal("first mutation should be undoable")
	}

	restored, err := svc.Undo(ctx, "Milou")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if len(restored.ChoreList) != 0 {
		t.Fatalf("expected empty list after undoing first set, got %+v", restored.ChoreList)
	}
	if restored.Version <= updated.Version {
		t.Fatalf("undo must bump the version: %d -> %d", updated.Version, restored.Version)
	}
	if len(publisher.stateEvents) != 2 {
		t.Fatalf("expected 2 state events, got %d", len(publisher.stateEvents))
	}
}

func TestUndoHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	lists := [][]core.ChoreEntry{
		chores("a"),
		chores("a", "b"),
		chores("a", "b", "c"),
		chores("a", "b", "c", "d"),
	}
	for _, list := range lists {
		if _, err := svc.SetState(ctx, "Milou", list); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	// Capacity 3 keeps the current state plus two older snapshots, so
	// exactly two undos are possible.
	first, err := svc.Undo(ctx, "Milou")
	if err != nil {
		t.Fatalf("first undo: %v", err)
	}
	if len(first.ChoreList) != 3 {
		t.Fatalf("expected 3 chores after first undo, got %d", len(first.ChoreList))
	}

	second, err := svc.Undo(ctx, "Milou")
	if err != nil {
		t.Fatalf("second undo: %v", err)
	}
	if len(second.ChoreList) != 2 {
		t.Fatalf("expected 2 chores after second undo, got %d", len(second.ChoreList))
	}

	if _, err := svc.Undo(ctx, "Milou"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound once history is exhausted, got %v", err)
	}
}

func TestUndoWithoutHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.Undo(ctx, "Milou"); !IsNothingToUndo(err) {
		t.Fatalf("expected nothing-to-undo error, got %v", err)
	}
}

func TestUndoHistoryIsPerUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.SetState(ctx, "Milou", chores("dishes")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if svc.CanUndo("Luca") {
		t.Fatal("Milou's history must not leak into Luca's session")
	}

	state, err := svc.GetState(ctx, "Luca")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(state.ChoreList) != 0 {
		t.Fatalf("expected Luca untouched, got %+v", state.ChoreList)
	}
}

func TestResetStateIsUndoable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.SetState(ctx, "Milou", chores("dishes", "vacuum")); err != nil {
		t.Fatalf("set: %v", err)
	}
	cleared, err := svc.ResetState(ctx, "Milou")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(cleared.ChoreList) != 0 {
		t.Fatalf("expected empty list after reset, got %+v", cleared.ChoreList)
	}

	restored, err := svc.Undo(ctx, "Milou")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if len(restored.ChoreList) != 2 {
		t.Fatalf("expected reset to be undoable, got %+v", restored.ChoreList)
	}
}

func TestRecordTransactionPublishesEvent(t *testing.T) {
	ctx := context.Background()
	svc, publisher := newService(t)

	account, err := svc.RecordTransaction(ctx, "Milou", 250, core.TxManual, "pocket money")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if account.CurrentBalanceCents != 250 {
		t.Fatalf("expected balance 250, got %d", account.CurrentBalanceCents)
	}
	if len(publisher.txEvents) != 1 {
		t.Fatalf("expected 1 transaction event, got %d", len(publisher.txEvents))
	}
}

func TestRolloverPaysAllowanceAndResets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	// 10 chores against tasksPerWeek=7, bonus 15, max 5: 2.00 + 0.45.
	entries := make([]core.ChoreEntry, 10)
	for i := range entries {
		entries[i] = core.ChoreEntry{Name: fmt.Sprintf("chore %d", i), Date: core.NewDate(2025, 12, 1+i)}
	}
	if _, err := svc.SetState(ctx, "Milou", entries); err != nil {
		t.Fatalf("seed: %v", err)
	}

	processor := NewRolloverProcessor(svc, []string{"Milou", "Luca"})
	processed, err := processor.ProcessAll(ctx, time.Date(2025, 12, 14, 6, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 users processed, got %d", processed)
	}

	account, err := svc.Ledger().GetAccount(ctx, "Milou")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.CurrentBalanceCents != 245 {
		t.Fatalf("expected balance 245 after payout, got %d", account.CurrentBalanceCents)
	}
	last := account.Transactions[len(account.Transactions)-1]
	if last.Type != core.TxAllowance || last.AmountCents != 245 {
		t.Fatalf("unexpected payout transaction: %+v", last)
	}

	state, err := svc.GetState(ctx, "Milou")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(state.ChoreList) != 0 {
		t.Fatalf("expected chore list cleared, got %+v", state.ChoreList)
	}

	// Luca never completed chores; the base allowance is still paid.
	other, err := svc.Ledger().GetAccount(ctx, "Luca")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if other.CurrentBalanceCents != 200 {
		t.Fatalf("expected base allowance 200, got %d", other.CurrentBalanceCents)
	}
}

// unreliableBackend delegates to a real backend but fails the first
// resetFailures calls to Reset with a transient storage error.
type unreliableBackend struct {
	storage.Backend
	mu            sync.Mutex
	resetFailures int
}

func (b *unreliableBackend) Reset(ctx context.Context, scope string, data json.RawMessage) (storage.Document, error) {
	b.mu.Lock()
	if b.resetFailures > 0 {
		b.resetFailures--
		b.mu.Unlock()
		return storage.Document{}, core.NewStorageError("reset", true, errors.New("disk unavailable"))
	}
	b.mu.Unlock()
	return b.Backend.Reset(ctx, scope, data)
}

func TestRolloverRetryAfterFailedResetPaysOnce(t *testing.T) {
	ctx := context.Background()

	inner, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "household_state.json"))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	backend := &unreliableBackend{Backend: inner, resetFailures: 1}
	states := state.New(backend)
	ledger := allowance.New(backend, states, serviceDefaults, "EUR",
		allowance.WithClock(func() time.Time { return time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC) }),
	)
	svc := NewChoreService(states, ledger, nil, 3)

	entries := make([]core.ChoreEntry, 10)
	for i := range entries {
		entries[i] = core.ChoreEntry{Name: fmt.Sprintf("chore %d", i), Date: core.NewDate(2025, 12, 1+i)}
	}
	if _, err := svc.SetState(ctx, "Milou", entries); err != nil {
		t.Fatalf("seed: %v", err)
	}

	processor := NewRolloverProcessor(svc, []string{"Milou"})
	now := time.Date(2025, 12, 14, 6, 0, 0, 0, time.UTC)

	// First attempt: the payout lands, the reset fails.
	processed, err := processor.ProcessAll(ctx, now)
	if err == nil {
		t.Fatal("expected the failed reset to surface")
	}
	if processed != 0 {
		t.Fatalf("expected 0 clean rollovers, got %d", processed)
	}
	account, err := svc.Ledger().GetAccount(ctx, "Milou")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.CurrentBalanceCents != 245 {
		t.Fatalf("expected payout 245 before retry, got %d", account.CurrentBalanceCents)
	}

	// Retry within the same week: the chores are cleared, but the
	// allowance is not paid a second time.
	processed, err = processor.ProcessAll(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 clean rollover on retry, got %d", processed)
	}

	account, err = svc.Ledger().GetAccount(ctx, "Milou")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.CurrentBalanceCents != 245 {
		t.Fatalf("allowance paid twice: balance %d, want 245", account.CurrentBalanceCents)
	}
	allowanceCount := 0
	for _, tx := range account.Transactions {
		if tx.Type == core.TxAllowance {
			allowanceCount++
		}
	}
	if allowanceCount != 1 {
		t.Fatalf("expected exactly one allowance transaction, got %d", allowanceCount)
	}

	state, err := svc.GetState(ctx, "Milou")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(state.ChoreList) != 0 {
		t.Fatalf("expected chore list cleared on retry, got %+v", state.ChoreList)
	}
}
