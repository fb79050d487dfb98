// Package services orchestrates the engine's stores: chore state with
// session undo history, the allowance ledger, and event publishing.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mielski/chores/internal/allowance"
	"github.com/mielski/chores/internal/core"
	"github.com/mielski/chores/internal/state"
	"github.com/mielski/chores/internal/undo"
)

// EventPublisher announces committed writes to interested consumers.
// The AMQP client satisfies it.
type EventPublisher interface {
	PublishStateChanged(ctx context.Context, userID string, version int64) error
	PublishTransactionRecorded(ctx context.Context, userID, txID string, amount core.Cents, txType core.TransactionType, balance core.Cents) error
}

// ChoreService coordinates chore-state writes with the per-user undo
// history and publishes change events. Publishing is best-effort: a
// failed publish never fails the originating request, the state is
// already committed.
type ChoreService struct {
	states    *state.Store
	ledger    *allowance.Ledger
	publisher EventPublisher
	undoDepth int

	mu       sync.Mutex
	sessions map[string]*undo.Stack[[]core.ChoreEntry]
}

func NewChoreService(states *state.Store, ledger *allowance.Ledger, publisher EventPublisher, undoDepth int) *ChoreService {
	if undoDepth <= 0 {
		undoDepth = undo.DefaultCapacity
	}
	return &ChoreService{
		states:    states,
		ledger:    ledger,
		publisher: publisher,
		undoDepth: undoDepth,
		sessions:  make(map[string]*undo.Stack[[]core.ChoreEntry]),
	}
}

// Ledger exposes the allowance ledger for the HTTP layer.
func (s *ChoreService) Ledger() *allowance.Ledger { return s.ledger }

func (s *ChoreService) GetState(ctx context.Context, userID string) (core.UserState, error) {
	return s.states.Get(ctx, userID)
}

// SetState replaces the user's chore list and records a snapshot in the
// session undo history. The first mutation of a session seeds the
// history with the pre-mutation state so it is immediately undoable.
func (s *ChoreService) SetState(ctx context.Context, userID string, chores []core.ChoreEntry) (core.UserState, error) {
	stack := s.session(userID)
	if stack.Depth() == 0 {
		current, err := s.states.Get(ctx, userID)
		if err != nil {
			return core.UserState{}, err
		}
		stack.Push(current.ChoreList)
	}

	updated, err := s.states.Set(ctx, userID, chores)
	if err != nil {
		return core.UserState{}, err
	}
	stack.Push(updated.ChoreList)

	s.publishStateChanged(ctx, userID, updated.Version)
	return updated, nil
}

// ResetState clears the chore list. The reset counts as a regular
// mutation for undo purposes.
func (s *ChoreService) ResetState(ctx context.Context, userID string) (core.UserState, error) {
	stack := s.session(userID)
	if stack.Depth() == 0 {
		current, err := s.states.Get(ctx, userID)
		if err != nil {
			return core.UserState{}, err
		}
		stack.Push(current.ChoreList)
	}

	updated, err := s.states.Reset(ctx, userID)
	if err != nil {
		return core.UserState{}, err
	}
	stack.Push(updated.ChoreList)

	s.publishStateChanged(ctx, userID, updated.Version)
	return updated, nil
}

// Undo restores the previous snapshot from the session history. The
// restore is written through the same version-checked path as any
// other write, so an undo racing a newer write from another device
// loses the race instead of silently clobbering it.
func (s *ChoreService) Undo(ctx context.Context, userID string) (core.UserState, error) {
	stack := s.session(userID)
	if !stack.CanUndo() {
		return core.UserState{}, fmt.Errorf("undo for %q: %w", userID, core.ErrNothingToUndo)
	}

	popped, _ := stack.Pop()
	previous, _ := stack.Peek()

	updated, err := s.states.Set(ctx, userID, previous)
	if err != nil {
		// Restore the history so the failed undo can be retried.
		stack.Push(popped)
		return core.UserState{}, fmt.Errorf("undo for %q: %w", userID, err)
	}

	slog.InfoContext(ctx, "State undone",
		"user", userID, "version", updated.Version, "chores", len(updated.ChoreList))
	s.publishStateChanged(ctx, userID, updated.Version)
	return updated, nil
}

// CanUndo reports whether the session holds a previous snapshot.
func (s *ChoreService) CanUndo(userID string) bool {
	return s.session(userID).CanUndo()
}

// RecordTransaction appends a ledger transaction and publishes the
// ledger event.
func (s *ChoreService) RecordTransaction(ctx context.Context, userID string, amount core.Cents, txType core.TransactionType, description string) (core.Account, error) {
	account, err := s.ledger.AppendTransaction(ctx, userID, amount, txType, description)
	if err != nil {
		return core.Account{}, err
	}

	last := account.Transactions[len(account.Transactions)-1]
	s.publishTransaction(ctx, userID, last, account.CurrentBalanceCents)
	return account, nil
}

// UndoTransaction removes the most recent ledger transaction.
func (s *ChoreService) UndoTransaction(ctx context.Context, userID string) (core.Account, error) {
	return s.ledger.UndoLastTransaction(ctx, userID)
}

func (s *ChoreService) session(userID string) *undo.Stack[[]core.ChoreEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, ok := s.sessions[userID]
	if !ok {
		stack = undo.NewStack[[]core.ChoreEntry](s.undoDepth)
		s.sessions[userID] = stack
	}
	return stack
}

func (s *ChoreService) publishStateChanged(ctx context.Context, userID string, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStateChanged(ctx, userID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish state change event",
			"user", userID, "version", version, "error", err)
	}
}

func (s *ChoreService) publishTransaction(ctx context.Context, userID string, tx core.Transaction, balance core.Cents) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, userID, tx.ID, tx.AmountCents, tx.Type, balance); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"user", userID, "tx_id", tx.ID, "error", err)
	}
}

// IsNothingToUndo reports whether err is the no-undo-history error.
func IsNothingToUndo(err error) bool {
	return errors.Is(err, core.ErrNothingToUndo)
}
