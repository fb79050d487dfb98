// Package allowance owns the per-user allowance account: an append-only
// transaction list from which the balance is derived, the weekly bonus
// computation, and settings updates. The account and its transactions
// persist as one storage document, so a balance mutation and its log
// append are always written together or not at all.
package allowance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mielski/chores/internal/core"
	"github.com/mielski/chores/internal/storage"
)

// ChoreCounter supplies the completed-chore count for the bonus
// formula. The state store satisfies it.
type ChoreCounter interface {
	Get(ctx context.Context, userID string) (core.UserState, error)
}

// accountDocument is the persisted payload; the version lives on the
// storage document.
type accountDocument struct {
	ID                  string                 `json:"id"`
	CurrentBalanceCents core.Cents             `json:"currentBalanceCents"`
	Currency            string                 `json:"currency"`
	Settings            core.AllowanceSettings `json:"settings"`
	Transactions        []core.Transaction     `json:"transactions"`
	LastUpdated         time.Time              `json:"lastUpdated"`
}

type Ledger struct {
	backend  storage.Backend
	chores   ChoreCounter
	defaults core.AllowanceSettings
	currency string

	// Injectable for tests.
	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides transaction ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func New(backend storage.Backend, chores ChoreCounter, defaults core.AllowanceSettings, currency string, opts ...Option) *Ledger {
	l := &Ledger{
		backend:  backend,
		chores:   chores,
		defaults: defaults,
		currency: currency,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetAccount returns the user's account, lazily creating the default
// (balance 0, one zero-amount initial transaction) on first access.
func (l *Ledger) GetAccount(ctx context.Context, userID string) (core.Account, error) {
	doc, err := l.backend.Read(ctx, storage.AccountScope(userID))
	if errors.Is(err, core.ErrNotFound) {
		return l.create(ctx, userID)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account for %q: %w", userID, err)
	}
	return decode(doc)
}

// ListTransactions returns up to limit transactions, most recent first.
// A non-positive limit falls back to the default of 20.
func (l *Ledger) ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	txs := account.Transactions
	out := make([]core.Transaction, 0, limit)
	for i := len(txs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, txs[i])
	}
	return out, nil
}

// AppendTransaction appends a transaction and moves the balance by its
// exact amount. Zero amounts are invalid input, not silent no-ops.
// Money operations are never auto-retried: a version conflict surfaces
// to the caller.
func (l *Ledger) AppendTransaction(ctx context.Context, userID string, amount core.Cents, txType core.TransactionType, description string) (core.Account, error) {
	if amount == 0 {
		return core.Account{}, fmt.Errorf("append transaction for %q: %w", userID, core.ErrZeroAmount)
	}
	if txType == core.TxInitial || !txType.IsValid() {
		return core.Account{}, fmt.Errorf("append transaction for %q: type %q: %w", userID, txType, core.ErrInvalidTransactionType)
	}

	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}

	tx := core.Transaction{
		ID:          l.newID(),
		AmountCents: amount,
		Type:        txType,
		Description: strings.TrimSpace(description),
		Timestamp:   l.now().UTC(),
	}
	account.Transactions = append(account.Transactions, tx)
	account.CurrentBalanceCents += amount

	updated, err := l.persist(ctx, userID, account)
	if err != nil {
		return core.Account{}, fmt.Errorf("append transaction for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "Transaction recorded",
		"user", userID, "tx_id", tx.ID, "type", string(txType),
		"amount_cents", int64(amount), "balance_cents", int64(updated.CurrentBalanceCents))
	return updated, nil
}

// UndoLastTransaction removes the most recently appended transaction
// and decrements the balance by its exact amount. The initial entry is
// not undoable.
func (l *Ledger) UndoLastTransaction(ctx context.Context, userID string) (core.Account, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}

	n := len(account.Transactions)
	if n == 0 || (n == 1 && account.Transactions[0].Type == core.TxInitial) {
		return core.Account{}, fmt.Errorf("undo transaction for %q: no undoable transaction: %w", userID, core.ErrNotFound)
	}

	last := account.Transactions[n-1]
	account.Transactions = account.Transactions[:n-1]
	account.CurrentBalanceCents -= last.AmountCents

	updated, err := l.persist(ctx, userID, account)
	if err != nil {
		return core.Account{}, fmt.Errorf("undo transaction for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "Transaction undone",
		"user", userID, "tx_id", last.ID, "amount_cents", int64(last.AmountCents),
		"balance_cents", int64(updated.CurrentBalanceCents))
	return updated, nil
}

// UpdateSettings validates and persists new allowance settings. Past
// transactions are never altered retroactively.
func (l *Ledger) UpdateSettings(ctx context.Context, userID string, settings core.AllowanceSettings) (core.Account, error) {
	if err := settings.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("update settings for %q: %w", userID, err)
	}

	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}
	account.Settings = settings

	updated, err := l.persist(ctx, userID, account)
	if err != nil {
		return core.Account{}, fmt.Errorf("update settings for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "Settings updated", "user", userID, "tasks_per_week", settings.TasksPerWeek)
	return updated, nil
}

// WeeklySummary computes the bonus breakdown from the current chore
// count and settings. It is read-only and safe to call on every
// display refresh.
func (l *Ledger) WeeklySummary(ctx context.Context, userID string) (core.BonusBreakdown, error) {
	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return core.BonusBreakdown{}, err
	}
	state, err := l.chores.Get(ctx, userID)
	if err != nil {
		return core.BonusBreakdown{}, err
	}
	return core.ComputeWeeklyBonus(len(state.ChoreList), account.Settings), nil
}

func (l *Ledger) create(ctx context.Context, userID string) (core.Account, error) {
	account := accountDocument{
		ID:                  userID,
		CurrentBalanceCents: 0,
		Currency:            l.currency,
		Settings:            l.defaults,
		Transactions: []core.Transaction{{
			ID:          l.newID(),
			AmountCents: 0,
			Type:        core.TxInitial,
			Description: "account opened",
			Timestamp:   l.now().UTC(),
		}},
		LastUpdated: l.now().UTC(),
	}
	data, err := json.Marshal(account)
	if err != nil {
		return core.Account{}, fmt.Errorf("encode account for %q: %w", userID, err)
	}

	doc, err := l.backend.Write(ctx, storage.AccountScope(userID), data, 0)
	if errors.Is(err, core.ErrConflict) {
		// Concurrent lazy create from another device; theirs wins.
		existing, readErr := l.backend.Read(ctx, storage.AccountScope(userID))
		if readErr != nil {
			return core.Account{}, fmt.Errorf("get account for %q: %w", userID, readErr)
		}
		return decode(existing)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("create account for %q: %w", userID, err)
	}
	slog.InfoContext(ctx, "Account created with defaults", "user", userID, "currency", l.currency)
	return decode(doc)
}

// persist writes the account back with a CAS on the version it was read
// at, verifying the balance invariant first. A divergent balance aborts
// the write: the ledger must never persist a state where the balance
// differs from the transaction sum.
func (l *Ledger) persist(ctx context.Context, userID string, account core.Account) (core.Account, error) {
	if got := core.SumTransactions(account.Transactions); got != account.CurrentBalanceCents {
		return core.Account{}, fmt.Errorf("balance invariant violated for %q: balance %d, transaction sum %d", userID, account.CurrentBalanceCents, got)
	}

	payload := accountDocument{
		ID:                  account.ID,
		CurrentBalanceCents: account.CurrentBalanceCents,
		Currency:            account.Currency,
		Settings:            account.Settings,
		Transactions:        account.Transactions,
		LastUpdated:         l.now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return core.Account{}, fmt.Errorf("encode account: %w", err)
	}

	doc, err := l.backend.Write(ctx, storage.AccountScope(userID), data, account.Version)
	if err != nil {
		return core.Account{}, err
	}
	return decode(doc)
}

func decode(doc storage.Document) (core.Account, error) {
	var payload accountDocument
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return core.Account{}, fmt.Errorf("decode account document %q: %w", doc.Scope, err)
	}
	return core.Account{
		ID:                  payload.ID,
		CurrentBalanceCents: payload.CurrentBalanceCents,
		Currency:            payload.Currency,
		Settings:            payload.Settings,
		Transactions:        payload.Transactions,
		LastUpdated:         payload.LastUpdated,
		Version:             doc.Version,
	}, nil
}
