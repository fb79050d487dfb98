package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mielski/chores/internal/core"
)

// RolloverProcessor closes out the chore week: it pays each configured
// user their allowance plus any earned bonus into the ledger, then
// clears the chore list for the new week.
type RolloverProcessor struct {
	service *ChoreService
	users   []string
}

func NewRolloverProcessor(service *ChoreService, users []string) *RolloverProcessor {
	return &RolloverProcessor{service: service, users: users}
}

// rolloverPeriod tags a payout with the ISO week it settles. The tag
// makes the payout idempotent: a retry after a partial failure can see
// that this week was already paid.
func rolloverPeriod(now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// ProcessAll rolls over every configured user. Users are independent,
// so they are processed concurrently and one user's failure never
// blocks the others; every user is attempted and the first failure is
// returned alongside the count of clean rollovers.
func (p *RolloverProcessor) ProcessAll(ctx context.Context, now time.Time) (int, error) {
	if p.service == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	slog.InfoContext(ctx, "Processing weekly rollover",
		"users", len(p.users),
		"period", rolloverPeriod(now))

	var (
		mu        sync.Mutex
		processed int
		g         errgroup.Group
	)
	g.SetLimit(4)

	for _, user := range p.users {
		g.Go(func() error {
			if err := p.processUser(ctx, user, now); err != nil {
				slog.ErrorContext(ctx, "Rollover failed for user",
					"user", user, "error", err)
				return fmt.Errorf("roll over %s: %w", user, err)
			}
			mu.Lock()
			processed++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	slog.InfoContext(ctx, "Weekly rollover complete",
		"processed", processed, "total", len(p.users))
	return processed, err
}

// processUser pays out first and resets second. The payout carries the
// period tag and is skipped when the ledger already holds this week's
// allowance, so a retry after a failed reset clears the leftover
// chores without paying twice. A zero payout week degrades to a plain
// reset.
func (p *RolloverProcessor) processUser(ctx context.Context, userID string, now time.Time) error {
	period := rolloverPeriod(now)

	paid, err := p.alreadyPaid(ctx, userID, period)
	if err != nil {
		return fmt.Errorf("check payout for period %s: %w", period, err)
	}

	if !paid {
		summary, err := p.service.Ledger().WeeklySummary(ctx, userID)
		if err != nil {
			return fmt.Errorf("weekly summary: %w", err)
		}
		if summary.TotalCents > 0 {
			description := "weekly allowance " + period
			if summary.BonusCents > 0 {
				description = fmt.Sprintf("weekly allowance %s + bonus for %d extra chores", period, summary.ExtraTasks)
			}
			account, err := p.service.RecordTransaction(ctx, userID, summary.TotalCents, core.TxAllowance, description)
			if err != nil {
				return fmt.Errorf("pay allowance: %w", err)
			}
			slog.InfoContext(ctx, "Allowance paid",
				"user", userID,
				"period", period,
				"amount_cents", int64(summary.TotalCents),
				"bonus_cents", int64(summary.BonusCents),
				"balance_cents", int64(account.CurrentBalanceCents))
		}
	}

	if _, err := p.service.ResetState(ctx, userID); err != nil {
		return fmt.Errorf("reset chores: %w", err)
	}
	return nil
}

// alreadyPaid reports whether an allowance payout tagged with period is
// on the ledger.
func (p *RolloverProcessor) alreadyPaid(ctx context.Context, userID, period string) (bool, error) {
	account, err := p.service.Ledger().GetAccount(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, tx := range account.Transactions {
		if tx.Type == core.TxAllowance && strings.Contains(tx.Description, period) {
			return true, nil
		}
	}
	return false, nil
}
