package core

import (
	"strings"
	"time"
)

const (
	TxInitial   TransactionType = "initial"
	TxAllowance TransactionType = "allowance"
	TxBonus     TransactionType = "bonus"
	TxManual    TransactionType = "manual"
)

type (
	TransactionType string

	// Date is a calendar date without a time component. It marshals as
	// an ISO date (YYYY-MM-DD) on the wire.
	Date struct {
		time.Time
	}

	// Cents is a monetary amount in integer cents. Calculations never
	// touch floating point; Euros is for display only.
	Cents int64

	// ChoreEntry is a single completed chore. Entries are immutable
	// once recorded; storage order is insertion order.
	ChoreEntry struct {
		Name string `json:"name"`
		Date Date   `json:"date"`
	}

	// UserState is the canonical chore state for one household member.
	// Version mirrors the storage document version and increments on
	// every successful write.
	UserState struct {
		ChoreList []ChoreEntry `json:"choreList"`
		Version   int64        `json:"version"`
	}

	// AllowanceSettings drives both the weekly chore target and the
	// bonus formula. All fields must be non-negative.
	AllowanceSettings struct {
		WeeklyAllowanceCents   Cents `json:"weeklyAllowanceCents"`
		TasksPerWeek           int   `json:"tasksPerWeek"`
		BonusPerExtraTaskCents Cents `json:"bonusPerExtraTaskCents"`
		MaximumExtraTasks      int   `json:"maximumExtraTasks"`
	}

	// Transaction is one append-only ledger entry. Amounts are signed;
	// zero is only valid for the initial entry.
	Transaction struct {
		ID          string          `json:"id"`
		AmountCents Cents           `json:"amountCents"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description,omitempty"`
		Timestamp   time.Time       `json:"timestamp"`
	}

	// Account is the allowance account for one household member.
	// CurrentBalanceCents always equals the sum of transaction amounts;
	// it is never mutated except through transaction append or removal.
	// Account and its transactions persist as one document so both are
	// written together or not at all.
	Account struct {
		ID                  string            `json:"id"`
		CurrentBalanceCents Cents             `json:"currentBalanceCents"`
		Currency            string            `json:"currency"`
		Settings            AllowanceSettings `json:"settings"`
		Transactions        []Transaction     `json:"transactions"`
		LastUpdated         time.Time         `json:"lastUpdated"`
		Version             int64             `json:"version"`
	}
)

const isoDate = "2006-01-02"

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return Date{}, ErrInvalidChoreDate
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(isoDate) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidChoreDate
	}
	return nil
}

func (e ChoreEntry) Validate() error {
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyChoreName
	}
	if len(e.Name) > 200 {
		return ErrChoreNameTooLong
	}
	return e.Date.Validate()
}

// ValidateChoreList validates every entry of a prospective chore list.
func ValidateChoreList(chores []ChoreEntry) error {
	for _, c := range chores {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s AllowanceSettings) Validate() error {
	if s.WeeklyAllowanceCents < 0 || s.BonusPerExtraTaskCents < 0 {
		return ErrNegativeSetting
	}
	if s.TasksPerWeek < 0 || s.MaximumExtraTasks < 0 {
		return ErrNegativeSetting
	}
	return nil
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TxInitial, TxAllowance, TxBonus, TxManual:
		return true
	default:
		return false
	}
}

// SumTransactions returns the signed sum of all transaction amounts.
// The account balance invariant compares against this value.
func SumTransactions(txs []Transaction) Cents {
	var total Cents
	for _, tx := range txs {
		total += tx.AmountCents
	}
	return total
}
