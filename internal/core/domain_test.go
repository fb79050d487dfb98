package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestChoreEntryValidate(t *testing.T) {
	good := ChoreEntry{Name: "Take out trash", Date: NewDate(2025, 12, 10)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ChoreEntry{
		{Name: "", Date: NewDate(2025, 12, 10)},
		{Name: "   ", Date: NewDate(2025, 12, 10)},
		{Name: "Wash dishes", Date: Date{Time: time.Time{}}}, // zero date
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAllowanceSettingsValidate(t *testing.T) {
	good := AllowanceSettings{WeeklyAllowanceCents: 200, TasksPerWeek: 5, BonusPerExtraTaskCents: 20, MaximumExtraTasks: 5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []AllowanceSettings{
		{WeeklyAllowanceCents: -1},
		{TasksPerWeek: -1},
		{BonusPerExtraTaskCents: -1},
		{MaximumExtraTasks: -1},
	}
	for i, s := range bads {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	entry := ChoreEntry{Name: "Clean room", Date: NewDate(2025, 12, 10)}
	b, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"Clean room","date":"2025-12-10"}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}

	var back ChoreEntry
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Date.Equal(entry.Date.Time) || back.Name != entry.Name {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	var bad ChoreEntry
	if err := json.Unmarshal([]byte(`{"name":"x","date":"10-12-2025"}`), &bad); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}

func TestTransactionTypeIsValid(t *testing.T) {
	for _, typ := range []TransactionType{TxInitial, TxAllowance, TxBonus, TxManual} {
		if !typ.IsValid() {
			t.Fatalf("%q expected valid", typ)
		}
	}
	if TransactionType("withdrawal").IsValid() {
		t.Fatalf("unknown type expected invalid")
	}
}

func TestSumTransactions(t *testing.T) {
	txs := []Transaction{
		{AmountCents: 0, Type: TxInitial},
		{AmountCents: 250, Type: TxManual},
		{AmountCents: -45, Type: TxManual},
	}
	if got := SumTransactions(txs); got != 205 {
		t.Fatalf("expected 205, got %d", got)
	}
	if got := SumTransactions(nil); got != 0 {
		t.Fatalf("expected 0 for empty list, got %d", got)
	}
}
