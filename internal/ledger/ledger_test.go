package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestLedger() *Memory {
	return NewMemory(clock.NewFixed(base))
}

func TestDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Debit(ctx, "u1", 100, "GS-REF00001", "s1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Debit on empty wallet error = %v, want ErrInsufficientFunds", err)
	}
	balance, _ := l.Balance(ctx, "u1")
	if balance != 0 {
		t.Errorf("balance after failed debit = %d, want 0", balance)
	}

	// The failed attempt is still recorded for audit, with an
	// unchanged balance.
	entries, _ := l.Entries(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != model.EntryFailed {
		t.Errorf("failed entry status = %q, want %q", e.Status, model.EntryFailed)
	}
	if e.BalanceBefore != 0 || e.BalanceAfter != 0 {
		t.Errorf("failed entry balances = %d/%d, want 0/0", e.BalanceBefore, e.BalanceAfter)
	}
}

func TestCreditThenDebit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	ce, err := l.Credit(ctx, "u1", 1000, "GS-REF00001", "")
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if ce.BalanceBefore != 0 || ce.BalanceAfter != 1000 {
		t.Errorf("credit balances = %d/%d, want 0/1000", ce.BalanceBefore, ce.BalanceAfter)
	}

	de, err := l.Debit(ctx, "u1", 300, "GS-REF00002", "s1")
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if de.BalanceBefore != 1000 || de.BalanceAfter != 700 {
		t.Errorf("debit balances = %d/%d, want 1000/700", de.BalanceBefore, de.BalanceAfter)
	}
	if de.Kind != model.EntryDebit {
		t.Errorf("debit kind = %q, want %q", de.Kind, model.EntryDebit)
	}
	if de.RelatedSessionID != "s1" {
		t.Errorf("RelatedSessionID = %q, want %q", de.RelatedSessionID, "s1")
	}

	balance, _ := l.Balance(ctx, "u1")
	if balance != 700 {
		t.Errorf("balance = %d, want 700", balance)
	}
}

func TestRefundKind(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	re, err := l.Refund(ctx, "u1", 250, "GS-REF00001", "s1")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if re.Kind != model.EntryRefund {
		t.Errorf("kind = %q, want %q", re.Kind, model.EntryRefund)
	}
	balance, _ := l.Balance(ctx, "u1")
	if balance != 250 {
		t.Errorf("balance = %d, want 250", balance)
	}
}

func TestInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	for _, amount := range []int64{0, -5} {
		if _, err := l.Credit(ctx, "u1", amount, "GS-REF00001", ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Credit(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := l.Debit(ctx, "u1", amount, "GS-REF00001", ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Debit(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestBalanceCeiling(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	l.SetMaxBalance(500)

	if _, err := l.Credit(ctx, "u1", 400, "GS-REF00001", ""); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if _, err := l.Credit(ctx, "u1", 200, "GS-REF00002", ""); !errors.Is(err, ErrBalanceCeiling) {
		t.Fatalf("Credit over ceiling error = %v, want ErrBalanceCeiling", err)
	}
	balance, _ := l.Balance(ctx, "u1")
	if balance != 400 {
		t.Errorf("balance = %d, want 400", balance)
	}
}

func TestEntriesNewestFirstAndImmutable(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	l.Credit(ctx, "u1", 100, "GS-REF00001", "")
	l.Credit(ctx, "u1", 200, "GS-REF00002", "")
	entries, _ := l.Entries(ctx, "u1")
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ReferenceCode != "GS-REF00002" {
		t.Errorf("first entry ref = %q, want the most recent", entries[0].ReferenceCode)
	}

	// Mutating the returned slice must not affect stored entries.
	entries[0].AmountCents = 999999
	again, _ := l.Entries(ctx, "u1")
	if again[0].AmountCents != 200 {
		t.Error("stored entry was mutated through the returned copy")
	}
}

func TestConcurrentExactness(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	const workers = 8
	const perWorker = 50

	// Fund enough that all debits can succeed.
	if _, err := l.Credit(ctx, "u1", workers*perWorker*3, "GS-SEED0001", ""); err != nil {
		t.Fatalf("seed credit failed: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				l.Credit(ctx, "u1", 2, "GS-CREDIT01", "")
				l.Debit(ctx, "u1", 3, "GS-DEBIT001", "")
			}
		}()
	}
	wg.Wait()

	entries, _ := l.Entries(ctx, "u1")
	var sum int64
	for _, e := range entries {
		if e.Status != model.EntryCompleted {
			continue
		}
		switch e.Kind {
		case model.EntryCredit, model.EntryRefund:
			sum += e.AmountCents
		case model.EntryDebit:
			sum -= e.AmountCents
		}
		if diff := e.BalanceAfter - e.BalanceBefore; diff != e.AmountCents && diff != -e.AmountCents {
			t.Fatalf("entry %s balance delta %d does not match amount %d", e.ID, diff, e.AmountCents)
		}
	}
	balance, _ := l.Balance(ctx, "u1")
	if balance != sum {
		t.Errorf("balance = %d, want %d (sum of completed entries)", balance, sum)
	}
	// Newest-first means the first entry carries the final balance.
	if entries[0].BalanceAfter != balance {
		t.Errorf("most recent entry BalanceAfter = %d, want %d", entries[0].BalanceAfter, balance)
	}
}
