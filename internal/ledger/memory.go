package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// DefaultMaxBalanceCents bounds how large a wallet may grow through
// credits.  Ten million cents is far beyond any plausible top-up and
// exists only to reject runaway values.
const DefaultMaxBalanceCents int64 = 10_000_000

// Memory is an in-memory Ledger.  Each user owns an account with its
// own mutex, so mutations for one user serialize while different
// users proceed in parallel.  The running balance is maintained on
// every append and never recomputed by summation.
type Memory struct {
	clk             clock.Clock
	maxBalanceCents int64

	mu       sync.RWMutex
	accounts map[string]*account
}

type account struct {
	mu      sync.Mutex
	balance int64
	entries []model.LedgerEntry
}

// NewMemory returns an empty in-memory ledger using the given clock
// and the default balance ceiling.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		clk:             clk,
		maxBalanceCents: DefaultMaxBalanceCents,
		accounts:        make(map[string]*account),
	}
}

// SetMaxBalance overrides the balance ceiling.  Intended to be called
// once during setup, before the ledger is shared.
func (m *Memory) SetMaxBalance(cents int64) { m.maxBalanceCents = cents }

// accountFor returns the account for userID, creating it on first use.
func (m *Memory) accountFor(userID string) *account {
	m.mu.RLock()
	a, ok := m.accounts[userID]
	m.mu.RUnlock()
	if ok {
		return a
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok = m.accounts[userID]; ok {
		return a
	}
	a = &account{}
	m.accounts[userID] = a
	return a
}

// Debit implements Ledger.  The balance check and the append happen
// under the account lock, so no lost update is possible.
func (m *Memory) Debit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	a := m.accountFor(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if amountCents > a.balance {
		m.appendLocked(a, userID, model.EntryDebit, amountCents, a.balance, a.balance, referenceCode, relatedSessionID, model.EntryFailed)
		return nil, ErrInsufficientFunds
	}
	e := m.appendLocked(a, userID, model.EntryDebit, amountCents, a.balance, a.balance-amountCents, referenceCode, relatedSessionID, model.EntryCompleted)
	a.balance -= amountCents
	return e, nil
}

// Credit implements Ledger.
func (m *Memory) Credit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	return m.credit(userID, model.EntryCredit, amountCents, referenceCode, relatedSessionID)
}

// Refund implements Ledger.
func (m *Memory) Refund(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	return m.credit(userID, model.EntryRefund, amountCents, referenceCode, relatedSessionID)
}

func (m *Memory) credit(userID string, kind model.EntryKind, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	a := m.accountFor(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance+amountCents > m.maxBalanceCents {
		return nil, ErrBalanceCeiling
	}
	e := m.appendLocked(a, userID, kind, amountCents, a.balance, a.balance+amountCents, referenceCode, relatedSessionID, model.EntryCompleted)
	a.balance += amountCents
	return e, nil
}

// appendLocked writes a new immutable entry.  Caller holds a.mu.
func (m *Memory) appendLocked(a *account, userID string, kind model.EntryKind, amount, before, after int64, referenceCode, relatedSessionID string, status model.EntryStatus) *model.LedgerEntry {
	e := model.LedgerEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             kind,
		AmountCents:      amount,
		BalanceBefore:    before,
		BalanceAfter:     after,
		RelatedSessionID: relatedSessionID,
		ReferenceCode:    referenceCode,
		Status:           status,
		CreatedAt:        m.clk.Now(),
	}
	a.entries = append(a.entries, e)
	return &e
}

// Balance implements Ledger.
func (m *Memory) Balance(ctx context.Context, userID string) (int64, error) {
	a := m.accountFor(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

// Entries implements Ledger.  The returned slice is a copy, newest
// entry first.
func (m *Memory) Entries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	a := m.accountFor(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.LedgerEntry, len(a.entries))
	for i, e := range a.entries {
		out[len(a.entries)-1-i] = e
	}
	return out, nil
}
