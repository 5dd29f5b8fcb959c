// Package ledger is the money source of truth: an append-only
// transaction log per user with a maintained running balance.  All
// amounts are non-negative integers in minor currency units; no
// floating point arithmetic participates in balance computation.
package ledger

import (
	"context"
	"errors"

	"github.com/fitgrid/gym-session-engine/internal/model"
)

// ErrInsufficientFunds is returned by Debit when the requested amount
// exceeds the user's current balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvalidAmount is returned when a debit or credit amount is not
// strictly positive.
var ErrInvalidAmount = errors.New("amount must be a positive number of cents")

// ErrBalanceCeiling is returned by Credit when the resulting balance
// would exceed the configured maximum.
var ErrBalanceCeiling = errors.New("balance ceiling exceeded")

// Ledger appends wallet transactions and answers balance queries.
// Implementations must make every mutation for a given user a single
// atomic read-modify-write: two concurrent debits can never both
// observe the same BalanceBefore.
type Ledger interface {
	// Debit appends a DEBIT entry, decreasing the balance.  It fails
	// with ErrInsufficientFunds when amountCents exceeds the current
	// balance; a FAILED entry is still appended for audit, carrying
	// an unchanged balance.
	Debit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error)

	// Credit appends a CREDIT entry, increasing the balance.  It only
	// fails when amountCents is invalid or the configured balance
	// ceiling would be exceeded.
	Credit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error)

	// Refund is Credit with the REFUND kind, used for compensating
	// credits and cancellation refunds.
	Refund(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error)

	// Balance returns the current balance in cents, zero for a user
	// with no entries.  Implementations keep a running total so this
	// is O(1), never a summation over history.
	Balance(ctx context.Context, userID string) (int64, error)

	// Entries returns the user's entries newest first.
	Entries(ctx context.Context, userID string) ([]model.LedgerEntry, error)
}
