package model

import "time"

// EntryKind distinguishes the direction and intent of a ledger entry.
// Amounts are always positive; the kind implies the sign applied to
// the balance.
type EntryKind string

const (
	EntryDebit  EntryKind = "DEBIT"  // balance decreases (session payment)
	EntryCredit EntryKind = "CREDIT" // balance increases (top-up)
	EntryRefund EntryKind = "REFUND" // balance increases (cancelled session)
)

// EntryStatus records whether an entry was applied.  Failed entries
// are kept for audit but never affect the balance.
type EntryStatus string

const (
	EntryCompleted EntryStatus = "COMPLETED"
	EntryFailed    EntryStatus = "FAILED"
)

// LedgerEntry is one immutable wallet transaction.  Entries are
// append-only: once written they are never mutated, and the current
// balance of a user is the BalanceAfter of their most recent entry.
//
// Fields:
//  ID               – opaque unique identifier.
//  UserID           – owner of the wallet.
//  Kind             – DEBIT, CREDIT or REFUND.
//  AmountCents      – positive amount in minor currency units.
//  BalanceBefore    – balance immediately before this entry applied.
//  BalanceAfter     – balance immediately after; differs from
//                     BalanceBefore by exactly AmountCents.
//  RelatedSessionID – session that caused the entry, if any.
//  ReferenceCode    – human-readable reference shared with the session.
//  Status           – COMPLETED or FAILED.
//  CreatedAt        – creation timestamp.
type LedgerEntry struct {
	ID               string
	UserID           string
	Kind             EntryKind
	AmountCents      int64
	BalanceBefore    int64
	BalanceAfter     int64
	RelatedSessionID string
	ReferenceCode    string
	Status           EntryStatus
	CreatedAt        time.Time
}
