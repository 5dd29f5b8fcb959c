package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/ledger"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// LedgerRepo is the MySQL-backed ledger.Ledger.  The running balance
// lives in a `wallets` row per user; every mutation locks that row
// with SELECT ... FOR UPDATE, appends an immutable `ledger_entries`
// row and updates the balance in the same transaction, so concurrent
// debits for one user serialize on the database row instead of a
// process-local mutex.
type LedgerRepo struct {
	db              *sql.DB
	clk             clock.Clock
	maxBalanceCents int64
}

// NewLedgerRepo returns a LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB, clk clock.Clock, maxBalanceCents int64) *LedgerRepo {
	if maxBalanceCents <= 0 {
		maxBalanceCents = ledger.DefaultMaxBalanceCents
	}
	return &LedgerRepo{db: db, clk: clk, maxBalanceCents: maxBalanceCents}
}

// lockBalance ensures the wallet row exists and returns its balance
// with the row locked for the remainder of the transaction.
func (r *LedgerRepo) lockBalance(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO wallets (user_id, balance_cents) VALUES (?, 0)`, userID); err != nil {
		return 0, err
	}
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id = ? FOR UPDATE`, userID).Scan(&balance)
	return balance, err
}

// appendEntry inserts one immutable ledger row.  Caller owns the
// transaction.
func (r *LedgerRepo) appendEntry(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	var related any
	if e.RelatedSessionID != "" {
		related = e.RelatedSessionID
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries
		 (id, user_id, kind, amount_cents, balance_before, balance_after,
		  related_session_id, reference_code, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, e.Kind, e.AmountCents, e.BalanceBefore, e.BalanceAfter,
		related, e.ReferenceCode, e.Status, e.CreatedAt,
	)
	return err
}

func (r *LedgerRepo) newEntry(userID string, kind model.EntryKind, amount, before, after int64, referenceCode, relatedSessionID string, status model.EntryStatus) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             kind,
		AmountCents:      amount,
		BalanceBefore:    before,
		BalanceAfter:     after,
		RelatedSessionID: relatedSessionID,
		ReferenceCode:    referenceCode,
		Status:           status,
		CreatedAt:        r.clk.Now(),
	}
}

// Debit implements ledger.Ledger.  An insufficient balance still
// commits a FAILED entry for audit before the error is returned.
func (r *LedgerRepo) Debit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	if amountCents <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	balance, err := r.lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if amountCents > balance {
		e := r.newEntry(userID, model.EntryDebit, amountCents, balance, balance, referenceCode, relatedSessionID, model.EntryFailed)
		if err := r.appendEntry(ctx, tx, e); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return nil, ledger.ErrInsufficientFunds
	}
	e := r.newEntry(userID, model.EntryDebit, amountCents, balance, balance-amountCents, referenceCode, relatedSessionID, model.EntryCompleted)
	if err := r.appendEntry(ctx, tx, e); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = ? WHERE user_id = ?`, e.BalanceAfter, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return e, nil
}

// Credit implements ledger.Ledger.
func (r *LedgerRepo) Credit(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	return r.credit(ctx, userID, model.EntryCredit, amountCents, referenceCode, relatedSessionID)
}

// Refund implements ledger.Ledger.
func (r *LedgerRepo) Refund(ctx context.Context, userID string, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	return r.credit(ctx, userID, model.EntryRefund, amountCents, referenceCode, relatedSessionID)
}

func (r *LedgerRepo) credit(ctx context.Context, userID string, kind model.EntryKind, amountCents int64, referenceCode, relatedSessionID string) (*model.LedgerEntry, error) {
	if amountCents <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	balance, err := r.lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance+amountCents > r.maxBalanceCents {
		return nil, ledger.ErrBalanceCeiling
	}
	e := r.newEntry(userID, kind, amountCents, balance, balance+amountCents, referenceCode, relatedSessionID, model.EntryCompleted)
	if err := r.appendEntry(ctx, tx, e); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = ? WHERE user_id = ?`, e.BalanceAfter, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return e, nil
}

// Balance implements ledger.Ledger.  The wallet row is the maintained
// running total; no summation over history happens here.
func (r *LedgerRepo) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// Entries implements ledger.Ledger, newest first.
func (r *LedgerRepo) Entries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, amount_cents, balance_before, balance_after,
				related_session_id, reference_code, status, created_at
		 FROM ledger_entries WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var (
			e       model.LedgerEntry
			related sql.NullString
			created time.Time
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.AmountCents,
			&e.BalanceBefore, &e.BalanceAfter, &related, &e.ReferenceCode,
			&e.Status, &created); err != nil {
			return nil, err
		}
		if related.Valid {
			e.RelatedSessionID = related.String
		}
		e.CreatedAt = created.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ ledger.Ledger = (*LedgerRepo)(nil)
