package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/store"
)

// SessionRepo is the MySQL-backed store.SessionStore.  Every mutation
// runs in a transaction that locks the affected row with SELECT ...
// FOR UPDATE, so the status compare-and-swap and the active-session
// check at insert time are atomic with their writes.  All timestamps
// are stored in UTC.
type SessionRepo struct {
	db  *sql.DB
	clk clock.Clock
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB, clk clock.Clock) *SessionRepo {
	return &SessionRepo{db: db, clk: clk}
}

const sessionColumns = `id, user_id, location_id, start_time, end_time, duration_minutes,
	   unit_price_cents, total_price_cents, currency, status, check_in_code,
	   token_reference, token_checksum, checked_in_at, checked_out_at,
	   cancelled_at, cancellation_reason, created_at, updated_at`

// scanSession reads one row into a model.Session.  The check-in token
// is rebuilt from the row: its identity and window fields are the
// session's own, only the reference code and checksum are stored.
func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var (
		s                     model.Session
		tokenRef, tokenSum    string
		checkedIn, checkedOut sql.NullTime
		cancelledAt           sql.NullTime
		cancellationReason    sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.LocationID, &s.StartTime, &s.EndTime, &s.DurationMinutes,
		&s.UnitPriceCents, &s.TotalPriceCents, &s.Currency, &s.Status, &s.CheckInCode,
		&tokenRef, &tokenSum, &checkedIn, &checkedOut,
		&cancelledAt, &cancellationReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	s.Token = model.CheckInToken{
		SessionID:     s.ID,
		LocationID:    s.LocationID,
		UserID:        s.UserID,
		WindowStart:   s.StartTime,
		WindowEnd:     s.EndTime,
		ReferenceCode: tokenRef,
		Checksum:      tokenSum,
	}
	if checkedIn.Valid {
		t := checkedIn.Time.UTC()
		s.CheckedInAt = &t
	}
	if checkedOut.Valid {
		t := checkedOut.Time.UTC()
		s.CheckedOutAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		s.CancelledAt = &t
	}
	if cancellationReason.Valid {
		s.CancellationReason = cancellationReason.String
	}
	return &s, nil
}

// Insert implements store.SessionStore.  The active-session check and
// the insert share one transaction: the SELECT ... FOR UPDATE locks
// the user's candidate rows so a concurrent booking for the same user
// serializes behind this one.
func (r *SessionRepo) Insert(ctx context.Context, s *model.Session) (*model.Session, error) {
	now := r.clk.Now()
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

	const activeQ = `SELECT COUNT(*) FROM sessions
					 WHERE user_id = ?
					   AND status IN ('CONFIRMED','CHECKED_IN')
					   AND end_time > ?
					 FOR UPDATE`
	var active int
	if err := tx.QueryRowContext(ctx, activeQ, s.UserID, now).Scan(&active); err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, store.ErrActiveSessionExists
	}

	const insertQ = `INSERT INTO sessions
		(id, user_id, location_id, start_time, end_time, duration_minutes,
		 unit_price_cents, total_price_cents, currency, status, check_in_code,
		 token_reference, token_checksum, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insertQ,
		s.ID, s.UserID, s.LocationID, s.StartTime, s.EndTime, s.DurationMinutes,
		s.UnitPriceCents, s.TotalPriceCents, s.Currency, s.Status, s.CheckInCode,
		s.Token.ReferenceCode, s.Token.Checksum, now, now,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	stored := *s
	stored.CreatedAt = now
	stored.UpdatedAt = now
	return &stored, nil
}

// FindByID implements store.SessionStore.
func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrSessionNotFound
	}
	return s, err
}

// ListForUser implements store.SessionStore.  The ordering mirrors
// the in-memory store: upcoming ascends by start time, past descends,
// ties always break by id so the order is total.
func (r *SessionRepo) ListForUser(ctx context.Context, userID string, f store.Filter) ([]model.Session, error) {
	now := r.clk.Now()
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ?`
	args := []any{userID}
	switch f {
	case store.FilterUpcoming:
		q += ` AND status <> 'CANCELLED' AND end_time > ? ORDER BY start_time ASC, id ASC`
		args = append(args, now)
	case store.FilterPast:
		q += ` AND (status = 'CANCELLED' OR end_time <= ?) ORDER BY start_time DESC, id ASC`
		args = append(args, now)
	default:
		q += ` ORDER BY start_time DESC, id ASC`
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// update writes the mutable columns of a session back to its row.
// Caller owns the transaction.
func (r *SessionRepo) update(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `UPDATE sessions
			   SET end_time = ?, duration_minutes = ?, total_price_cents = ?,
				   status = ?, token_reference = ?, token_checksum = ?,
				   checked_in_at = ?, checked_out_at = ?,
				   cancelled_at = ?, cancellation_reason = ?, updated_at = ?
			   WHERE id = ?`
	var reason any
	if s.CancellationReason != "" {
		reason = s.CancellationReason
	}
	_, err := tx.ExecContext(ctx, q,
		s.EndTime, s.DurationMinutes, s.TotalPriceCents,
		s.Status, s.Token.ReferenceCode, s.Token.Checksum,
		s.CheckedInAt, s.CheckedOutAt,
		s.CancelledAt, reason, s.UpdatedAt,
		s.ID,
	)
	return err
}

// guardedTransition locks the row, runs the guard and the status
// compare, applies mutate and writes the row back, all in one
// transaction.
func (r *SessionRepo) guardedTransition(ctx context.Context, id string, expected model.SessionStatus, guard func(*model.Session) error, mutate func(*model.Session)) (*model.Session, error) {
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

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ? FOR UPDATE`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(s); err != nil {
			return nil, err
		}
	}
	if s.Status != expected {
		return nil, store.ErrUnexpectedStatus
	}
	mutate(s)
	s.UpdatedAt = r.clk.Now()
	if err := r.update(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return s, nil
}

// Transition implements store.SessionStore.
func (r *SessionRepo) Transition(ctx context.Context, id string, expected model.SessionStatus, mutate func(*model.Session)) (*model.Session, error) {
	return r.guardedTransition(ctx, id, expected, nil, mutate)
}

// Cancel implements store.SessionStore.
func (r *SessionRepo) Cancel(ctx context.Context, id, reason string, at time.Time) (*model.Session, error) {
	return r.guardedTransition(ctx, id, model.StatusConfirmed,
		func(s *model.Session) error {
			if !at.Before(s.StartTime) {
				return store.ErrCancelWindowClosed
			}
			return nil
		},
		func(s *model.Session) {
			s.Status = model.StatusCancelled
			cancelled := at
			s.CancelledAt = &cancelled
			s.CancellationReason = reason
		})
}

// MarkCheckedIn implements store.SessionStore.
func (r *SessionRepo) MarkCheckedIn(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	return r.guardedTransition(ctx, id, model.StatusConfirmed,
		func(s *model.Session) error {
			if at.Before(s.StartTime) || !at.Before(s.EndTime) {
				return store.ErrOutsideWindow
			}
			return nil
		},
		func(s *model.Session) {
			s.Status = model.StatusCheckedIn
			checkedIn := at
			s.CheckedInAt = &checkedIn
		})
}

// MarkCompleted implements store.SessionStore.
func (r *SessionRepo) MarkCompleted(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	return r.guardedTransition(ctx, id, model.StatusCheckedIn, nil,
		func(s *model.Session) {
			s.Status = model.StatusCompleted
			checkedOut := at
			s.CheckedOutAt = &checkedOut
		})
}

// ExtendWindow implements store.SessionStore.
func (r *SessionRepo) ExtendWindow(ctx context.Context, id string, newEnd time.Time, addedPriceCents int64, tok model.CheckInToken) (*model.Session, error) {
	return r.guardedTransition(ctx, id, model.StatusCheckedIn,
		func(s *model.Session) error {
			if !newEnd.After(s.EndTime) {
				return store.ErrWindowNotWidened
			}
			return nil
		},
		func(s *model.Session) {
			s.EndTime = newEnd
			s.DurationMinutes = int(newEnd.Sub(s.StartTime) / time.Minute)
			s.TotalPriceCents += addedPriceCents
			s.Token = tok
		})
}

var _ store.SessionStore = (*SessionRepo)(nil)
