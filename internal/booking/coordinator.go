// Package booking orchestrates the session lifecycle: creation
// (pricing, ledger debit, token issuance, store insert), extension,
// checkout and cancellation.  The coordinator owns the multi-step
// flow but none of the data: the store owns session rows and the
// ledger owns balances.
package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/fault"
	"github.com/fitgrid/gym-session-engine/internal/ledger"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/store"
	"github.com/fitgrid/gym-session-engine/internal/token"
)

// ErrInvalidDuration is returned when a requested duration or
// extension is not a positive number of minutes.
var ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

// ErrStartInPast is returned when a booking's start time is already
// behind the current instant.
var ErrStartInPast = errors.New("session start time is in the past")

// Confirmation summarizes a successful booking for the caller.
type Confirmation struct {
	Session         *model.Session
	SerializedToken string
	BalanceCents    int64
}

// Coordinator wires the engine components together.  All public
// methods are safe for concurrent use: mutations for one user are
// serialized by a per-user mutex acquired before any ledger or store
// lock, giving a fixed global lock order (coordinator user lock, then
// ledger account lock, then store lock).  Catalog and clock lookups
// happen before any lock is taken.
type Coordinator struct {
	ledger   ledger.Ledger
	sessions store.SessionStore
	catalog  catalog.Catalog
	clk      clock.Clock
	faults   fault.Injector // optional, nil in production

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// New builds a Coordinator.  faults may be nil.
func New(l ledger.Ledger, s store.SessionStore, c catalog.Catalog, clk clock.Clock, faults fault.Injector) *Coordinator {
	if l == nil || s == nil || c == nil || clk == nil {
		panic("nil dependency passed to booking.New")
	}
	return &Coordinator{
		ledger:   l,
		sessions: s,
		catalog:  c,
		clk:      clk,
		faults:   faults,
		users:    make(map[string]*sync.Mutex),
	}
}

// lockUser serializes lifecycle mutations for one user.  The returned
// function releases the lock.
func (co *Coordinator) lockUser(userID string) func() {
	co.mu.Lock()
	m, ok := co.users[userID]
	if !ok {
		m = &sync.Mutex{}
		co.users[userID] = m
	}
	co.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// PriceForMinutes computes the integer-cents price of a window at an
// hourly rate, rounding half-up on cents.  No floating point is
// involved.
func PriceForMinutes(hourlyRateCents int64, minutes int) int64 {
	return (hourlyRateCents*int64(minutes) + 30) / 60
}

// Create books a session: it rejects a second active session, prices
// the window, debits the ledger, issues the token and inserts the
// CONFIRMED session.  A failed debit leaves no trace; a lost insert
// race is compensated by refunding the debit before the conflict is
// returned.
func (co *Coordinator) Create(ctx context.Context, userID, locationID string, start time.Time, durationMinutes int) (*Confirmation, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	now := co.clk.Now()
	start = start.UTC().Truncate(time.Second)
	if start.Before(now) {
		return nil, ErrStartInPast
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	// Cheap pre-check; the store re-validates inside its own critical
	// section at insert time, which is what closes the race window.
	existing, err := co.sessions.ListForUser(ctx, userID, store.FilterUpcoming)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].ActiveAt(now) {
			return nil, store.ErrActiveSessionExists
		}
	}

	pricing, err := co.catalog.Pricing(ctx, locationID)
	if err != nil {
		return nil, err
	}
	total := PriceForMinutes(pricing.HourlyRateCents, durationMinutes)

	ref, err := token.NewReferenceCode()
	if err != nil {
		return nil, err
	}
	code, err := token.NewCheckInCode()
	if err != nil {
		return nil, err
	}
	sessionID := uuid.NewString()

	unlock := co.lockUser(userID)
	defer unlock()

	if co.faults != nil {
		if err := co.faults.Fail(fault.OpDebit, userID); err != nil {
			return nil, err
		}
	}
	if _, err := co.ledger.Debit(ctx, userID, total, ref, sessionID); err != nil {
		return nil, err
	}

	tok := token.Issue(sessionID, locationID, userID, start, end, ref)
	s := &model.Session{
		ID:              sessionID,
		UserID:          userID,
		LocationID:      locationID,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes,
		UnitPriceCents:  pricing.HourlyRateCents,
		TotalPriceCents: total,
		Currency:        pricing.Currency,
		Status:          model.StatusConfirmed,
		CheckInCode:     code,
		Token:           tok,
	}

	var insertErr error
	if co.faults != nil {
		insertErr = co.faults.Fail(fault.OpInsert, userID)
	}
	var stored *model.Session
	if insertErr == nil {
		stored, insertErr = co.sessions.Insert(ctx, s)
	}
	if insertErr != nil {
		// Compensating credit: the money comes back, the token is
		// discarded, and the original error propagates.
		if _, refundErr := co.ledger.Refund(ctx, userID, total, ref, sessionID); refundErr != nil {
			return nil, errors.Join(insertErr, refundErr)
		}
		return nil, insertErr
	}

	balance, err := co.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Confirmation{
		Session:         stored,
		SerializedToken: token.Serialize(tok),
		BalanceCents:    balance,
	}, nil
}

// Extend lengthens a CHECKED_IN session by additionalMinutes.  The
// incremental price is debited first; a failed debit leaves the
// session window untouched.  On success the window widens and a new
// token is issued for the same reference code.
func (co *Coordinator) Extend(ctx context.Context, sessionID string, additionalMinutes int) (*model.Session, error) {
	if additionalMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	s, err := co.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := co.clk.Now()
	if model.EffectiveStatus(s, now) != model.StatusCheckedIn {
		return nil, store.ErrUnexpectedStatus
	}
	added := PriceForMinutes(s.UnitPriceCents, additionalMinutes)
	newEnd := s.EndTime.Add(time.Duration(additionalMinutes) * time.Minute)
	tok := token.Issue(s.ID, s.LocationID, s.UserID, s.StartTime, newEnd, s.Token.ReferenceCode)

	unlock := co.lockUser(s.UserID)
	defer unlock()

	if co.faults != nil {
		if err := co.faults.Fail(fault.OpDebit, s.UserID); err != nil {
			return nil, err
		}
	}
	if _, err := co.ledger.Debit(ctx, s.UserID, added, s.Token.ReferenceCode, s.ID); err != nil {
		return nil, err
	}
	updated, err := co.sessions.ExtendWindow(ctx, sessionID, newEnd, added, tok)
	if err != nil {
		if _, refundErr := co.ledger.Refund(ctx, s.UserID, added, s.Token.ReferenceCode, s.ID); refundErr != nil {
			return nil, errors.Join(err, refundErr)
		}
		return nil, err
	}
	return updated, nil
}

// CheckOut completes a CHECKED_IN session, stamping the checkout
// instant.
func (co *Coordinator) CheckOut(ctx context.Context, sessionID string) (*model.Session, error) {
	return co.sessions.MarkCompleted(ctx, sessionID, co.clk.Now())
}

// Cancel cancels a CONFIRMED session before its window opens and
// refunds the full price.  The store's compare-and-swap guarantees a
// racing duplicate cancel cannot refund twice.
func (co *Coordinator) Cancel(ctx context.Context, sessionID, reason string) (*model.Session, error) {
	s, err := co.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := co.lockUser(s.UserID)
	defer unlock()

	cancelled, err := co.sessions.Cancel(ctx, sessionID, reason, co.clk.Now())
	if err != nil {
		return nil, err
	}
	if co.faults != nil {
		if err := co.faults.Fail(fault.OpCredit, s.UserID); err != nil {
			return nil, err
		}
	}
	if _, err := co.ledger.Refund(ctx, s.UserID, cancelled.TotalPriceCents, cancelled.Token.ReferenceCode, cancelled.ID); err != nil {
		return cancelled, err
	}
	return cancelled, nil
}

// Get returns a session by id.
func (co *Coordinator) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return co.sessions.FindByID(ctx, sessionID)
}

// List returns a user's sessions per the filter.
func (co *Coordinator) List(ctx context.Context, userID string, f store.Filter) ([]model.Session, error) {
	return co.sessions.ListForUser(ctx, userID, f)
}

// Balance returns the user's wallet balance in cents.
func (co *Coordinator) Balance(ctx context.Context, userID string) (int64, error) {
	return co.ledger.Balance(ctx, userID)
}

// LedgerEntries returns the user's wallet history, newest first.
func (co *Coordinator) LedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	return co.ledger.Entries(ctx, userID)
}

// TopUp credits the user's wallet.
func (co *Coordinator) TopUp(ctx context.Context, userID string, amountCents int64) (*model.LedgerEntry, error) {
	unlock := co.lockUser(userID)
	defer unlock()
	if co.faults != nil {
		if err := co.faults.Fail(fault.OpCredit, userID); err != nil {
			return nil, err
		}
	}
	ref, err := token.NewReferenceCode()
	if err != nil {
		return nil, err
	}
	return co.ledger.Credit(ctx, userID, amountCents, ref, "")
}
