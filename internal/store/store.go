// Package store is the repository of session entities.  It owns every
// status mutation and enforces the one-active-session-per-user
// invariant; no other component writes a session's status.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/model"
)

// ErrActiveSessionExists is returned by Insert when the user already
// has a CONFIRMED session with a future window or a CHECKED_IN one.
var ErrActiveSessionExists = errors.New("user already has an active session")

// ErrSessionNotFound is returned when no session with the given id
// exists.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnexpectedStatus is returned by Transition when the stored status
// does not match the expected status at the moment of update.  This is
// the compare-and-swap that makes check-in and cancellation race-safe.
var ErrUnexpectedStatus = errors.New("session is not in the expected status")

// ErrCancelWindowClosed is returned by Cancel once the session window
// has started.
var ErrCancelWindowClosed = errors.New("session can no longer be cancelled")

// ErrOutsideWindow is returned by MarkCheckedIn when the instant falls
// outside [StartTime, EndTime).
var ErrOutsideWindow = errors.New("instant is outside the session window")

// ErrWindowNotWidened is returned by ExtendWindow when the new end
// does not extend past the current one.
var ErrWindowNotWidened = errors.New("new end time must be after the current end time")

// Filter selects which of a user's sessions ListForUser returns.
type Filter string

const (
	// FilterUpcoming returns non-cancelled sessions whose window has
	// not yet elapsed, ordered by ascending start time.
	FilterUpcoming Filter = "upcoming"
	// FilterPast returns the complement, ordered by descending start
	// time.
	FilterPast Filter = "past"
	// FilterAll returns everything, ordered by descending start time.
	FilterAll Filter = "all"
)

// SessionStore persists sessions.  Implementations must make every
// mutation for a given session id mutually exclusive, and Insert must
// re-check the active-session invariant inside the same critical
// section as the write.
type SessionStore interface {
	// Insert persists a new session and returns the stored copy.  It
	// fails with ErrActiveSessionExists when the user already has an
	// active session at the time of insertion.
	Insert(ctx context.Context, s *model.Session) (*model.Session, error)

	// FindByID returns the stored session or ErrSessionNotFound.
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// ListForUser returns the user's sessions per the filter.  Both
	// orderings are total: ties on start time break by id.
	ListForUser(ctx context.Context, userID string, f Filter) ([]model.Session, error)

	// Transition applies mutate to the session only if its stored
	// status equals expected, failing with ErrUnexpectedStatus
	// otherwise.  The check and the write are one atomic step.
	Transition(ctx context.Context, id string, expected model.SessionStatus, mutate func(*model.Session)) (*model.Session, error)

	// Cancel moves a CONFIRMED session to CANCELLED before its window
	// opens, recording the reason and instant.
	Cancel(ctx context.Context, id, reason string, at time.Time) (*model.Session, error)

	// MarkCheckedIn moves a CONFIRMED session to CHECKED_IN, guarding
	// that the instant falls inside the session window.
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (*model.Session, error)

	// MarkCompleted moves a CHECKED_IN session to COMPLETED, stamping
	// the checkout instant.
	MarkCompleted(ctx context.Context, id string, at time.Time) (*model.Session, error)

	// ExtendWindow widens a CHECKED_IN session's window to newEnd,
	// adds the incremental price and swaps in the re-issued token.
	ExtendWindow(ctx context.Context, id string, newEnd time.Time, addedPriceCents int64, tok model.CheckInToken) (*model.Session, error)
}
