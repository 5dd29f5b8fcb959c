package model

import "time"

// SessionStatus enumerates the lifecycle states of a gym session.
// CONFIRMED is the initial state after a successful booking.
// CHECKED_IN is entered when the member presents a valid credential
// inside the session window.  COMPLETED, CANCELLED and NO_SHOW are
// terminal.
type SessionStatus string

const (
	StatusConfirmed SessionStatus = "CONFIRMED"  // booked and paid, not yet attended
	StatusCheckedIn SessionStatus = "CHECKED_IN" // member is inside the gym
	StatusCompleted SessionStatus = "COMPLETED"  // checked out or window elapsed after check-in
	StatusCancelled SessionStatus = "CANCELLED"  // cancelled before start, refunded
	StatusNoShow    SessionStatus = "NO_SHOW"    // window elapsed without a check-in
)

// Session records a member's paid, time-boxed booking at a gym
// location.  The check-in credential (code and token) is issued once
// at creation; extending a checked-in session widens the window and
// re-issues the token.
//
// Fields:
//  ID                 – opaque unique identifier.
//  UserID             – member who booked the session.
//  LocationID         – gym location being booked.
//  StartTime          – beginning of the session window (UTC).
//  EndTime            – end of the session window (UTC), always after StartTime.
//  DurationMinutes    – length of the window in minutes, consistent with it.
//  UnitPriceCents     – hourly rate charged at booking time.
//  TotalPriceCents    – total charged for the whole window.
//  Currency           – ISO currency code of the charge.
//  Status             – stored lifecycle state (see EffectiveStatus).
//  CheckInCode        – short human-enterable secret, e.g. "FIT-4K7Q2N".
//  Token              – checksum-protected check-in credential.
//  CheckedInAt        – when the member checked in (nil until then).
//  CheckedOutAt       – when the member checked out (nil until then).
//  CancelledAt        – when the session was cancelled (nil unless cancelled).
//  CancellationReason – free-text reason supplied on cancellation.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Session struct {
	ID                 string
	UserID             string
	LocationID         string
	StartTime          time.Time
	EndTime            time.Time
	DurationMinutes    int
	UnitPriceCents     int64
	TotalPriceCents    int64
	Currency           string
	Status             SessionStatus
	CheckInCode        string
	Token              CheckInToken
	CheckedInAt        *time.Time
	CheckedOutAt       *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EffectiveStatus reconciles the stored status with the session window
// at the given instant.  No background process flips sessions to
// NO_SHOW or COMPLETED on a timer; instead every read derives the
// logical state here so stored and displayed status never diverge.
// A CONFIRMED session whose window has fully elapsed without a
// check-in is reported as NO_SHOW; a CHECKED_IN session whose window
// has elapsed is reported as COMPLETED.  Terminal stored states are
// returned unchanged.
func EffectiveStatus(s *Session, now time.Time) SessionStatus {
	switch s.Status {
	case StatusConfirmed:
		if s.CheckedInAt == nil && !now.Before(s.EndTime) {
			return StatusNoShow
		}
	case StatusCheckedIn:
		if !now.Before(s.EndTime) {
			return StatusCompleted
		}
	}
	return s.Status
}

// ActiveAt reports whether the session counts against the
// one-active-session-per-user invariant at the given instant: a
// CONFIRMED session whose window has not yet elapsed, or a session
// that is currently CHECKED_IN.
func (s *Session) ActiveAt(now time.Time) bool {
	switch EffectiveStatus(s, now) {
	case StatusConfirmed:
		return s.EndTime.After(now)
	case StatusCheckedIn:
		return true
	}
	return false
}
