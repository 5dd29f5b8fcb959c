// Package checkin validates a scanned or hand-entered credential
// against a session and atomically transitions it to CHECKED_IN.
// Each rejection reason is a distinct sentinel error so terminals can
// show a precise message and callers can branch programmatically.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/fault"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/store"
	"github.com/fitgrid/gym-session-engine/internal/token"
)

// Rejection reasons, in validation order.  Session lookups that find
// nothing surface store.ErrSessionNotFound unchanged.
var (
	ErrInvalidCodeFormat     = errors.New("check-in code has an invalid format")
	ErrSessionCancelled      = errors.New("session has been cancelled")
	ErrAlreadyCheckedIn      = errors.New("session is already checked in")
	ErrSessionNotActivatable = errors.New("session can no longer be activated")
	ErrSessionNotStarted     = errors.New("session window has not started yet")
	ErrCodeMismatch          = errors.New("check-in code does not match")
)

// codePattern accepts the literal prefix, a dash and the fixed-length
// alphanumeric suffix, case-insensitively.  The suffix class is wider
// than the generation alphabet on purpose: format checking rejects
// shapes, not characters a member might plausibly type.
var codePattern = regexp.MustCompile(fmt.Sprintf(`(?i)^%s-[A-Z0-9]{%d}$`, token.CodePrefix, token.CodeSuffixLen))

// Result reports a committed check-in.
type Result struct {
	Session     *model.Session
	CheckedInAt time.Time
	Message     string
}

// Validator performs the ordered check-in validation.
type Validator struct {
	sessions store.SessionStore
	clk      clock.Clock
	faults   fault.Injector // optional, nil in production
}

// NewValidator builds a Validator.  faults may be nil.
func NewValidator(sessions store.SessionStore, clk clock.Clock, faults fault.Injector) *Validator {
	if sessions == nil || clk == nil {
		panic("nil dependency passed to NewValidator")
	}
	return &Validator{sessions: sessions, clk: clk, faults: faults}
}

// CheckIn validates enteredCode against the session and commits the
// CHECKED_IN transition.  The order of checks is deliberate: the
// format check rejects garbage before any store lookup, and the code
// comparison is the last business check so error identity, not
// ordering side channels, is what a caller learns from a rejection.
func (v *Validator) CheckIn(ctx context.Context, enteredCode, sessionID string) (*Result, error) {
	if !codePattern.MatchString(strings.TrimSpace(enteredCode)) {
		return nil, ErrInvalidCodeFormat
	}
	s, err := v.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := v.clk.Now()
	if s.Status == model.StatusCancelled {
		return nil, ErrSessionCancelled
	}
	if s.CheckedInAt != nil || s.Status == model.StatusCheckedIn {
		return nil, ErrAlreadyCheckedIn
	}
	if model.EffectiveStatus(s, now) != model.StatusConfirmed {
		return nil, ErrSessionNotActivatable
	}
	if !strings.EqualFold(strings.TrimSpace(enteredCode), s.CheckInCode) {
		return nil, ErrCodeMismatch
	}
	if v.faults != nil {
		if err := v.faults.Fail(fault.OpCheckIn, sessionID); err != nil {
			return nil, err
		}
	}
	updated, err := v.sessions.MarkCheckedIn(ctx, sessionID, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOutsideWindow):
			// The not-yet-started case; the elapsed case was already
			// rejected above as not activatable.
			return nil, ErrSessionNotStarted
		case errors.Is(err, store.ErrUnexpectedStatus):
			// Lost the race against a concurrent check-in.
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}
	return &Result{
		Session:     updated,
		CheckedInAt: now,
		Message:     fmt.Sprintf("checked in, %d minutes remaining", token.RemainingMinutes(updated.Token, now)),
	}, nil
}
