// Package fault provides deterministic fault injection for exercising
// failure paths in tests.  It replaces the older habit of sniffing
// production inputs for magic substrings: injection is now an explicit
// strategy passed at construction time, so real user data can never
// trigger it by accident.
package fault

import "strings"

// Op names a point in an operation where a fault may be injected.
type Op string

const (
	OpDebit   Op = "debit"    // before a ledger debit
	OpCredit  Op = "credit"   // before a ledger credit or refund
	OpInsert  Op = "insert"   // before a session store insert
	OpCheckIn Op = "check_in" // before committing a check-in
)

// Injector decides whether an operation at the given point should
// fail.  A nil return lets the operation proceed.  key is the
// operation's subject (user id or session id).
type Injector interface {
	Fail(op Op, key string) error
}

// Sentinel fails an operation when its key contains the configured
// sentinel substring, returning the error registered for that op.
// Ops with no registered error never fail.
type Sentinel struct {
	Token  string
	Errors map[Op]error
}

// NewSentinel builds a Sentinel injector.
func NewSentinel(token string, errs map[Op]error) *Sentinel {
	return &Sentinel{Token: token, Errors: errs}
}

// Fail implements Injector.
func (s *Sentinel) Fail(op Op, key string) error {
	if s.Token == "" {
		return nil
	}
	err, ok := s.Errors[op]
	if !ok {
		return nil
	}
	if !strings.Contains(key, s.Token) {
		return nil
	}
	return err
}
