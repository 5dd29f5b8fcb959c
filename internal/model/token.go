package model

import "time"

// CheckInToken is the structured credential embedded in the scannable
// code handed to a member after booking.  It binds one session to a
// location, user and time window.  The checksum is a deterministic
// digest over all other fields; recomputing and comparing it is the
// only accepted integrity check, so the value carried on the wire is
// never trusted on its own.
//
// A token is immutable.  Extending a session produces a new token for
// the same session with a widened window.
type CheckInToken struct {
	SessionID     string
	LocationID    string
	UserID        string
	WindowStart   time.Time
	WindowEnd     time.Time
	ReferenceCode string
	Checksum      string
}
