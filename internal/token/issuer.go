// Package token builds and verifies the tamper-evident check-in
// credential bound to a single session.  Integrity (Verify) and
// temporal validity (WithinWindow, Expired) are deliberately separate
// checks so callers can report tampered, expired and not-yet-started
// as distinct failures.
package token

import (
	"crypto/sha256" // SHA-256 digest protecting the token fields
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/model"
)

// ErrMalformed is returned by Deserialize when the wire string does
// not decode into a complete token.
var ErrMalformed = errors.New("malformed token encoding")

// separator joins the canonical field string.  None of the fields may
// contain it: identifiers are UUIDs, timestamps are unix seconds and
// reference codes are uppercase alphanumerics with dashes.
const separator = "|"

// wireFields is the number of separator-delimited fields on the wire:
// the six canonical fields plus the checksum.
const wireFields = 7

// canonical returns the deterministic field string the checksum is
// computed over.  Window bounds are encoded as unix seconds in UTC so
// the string is independent of time zone and sub-second precision.
func canonical(sessionID, locationID, userID string, start, end time.Time, ref string) string {
	return strings.Join([]string{
		sessionID,
		locationID,
		userID,
		strconv.FormatInt(start.UTC().Unix(), 10),
		strconv.FormatInt(end.UTC().Unix(), 10),
		ref,
	}, separator)
}

// checksum computes the SHA-256 hex digest of the canonical string.
func checksum(canon string) string {
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}

// Issue builds a check-in token for the given session identity and
// window.  It is deterministic: identical inputs produce an identical
// token, which makes re-issuance idempotent for an unchanged window.
func Issue(sessionID, locationID, userID string, start, end time.Time, ref string) model.CheckInToken {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)
	return model.CheckInToken{
		SessionID:     sessionID,
		LocationID:    locationID,
		UserID:        userID,
		WindowStart:   start,
		WindowEnd:     end,
		ReferenceCode: ref,
		Checksum:      checksum(canonical(sessionID, locationID, userID, start, end, ref)),
	}
}

// Serialize encodes the token as a compact pipe-delimited string
// suitable for embedding in a 2D barcode.  The checksum travels as
// the final field and must be re-verified after decoding.
func Serialize(t model.CheckInToken) string {
	canon := canonical(t.SessionID, t.LocationID, t.UserID, t.WindowStart, t.WindowEnd, t.ReferenceCode)
	return canon + separator + t.Checksum
}

// Deserialize parses a wire string produced by Serialize.  The carried
// checksum is preserved as-is; callers must run Verify before trusting
// the token.  ErrMalformed is returned when the field count is wrong,
// a field is empty or a timestamp does not parse.
func Deserialize(s string) (model.CheckInToken, error) {
	parts := strings.Split(s, separator)
	if len(parts) != wireFields {
		return model.CheckInToken{}, ErrMalformed
	}
	for _, p := range parts {
		if p == "" {
			return model.CheckInToken{}, ErrMalformed
		}
	}
	startUnix, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return model.CheckInToken{}, ErrMalformed
	}
	endUnix, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return model.CheckInToken{}, ErrMalformed
	}
	return model.CheckInToken{
		SessionID:     parts[0],
		LocationID:    parts[1],
		UserID:        parts[2],
		WindowStart:   time.Unix(startUnix, 0).UTC(),
		WindowEnd:     time.Unix(endUnix, 0).UTC(),
		ReferenceCode: parts[5],
		Checksum:      parts[6],
	}, nil
}

// Verify recomputes the checksum from the token's own fields and
// compares it to the carried value.  It is the only integrity check;
// it says nothing about whether the window is current.
func Verify(t model.CheckInToken) bool {
	canon := canonical(t.SessionID, t.LocationID, t.UserID, t.WindowStart, t.WindowEnd, t.ReferenceCode)
	return checksum(canon) == t.Checksum
}

// WithinWindow reports whether now falls inside [WindowStart, WindowEnd).
func WithinWindow(t model.CheckInToken, now time.Time) bool {
	return !now.Before(t.WindowStart) && now.Before(t.WindowEnd)
}

// Expired reports whether the window has fully elapsed.
func Expired(t model.CheckInToken, now time.Time) bool {
	return !now.Before(t.WindowEnd)
}

// RemainingMinutes returns the whole minutes left until WindowEnd,
// never negative.
func RemainingMinutes(t model.CheckInToken, now time.Time) int {
	if Expired(t, now) {
		return 0
	}
	return int(t.WindowEnd.Sub(now) / time.Minute)
}
