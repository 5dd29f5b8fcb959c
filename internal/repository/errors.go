// Package repository provides the MySQL-backed implementations of the
// engine's persistence boundaries: sessions, the wallet ledger, the
// location catalog, users and refresh tokens.  Domain-level sentinel
// errors (session not found, active session exists, insufficient
// funds) are defined next to the interfaces they belong to in the
// store, ledger and catalog packages; this file holds only the errors
// shared across repositories.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else, such as fetching another member's
// session.  Handlers translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
