// Package clock abstracts the current time so the engine can be
// driven deterministically in tests.  Production code uses System;
// tests pin a Fixed clock and advance it explicitly.
package clock

import "time"

// Clock supplies the current instant.  All engine components take a
// Clock instead of calling time.Now directly.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.  Now always returns UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a manually driven clock for tests.  It is not safe for
// concurrent Advance calls; tests advance it from a single goroutine.
type Fixed struct {
	Current time.Time
}

// NewFixed returns a Fixed clock pinned to the given instant.
func NewFixed(t time.Time) *Fixed { return &Fixed{Current: t.UTC()} }

func (f *Fixed) Now() time.Time { return f.Current }

// Advance moves the clock forward by d and returns the new instant.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.Current = f.Current.Add(d)
	return f.Current
}
