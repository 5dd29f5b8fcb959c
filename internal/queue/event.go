// Package queue defines message payloads exchanged over the message broker.
package queue

// SessionBookedEvent is published when a session is successfully booked
// and paid for. It carries enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary database.
type SessionBookedEvent struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	LocationID      string `json:"location_id"`
	LocationName    string `json:"location_name"`
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	ReferenceCode   string `json:"reference_code"`
	BookedAt        string `json:"booked_at"`
}

// SessionCheckedInEvent is published when a member scans in at the front
// desk and the check-in is accepted.
type SessionCheckedInEvent struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	LocationID  string `json:"location_id"`
	CheckedInAt string `json:"checked_in_at"`
}

// SessionCancelledEvent is published when a member cancels before the
// session window opens. RefundCents reflects the amount returned to the
// wallet.
type SessionCancelledEvent struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	LocationID  string `json:"location_id"`
	RefundCents int64  `json:"refund_cents"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}
