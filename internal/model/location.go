package model

import "time"

// Location represents a bookable gym location as stored in the
// `locations` table.  The hourly rate is the unit price used when
// pricing a session window at this location.
//
// Fields:
//  ID              – opaque unique identifier.
//  Name            – display name of the gym.
//  Address         – street address shown to members.
//  HourlyRateCents – price per hour in minor currency units.
//  Currency        – ISO currency code of the rate.
//  IsActive        – whether the location accepts bookings.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type Location struct {
	ID              string    // locations.id
	Name            string    // locations.name
	Address         string    // locations.address
	HourlyRateCents int64     // locations.hourly_rate_cents
	Currency        string    // locations.currency
	IsActive        bool      // locations.is_active
	CreatedAt       time.Time // locations.created_at
	UpdatedAt       time.Time // locations.updated_at
}

// Pricing is the slice of a location consulted when computing the
// price of a session window.
type Pricing struct {
	HourlyRateCents int64
	Currency        string
}
