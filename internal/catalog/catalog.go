// Package catalog resolves a location to its pricing and display
// metadata.  The engine consumes only this boundary; the MySQL-backed
// implementation lives in the repository layer and a Static map backs
// tests and seed data.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/fitgrid/gym-session-engine/internal/model"
)

// ErrLocationNotFound is returned when no location with the given id
// exists or it is not accepting bookings.
var ErrLocationNotFound = errors.New("location not found")

// Catalog answers pricing lookups for gym locations.
type Catalog interface {
	// Pricing returns the hourly rate and currency for the location.
	Pricing(ctx context.Context, locationID string) (*model.Pricing, error)

	// Location returns the full location record.
	Location(ctx context.Context, locationID string) (*model.Location, error)

	// Locations lists all bookable locations, ordered by name.
	Locations(ctx context.Context) ([]model.Location, error)
}

// Static is a fixed in-memory catalog.
type Static struct {
	mu        sync.RWMutex
	locations map[string]model.Location
	order     []string
}

// NewStatic builds a catalog from the given locations.
func NewStatic(locations ...model.Location) *Static {
	s := &Static{locations: make(map[string]model.Location, len(locations))}
	for _, l := range locations {
		s.locations[l.ID] = l
		s.order = append(s.order, l.ID)
	}
	return s
}

// Add registers or replaces a location.
func (s *Static) Add(l model.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[l.ID]; !ok {
		s.order = append(s.order, l.ID)
	}
	s.locations[l.ID] = l
}

// Pricing implements Catalog.
func (s *Static) Pricing(ctx context.Context, locationID string) (*model.Pricing, error) {
	l, err := s.Location(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return &model.Pricing{HourlyRateCents: l.HourlyRateCents, Currency: l.Currency}, nil
}

// Location implements Catalog.
func (s *Static) Location(ctx context.Context, locationID string) (*model.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[locationID]
	if !ok || !l.IsActive {
		return nil, ErrLocationNotFound
	}
	out := l
	return &out, nil
}

// Locations implements Catalog.  Entries come back in registration
// order; a static catalog is small enough that name ordering is a
// presentation concern.
func (s *Static) Locations(ctx context.Context) ([]model.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Location, 0, len(s.order))
	for _, id := range s.order {
		if l := s.locations[id]; l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}
