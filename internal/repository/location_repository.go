package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// LocationRepo is the MySQL-backed catalog.Catalog.  Pricing lookups
// happen on every booking, so they go through an optional Redis cache
// with a short TTL; when the cache client is nil or unreachable the
// repo degrades to plain database reads.
type LocationRepo struct {
	db    *sql.DB
	cache *redis.Client // may be nil
	ttl   time.Duration
}

// NewLocationRepo returns a LocationRepo.  cache may be nil to
// disable caching; ttl falls back to one minute when non-positive.
func NewLocationRepo(db *sql.DB, cache *redis.Client, ttl time.Duration) *LocationRepo {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LocationRepo{db: db, cache: cache, ttl: ttl}
}

const locationColumns = `id, name, address, hourly_rate_cents, currency, is_active, created_at, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	err := row.Scan(&l.ID, &l.Name, &l.Address, &l.HourlyRateCents, &l.Currency,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func pricingKey(locationID string) string { return fmt.Sprintf("pricing:%s", locationID) }

// Pricing implements catalog.Catalog.
func (r *LocationRepo) Pricing(ctx context.Context, locationID string) (*model.Pricing, error) {
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, pricingKey(locationID)).Bytes(); err == nil {
			var p model.Pricing
			if json.Unmarshal(raw, &p) == nil {
				return &p, nil
			}
		}
	}
	l, err := r.Location(ctx, locationID)
	if err != nil {
		return nil, err
	}
	p := &model.Pricing{HourlyRateCents: l.HourlyRateCents, Currency: l.Currency}
	if r.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			// Cache write failures are ignored; the next lookup just
			// hits the database again.
			_ = r.cache.Set(ctx, pricingKey(locationID), raw, r.ttl).Err()
		}
	}
	return p, nil
}

// Location implements catalog.Catalog.
func (r *LocationRepo) Location(ctx context.Context, locationID string) (*model.Location, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ? AND is_active = 1`, locationID)
	l, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, catalog.ErrLocationNotFound
	}
	return l, err
}

// Locations implements catalog.Catalog, ordered by name for stable
// browse listings.
func (r *LocationRepo) Locations(ctx context.Context) ([]model.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE is_active = 1 ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

var _ catalog.Catalog = (*LocationRepo)(nil)
