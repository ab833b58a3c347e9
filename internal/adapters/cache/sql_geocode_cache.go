package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"time"
)

// SQLGeocodeCache remembers resolved depot and customer addresses in
// Postgres. Addresses are stored whitespace-normalized, so lookups for
// "1  Elm St" and "1 Elm St" share a row; results come back under the
// spelling the caller asked for. Rows older than the max age are misses
// and get overwritten by the next successful geocode.
type SQLGeocodeCache struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

var _ ports.GeocodeCache = (*SQLGeocodeCache)(nil)

type SQLGeocodeOption func(*SQLGeocodeCache)

// WithGeocodeMaxAge expires entries after d. Zero keeps them forever.
func WithGeocodeMaxAge(d time.Duration) SQLGeocodeOption {
	return func(c *SQLGeocodeCache) { c.maxAge = d }
}

func NewSQLGeocodeCache(db *sql.DB, opts ...SQLGeocodeOption) *SQLGeocodeCache {
	c := &SQLGeocodeCache{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const selectGeocodes = `
SELECT address, lat, lon
FROM geocode_cache
WHERE address = ANY($1::text[])
  AND ($2::timestamptz IS NULL OR resolved_at >= $2)`

// GetMany returns the cached coordinates among addresses.
func (c *SQLGeocodeCache) GetMany(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.cache.GetMany")(&err)

	if c.db == nil {
		return nil, errors.New("geocode cache: no database")
	}

	// normalized address -> every spelling the caller used for it
	asked := make(map[string][]string, len(addresses))
	keys := make([]string, 0, len(addresses))
	for _, a := range addresses {
		k := domain.NormalizeAddress(a)
		if k == "" {
			continue
		}
		if _, ok := asked[k]; !ok {
			keys = append(keys, k)
		}
		asked[k] = append(asked[k], a)
	}
	found := make(map[string]domain.Coordinates, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	var since sql.NullTime
	if c.maxAge > 0 {
		since = sql.NullTime{Time: c.now().Add(-c.maxAge), Valid: true}
	}

	rows, err := c.db.QueryContext(ctx, selectGeocodes, keys, since)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: lookup %d addresses: %w", len(keys), err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var pt domain.Coordinates
		if err := rows.Scan(&key, &pt.Lat, &pt.Lon); err != nil {
			return nil, fmt.Errorf("geocode cache: scan: %w", err)
		}
		for _, a := range asked[key] {
			found[a] = pt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("geocode cache: read rows: %w", err)
	}
	return found, nil
}

const upsertGeocodes = `
INSERT INTO geocode_cache (address, lat, lon, resolved_at)
SELECT address, lat, lon, $4::timestamptz
FROM unnest($1::text[], $2::float8[], $3::float8[]) AS batch(address, lat, lon)
ON CONFLICT (address) DO UPDATE
SET lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    resolved_at = EXCLUDED.resolved_at`

// PutMany records geocode results in one statement. The whole batch is
// rejected if any entry has a blank address or impossible coordinates.
func (c *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.cache.PutMany")(&err)

	if c.db == nil {
		return errors.New("geocode cache: no database")
	}
	if len(results) == 0 {
		return nil
	}

	byKey := make(map[string]domain.Coordinates, len(results))
	for a, pt := range results {
		k := domain.NormalizeAddress(a)
		if k == "" {
			return fmt.Errorf("geocode cache: blank address: %w", domain.ErrValidation)
		}
		if !pt.Valid() {
			return fmt.Errorf("geocode cache: %q resolved to %s: %w", a, pt, domain.ErrValidation)
		}
		byKey[k] = pt
	}

	addrs := make([]string, 0, len(byKey))
	lats := make([]float64, 0, len(byKey))
	lons := make([]float64, 0, len(byKey))
	for k, pt := range byKey {
		addrs = append(addrs, k)
		lats = append(lats, pt.Lat)
		lons = append(lons, pt.Lon)
	}

	if _, err := c.db.ExecContext(ctx, upsertGeocodes, addrs, lats, lons, c.now().UTC()); err != nil {
		return fmt.Errorf("geocode cache: store %d addresses: %w", len(addrs), err)
	}
	return nil
}
