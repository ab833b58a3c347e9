package services

import (
	"context"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const staticBucket = "static"

var errNoLiveProvider = errors.New("no live mapping provider configured")

// Cell is one entry of an oracle matrix. Err is set only when no tier
// could produce a number for the pair.
type Cell struct {
	Result ports.DistanceResult
	Err    error
}

// Oracle resolves coordinates and travel distance/time in three tiers:
// the live mapping provider, haversine over coordinates, and a hashed
// pseudo-distance over address strings. Every tier below the first is
// local and deterministic, so a lookup between two non-empty locations
// always yields a number.
type Oracle struct {
	live          ports.MappingProvider
	geocodeCache  ports.GeocodeCache
	distanceCache ports.DistanceCache
	liveTimeout   time.Duration
	bucketSize    time.Duration
	batchSize     int
	parallelism   int
	speedMps      float64
	now           func() time.Time
	logger        *slog.Logger

	geocodes singleflight.Group
	mu       sync.RWMutex
	memo     map[string]domain.Coordinates
}

var _ ports.DistanceProvider = (*Oracle)(nil)

type OracleOption func(*Oracle)

// WithMappingProvider enables the live tier. A nil provider leaves it off.
func WithMappingProvider(p ports.MappingProvider) OracleOption {
	return func(o *Oracle) { o.live = p }
}

func WithGeocodeCache(c ports.GeocodeCache) OracleOption {
	return func(o *Oracle) { o.geocodeCache = c }
}

func WithDistanceCache(c ports.DistanceCache) OracleOption {
	return func(o *Oracle) { o.distanceCache = c }
}

// WithLiveTimeout bounds each live geocode or matrix call.
func WithLiveTimeout(d time.Duration) OracleOption {
	return func(o *Oracle) {
		if d > 0 {
			o.liveTimeout = d
		}
	}
}

// WithCacheBucket sets the time slice used to key traffic-aware cache entries.
func WithCacheBucket(d time.Duration) OracleOption {
	return func(o *Oracle) {
		if d > 0 {
			o.bucketSize = d
		}
	}
}

// WithMatrixBatchSize caps how many origins go into one live matrix call.
func WithMatrixBatchSize(n int) OracleOption {
	return func(o *Oracle) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithAverageSpeedMPH sets the speed used to turn fallback distances into durations.
func WithAverageSpeedMPH(mph float64) OracleOption {
	return func(o *Oracle) {
		if mph > 0 {
			o.speedMps = mph * metersPerMile / 3600
		}
	}
}

func WithOracleClock(now func() time.Time) OracleOption {
	return func(o *Oracle) { o.now = now }
}

func WithOracleLogger(l *slog.Logger) OracleOption {
	return func(o *Oracle) { o.logger = l }
}

func NewOracle(opts ...OracleOption) *Oracle {
	o := &Oracle{
		liveTimeout: 5 * time.Second,
		bucketSize:  15 * time.Minute,
		batchSize:   25,
		parallelism: 4,
		speedMps:    35 * metersPerMile / 3600,
		now:         time.Now,
		logger:      slog.Default(),
		memo:        make(map[string]domain.Coordinates),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Geocode resolves an address to coordinates, or returns nil. Provider
// and cache failures are logged, never returned: nil means "use the
// address-string fallback".
func (o *Oracle) Geocode(ctx context.Context, address string) *domain.Coordinates {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return nil
	}

	o.mu.RLock()
	c, ok := o.memo[key]
	o.mu.RUnlock()
	if ok {
		return &c
	}

	v, err, _ := o.geocodes.Do(key, func() (any, error) {
		return o.geocode(ctx, key)
	})
	if err != nil {
		o.logger.DebugContext(ctx, "geocode unavailable", "address", key, "err", err)
		return nil
	}

	c = v.(domain.Coordinates)
	o.mu.Lock()
	o.memo[key] = c
	o.mu.Unlock()

	return &c
}

func (o *Oracle) geocode(ctx context.Context, key string) (domain.Coordinates, error) {
	if o.geocodeCache != nil {
		hits, err := o.geocodeCache.GetMany(ctx, []string{key})
		if err != nil {
			o.logger.WarnContext(ctx, "geocode cache read failed", "address", key, "err", err)
		} else if c, ok := hits[key]; ok {
			return c, nil
		}
	}

	if o.live == nil {
		return domain.Coordinates{}, errNoLiveProvider
	}

	lctx, cancel := context.WithTimeout(ctx, o.liveTimeout)
	defer cancel()

	c, err := o.live.Geocode(lctx, key)
	if err != nil {
		return domain.Coordinates{}, err
	}

	if o.geocodeCache != nil {
		if err := o.geocodeCache.PutMany(ctx, map[string]domain.Coordinates{key: c}); err != nil {
			o.logger.WarnContext(ctx, "geocode cache write failed", "address", key, "err", err)
		}
	}

	return c, nil
}

// Resolve fills in coordinates for a location that only has an address.
func (o *Oracle) Resolve(ctx context.Context, loc domain.Location) domain.Location {
	if loc.Coords != nil {
		return loc
	}
	if c := o.Geocode(ctx, loc.Address); c != nil {
		loc.Coords = c
	}
	return loc
}

// GetDistance returns the best available distance between two locations.
// It fails with domain.ErrDistanceUnavailable only when a location is empty.
func (o *Oracle) GetDistance(ctx context.Context, origin, destination domain.Location) (ports.DistanceResult, error) {
	c := o.compute(ctx, []domain.Location{origin}, []domain.Location{destination}, ports.MatrixOptions{})[0][0]
	return c.Result, c.Err
}

// Matrix returns an N x N matrix over locations. Cells degrade
// independently: a failed live batch or unroutable pair falls back to
// the local tiers without affecting the rest of the matrix.
func (o *Oracle) Matrix(ctx context.Context, locations []domain.Location, opts ports.MatrixOptions) [][]Cell {
	ctx, done := obs.Span(ctx, "oracle.Matrix")
	defer done(nil)

	return o.compute(ctx, locations, locations, opts)
}

// Row returns distances from one origin to many destinations.
func (o *Oracle) Row(ctx context.Context, origin domain.Location, destinations []domain.Location, opts ports.MatrixOptions) []Cell {
	ctx, done := obs.Span(ctx, "oracle.Row")
	defer done(nil)

	return o.compute(ctx, []domain.Location{origin}, destinations, opts)[0]
}

func (o *Oracle) compute(ctx context.Context, origins, destinations []domain.Location, opts ports.MatrixOptions) [][]Cell {
	origins = o.resolveAll(ctx, origins)
	destinations = o.resolveAll(ctx, destinations)

	live := o.liveBlock(ctx, origins, destinations, opts)

	out := make([][]Cell, len(origins))
	for i, a := range origins {
		out[i] = make([]Cell, len(destinations))
		for j, b := range destinations {
			if r := live[i][j]; r != nil {
				out[i][j] = Cell{Result: *r}
				continue
			}
			out[i][j] = o.fallback(a, b)
		}
	}
	return out
}

// resolveAll geocodes locations missing coordinates, in parallel.
func (o *Oracle) resolveAll(ctx context.Context, locs []domain.Location) []domain.Location {
	out := make([]domain.Location, len(locs))
	copy(out, locs)

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i := range out {
		if out[i].Coords != nil || out[i].Address == "" {
			continue
		}
		g.Go(func() error {
			out[i] = o.Resolve(ctx, out[i])
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (o *Oracle) bucket(opts ports.MatrixOptions) string {
	if !opts.Traffic {
		return staticBucket
	}
	t := opts.DepartAt
	if t.IsZero() {
		t = o.now()
	}
	return t.UTC().Truncate(o.bucketSize).Format(time.RFC3339)
}

// liveBlock returns live results where the cache or provider produced
// one, nil elsewhere. Rows are owned by exactly one goroutine.
func (o *Oracle) liveBlock(ctx context.Context, origins, destinations []domain.Location, opts ports.MatrixOptions) [][]*ports.DistanceResult {
	out := make([][]*ports.DistanceResult, len(origins))
	for i := range out {
		out[i] = make([]*ports.DistanceResult, len(destinations))
	}
	if o.live == nil {
		return out
	}

	liveDests := make([]int, 0, len(destinations))
	for j, d := range destinations {
		if d.Coords != nil {
			liveDests = append(liveDests, j)
		}
	}
	if len(liveDests) == 0 {
		return out
	}

	bucket := o.bucket(opts)

	pending := make([]int, 0, len(origins))
	for i, a := range origins {
		if a.Coords == nil {
			continue
		}
		if o.fillFromCache(ctx, a, destinations, liveDests, bucket, out[i]) {
			pending = append(pending, i)
		}
	}

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for start := 0; start < len(pending); start += o.batchSize {
		batch := pending[start:min(start+o.batchSize, len(pending))]
		g.Go(func() error {
			o.fetchBatch(ctx, origins, destinations, batch, liveDests, bucket, opts, out)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// fillFromCache copies cached results into row and reports whether any
// live-eligible destination is still missing.
func (o *Oracle) fillFromCache(
	ctx context.Context,
	origin domain.Location,
	destinations []domain.Location,
	liveDests []int,
	bucket string,
	row []*ports.DistanceResult,
) bool {
	originKey := origin.Key()
	if o.distanceCache != nil {
		keys := make([]string, 0, len(liveDests))
		for _, j := range liveDests {
			keys = append(keys, destinations[j].Key())
		}

		hits, err := o.distanceCache.GetMany(ctx, originKey, keys, bucket)
		if err != nil {
			o.logger.WarnContext(ctx, "distance cache read failed", "origin", originKey, "err", err)
		}
		for _, j := range liveDests {
			if r, ok := hits[destinations[j].Key()]; ok {
				r.Source = ports.SourceLive
				row[j] = &r
			}
		}
	}

	for _, j := range liveDests {
		if row[j] == nil && destinations[j].Key() != originKey {
			return true
		}
	}
	return false
}

func (o *Oracle) fetchBatch(
	ctx context.Context,
	origins, destinations []domain.Location,
	batch, liveDests []int,
	bucket string,
	opts ports.MatrixOptions,
	out [][]*ports.DistanceResult,
) {
	batchOrigins := make([]domain.Location, 0, len(batch))
	for _, i := range batch {
		batchOrigins = append(batchOrigins, origins[i])
	}
	batchDests := make([]domain.Location, 0, len(liveDests))
	for _, j := range liveDests {
		batchDests = append(batchDests, destinations[j])
	}

	lctx, cancel := context.WithTimeout(ctx, o.liveTimeout)
	defer cancel()

	cells, err := o.live.Matrix(lctx, batchOrigins, batchDests, opts)
	if err == nil && len(cells) != len(batch) {
		err = fmt.Errorf("got %d rows for %d origins", len(cells), len(batch))
	}
	if err != nil {
		o.logger.WarnContext(ctx, "live matrix failed, using fallback",
			"origins", len(batchOrigins), "destinations", len(batchDests), "err", err)
		return
	}

	for bi, i := range batch {
		row := cells[bi]
		if len(row) != len(liveDests) {
			o.logger.WarnContext(ctx, "live matrix row malformed, using fallback", "origin", origins[i].Key())
			continue
		}

		fresh := make(map[string]ports.DistanceResult)
		for dj, j := range liveDests {
			if out[i][j] != nil {
				continue
			}
			c := row[dj]
			if !c.OK {
				o.logger.DebugContext(ctx, "live pair unroutable, using fallback",
					"origin", origins[i].Key(), "destination", destinations[j].Key())
				continue
			}
			r := ports.DistanceResult{
				DistanceMeters:  c.DistanceMeters,
				DurationSeconds: c.DurationSeconds,
				Source:          ports.SourceLive,
			}
			out[i][j] = &r
			fresh[destinations[j].Key()] = r
		}

		if o.distanceCache != nil && len(fresh) > 0 {
			if err := o.distanceCache.PutMany(ctx, origins[i].Key(), bucket, fresh); err != nil {
				o.logger.WarnContext(ctx, "distance cache write failed", "origin", origins[i].Key(), "err", err)
			}
		}
	}
}

func (o *Oracle) fallback(a, b domain.Location) Cell {
	if a.Coords != nil && b.Coords != nil {
		m := domain.HaversineMeters(*a.Coords, *b.Coords)
		return Cell{Result: ports.DistanceResult{
			DistanceMeters:  int(math.Round(m)),
			DurationSeconds: o.travelSeconds(m),
			Source:          ports.SourceHaversine,
		}}
	}

	ak, bk := a.Key(), b.Key()
	if ak == "" || bk == "" {
		return Cell{Err: fmt.Errorf("distance %q -> %q: %w", ak, bk, domain.ErrDistanceUnavailable)}
	}

	m := HashedDistanceMeters(ak, bk)
	return Cell{Result: ports.DistanceResult{
		DistanceMeters:  m,
		DurationSeconds: o.travelSeconds(float64(m)),
		Source:          ports.SourceHashed,
	}}
}

func (o *Oracle) travelSeconds(meters float64) int {
	return int(math.Round(meters / o.speedMps))
}
