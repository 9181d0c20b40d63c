package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// DefaultRadiusKm is the discovery radius used when none is configured.
const DefaultRadiusKm = 5.0

// DiscoveryOptions configures discovery.
type DiscoveryOptions struct {
	RadiusKm        float64
	CacheTTLSeconds int
	EmergencyPhone  string
}

func (o DiscoveryOptions) withDefaults() DiscoveryOptions {
	if o.RadiusKm <= 0 {
		o.RadiusKm = DefaultRadiusKm
	}
	if o.EmergencyPhone == "" {
		o.EmergencyPhone = domain.DefaultHotlines[0].Phone
	}
	return o
}

// Discovery is the outcome of one discovery request. On failure Records holds
// the single fallback record and Err the *domain.DiscoveryError.
type Discovery struct {
	Seq      uint64
	Center   domain.GeoPoint
	Records  []domain.ServiceRecord
	Fallback bool
	Cached   bool
	Err      error
}

// fetcher queries a geo source through an optional read-through cache.
type fetcher struct {
	source ports.GeoSource
	cache  ports.CacheService
	opts   DiscoveryOptions
	logger *slog.Logger
}

func (f *fetcher) cacheKey(center domain.GeoPoint, radiusKm float64) string {
	return fmt.Sprintf("discovery:%s:%.4f:%.4f:%.1f", f.source.Name(), center.Lat, center.Lon, radiusKm)
}

// fetch returns raw points for every discoverable category.
func (f *fetcher) fetch(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.RawPoint, bool, error) {
	key := f.cacheKey(center, radiusKm)
	if f.cache != nil {
		if data, err := f.cache.Get(ctx, key); err == nil {
			var points []domain.RawPoint
			if err := json.Unmarshal(data, &points); err == nil {
				metrics.CacheHits.WithLabelValues("discovery").Inc()
				return points, true, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("discovery").Inc()
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanDiscoveryQuery)
	span.SetAttributes(
		attribute.String("discovery.source", f.source.Name()),
		attribute.Float64("discovery.lat", center.Lat),
		attribute.Float64("discovery.lon", center.Lon),
		attribute.Float64("discovery.radius_km", radiusKm),
	)
	defer span.End()

	start := time.Now()
	var (
		points []domain.RawPoint
		err    error
	)
	if f.source.PerCategory() {
		points, err = f.queryPerCategory(ctx, center, radiusKm)
	} else {
		points, err = f.source.Query(ctx, center, radiusKm, domain.DiscoverableCategories)
	}
	metrics.DiscoveryDuration.WithLabelValues(f.source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	span.SetAttributes(attribute.Int("discovery.points", len(points)))

	if f.cache != nil {
		if data, err := json.Marshal(points); err == nil {
			_ = f.cache.Set(ctx, key, data, f.opts.CacheTTLSeconds)
		}
	}
	return points, false, nil
}

// queryPerCategory merges one query per category. Partial failures are
// logged; the query fails only when every category fails.
func (f *fetcher) queryPerCategory(ctx context.Context, center domain.GeoPoint, radiusKm float64) ([]domain.RawPoint, error) {
	type result struct {
		points []domain.RawPoint
		err    error
	}
	results := make([]result, len(domain.DiscoverableCategories))

	var wg sync.WaitGroup
	for i, c := range domain.DiscoverableCategories {
		wg.Add(1)
		go func(i int, c domain.Category) {
			defer wg.Done()
			pts, err := f.source.Query(ctx, center, radiusKm, []domain.Category{c})
			results[i] = result{points: pts, err: err}
		}(i, c)
	}
	wg.Wait()

	var (
		merged  []domain.RawPoint
		lastErr error
		ok      int
	)
	for i, r := range results {
		if r.err != nil {
			f.logger.Warn("category query failed", "category", domain.DiscoverableCategories[i], "error", r.err)
			lastErr = r.err
			continue
		}
		ok++
		merged = append(merged, r.points...)
	}
	if ok == 0 {
		return nil, lastErr
	}
	return merged, nil
}

// discover runs one query and normalizes it, substituting the fallback record
// on failure.
func (f *fetcher) discover(ctx context.Context, center domain.GeoPoint, radiusKm float64) Discovery {
	d := Discovery{Center: center}
	points, cached, err := f.fetch(ctx, center, radiusKm)
	if err != nil {
		derr := &domain.DiscoveryError{Source: f.source.Name(), Err: err}
		if ctx.Err() == nil {
			f.logger.Warn("discovery failed, using fallback", "error", derr)
			metrics.DiscoveryRequests.WithLabelValues(f.source.Name(), "fallback").Inc()
		} else {
			metrics.DiscoveryRequests.WithLabelValues(f.source.Name(), "cancelled").Inc()
		}
		d.Records = []domain.ServiceRecord{FallbackRecord(center, f.opts.EmergencyPhone)}
		d.Fallback = true
		d.Err = derr
		return d
	}

	outcome := "ok"
	if cached {
		outcome = "cached"
	}
	metrics.DiscoveryRequests.WithLabelValues(f.source.Name(), outcome).Inc()

	d.Cached = cached
	d.Records = make([]domain.ServiceRecord, 0, len(points))
	for _, p := range points {
		if rec, ok := Normalize(center, p); ok {
			d.Records = append(d.Records, rec)
		}
	}
	return d
}

// DiscoveryClient issues radius queries where each call supersedes the
// previous one. It is owned by a single session.
type DiscoveryClient struct {
	fetcher
	seq Sequence

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDiscoveryClient creates a DiscoveryClient. cache may be nil.
func NewDiscoveryClient(source ports.GeoSource, cache ports.CacheService, opts DiscoveryOptions, logger *slog.Logger) *DiscoveryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryClient{
		fetcher: fetcher{source: source, cache: cache, opts: opts.withDefaults(), logger: logger},
	}
}

// RadiusKm returns the configured query radius.
func (c *DiscoveryClient) RadiusKm() float64 {
	return c.opts.RadiusKm
}

// Discover queries around center with the configured radius. Any in-flight
// call is cancelled. If a newer call was issued before this one completes,
// it returns domain.ErrSuperseded and the result must be dropped.
func (c *DiscoveryClient) Discover(ctx context.Context, center domain.GeoPoint) (Discovery, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The sequence number is taken under mu so the stored cancel always
	// belongs to the latest request.
	c.mu.Lock()
	seq := c.seq.Next()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	d := c.discover(ctx, center, c.opts.RadiusKm)
	d.Seq = seq
	if !c.seq.Current(seq) {
		metrics.DiscoveryStale.Inc()
		return Discovery{Seq: seq, Center: center}, domain.ErrSuperseded
	}
	return d, nil
}

// Current reports whether seq belongs to the latest issued request.
func (c *DiscoveryClient) Current(seq uint64) bool {
	return c.seq.Current(seq)
}

// Cancel aborts any in-flight request and makes its response stale.
func (c *DiscoveryClient) Cancel() {
	c.mu.Lock()
	c.seq.Next()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}
