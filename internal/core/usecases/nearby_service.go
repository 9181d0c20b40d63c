package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

// MaxRadiusKm bounds one-shot nearby queries.
const MaxRadiusKm = 50.0

// NearbyResult is a ranked and filtered one-shot discovery.
type NearbyResult struct {
	Center   domain.GeoPoint        `json:"center"`
	RadiusKm float64                `json:"radius_km"`
	Services []domain.ServiceRecord `json:"services"`
	Total    int                    `json:"total"`
	Fallback bool                   `json:"fallback"`
	Cached   bool                   `json:"cached"`
}

// NearbyService answers stateless nearby queries for clients that keep their
// own location, such as the REST and GraphQL surfaces.
type NearbyService struct {
	fetcher fetcher
}

// NewNearbyService creates a NearbyService. cache may be nil.
func NewNearbyService(source ports.GeoSource, cache ports.CacheService, opts DiscoveryOptions, logger *slog.Logger) *NearbyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NearbyService{
		fetcher: fetcher{source: source, cache: cache, opts: opts.withDefaults(), logger: logger},
	}
}

// DefaultRadiusKm returns the configured discovery radius.
func (s *NearbyService) DefaultRadiusKm() float64 {
	return s.fetcher.opts.RadiusKm
}

// Find discovers services around center, ranks them and applies criteria.
// radiusKm <= 0 uses the configured radius. A failed source yields the
// fallback record rather than an error.
func (s *NearbyService) Find(ctx context.Context, center domain.GeoPoint, radiusKm float64, criteria domain.FilterCriteria) (*NearbyResult, error) {
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius is not a number", domain.ErrInvalidInput)
	}
	if radiusKm <= 0 {
		radiusKm = s.fetcher.opts.RadiusKm
	}
	if radiusKm > MaxRadiusKm {
		return nil, fmt.Errorf("%w: radius must be at most %g km, got %g", domain.ErrInvalidInput, MaxRadiusKm, radiusKm)
	}

	d := s.fetcher.discover(ctx, center, radiusKm)
	ranked := Rank(d.Records)
	filtered := ApplyFilter(ranked, criteria)
	return &NearbyResult{
		Center:   center,
		RadiusKm: radiusKm,
		Services: filtered,
		Total:    len(filtered),
		Fallback: d.Fallback,
		Cached:   d.Cached,
	}, nil
}
