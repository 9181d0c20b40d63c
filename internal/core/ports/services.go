package ports

import (
	"context"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// PositionOptions are the per-tier options passed to a geolocator.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Geolocator acquires device positions.
type Geolocator interface {
	// Supported reports whether the device has any geolocation capability.
	Supported() bool
	// CurrentPosition returns one fix or a *domain.GeolocationError.
	CurrentPosition(ctx context.Context, opts PositionOptions) (domain.Position, error)
	// Watch delivers subsequent fixes until the returned watch is cleared.
	Watch(ctx context.Context, opts PositionOptions, fn func(domain.Position)) (PositionWatch, error)
}

// PositionWatch is an active position subscription.
type PositionWatch interface {
	Clear()
}

// GeoSource answers radius queries for tagged points of interest.
type GeoSource interface {
	Name() string
	// PerCategory reports whether Query accepts only one category per call.
	PerCategory() bool
	Query(ctx context.Context, center domain.GeoPoint, radiusKm float64, categories []domain.Category) ([]domain.RawPoint, error)
}

// LayerHandle identifies a layer (tile layer or marker) on a render surface.
type LayerHandle string

// RenderSurface is the contract the core needs from a mapping library.
type RenderSurface interface {
	CreateMap(ctx context.Context, center domain.GeoPoint, zoom int) error
	AddTileLayer(src domain.TileSource) (LayerHandle, error)
	AddMarker(at domain.GeoPoint, icon domain.MarkerIcon) (LayerHandle, error)
	RemoveLayer(h LayerHandle) error
	SetView(center domain.GeoPoint, zoom int) error
	BindPopup(h LayerHandle, html string) error
	OnMarkerClick(h LayerHandle, fn func()) error
	Destroy() error
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// EventSubscriber subscribes to device position reports from a message broker.
type EventSubscriber interface {
	SubscribePositionReports(ctx context.Context, handler func(ctx context.Context, report *domain.PositionReport) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ReportedGeolocator is a Geolocator fed by fixes the device reports.
type ReportedGeolocator interface {
	Geolocator
	Report(report domain.PositionReport)
	SetSupported(supported bool)
}

// IconUpdater is implemented by surfaces that can restyle a marker in
// place, keeping its handle and any open popup.
type IconUpdater interface {
	SetIcon(h LayerHandle, icon domain.MarkerIcon) error
}

// InteractiveSurface is a RenderSurface whose clicks arrive from a remote
// client and whose current state can be replayed to late subscribers.
type InteractiveSurface interface {
	RenderSurface
	Click(h LayerHandle) bool
	Replay() []domain.RenderOp
}
