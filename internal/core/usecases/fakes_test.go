package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

// --- Mock GeoSource ---

type mockSource struct {
	name        string
	perCategory bool
	queryFn     func(ctx context.Context, center domain.GeoPoint, radiusKm float64, categories []domain.Category) ([]domain.RawPoint, error)

	mu    sync.Mutex
	calls int
}

func (m *mockSource) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockSource) PerCategory() bool { return m.perCategory }

func (m *mockSource) Query(ctx context.Context, center domain.GeoPoint, radiusKm float64, categories []domain.Category) ([]domain.RawPoint, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.queryFn != nil {
		return m.queryFn(ctx, center, radiusKm, categories)
	}
	return nil, nil
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock Geolocator ---

type mockWatch struct {
	mu      sync.Mutex
	cleared bool
}

func (w *mockWatch) Clear() {
	w.mu.Lock()
	w.cleared = true
	w.mu.Unlock()
}

func (w *mockWatch) Cleared() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cleared
}

type mockLocator struct {
	supported bool
	currentFn func(ctx context.Context, opts ports.PositionOptions) (domain.Position, error)

	mu      sync.Mutex
	opts    []ports.PositionOptions
	watch   *mockWatch
	deliver func(domain.Position)
}

func (m *mockLocator) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

func (m *mockLocator) CurrentPosition(ctx context.Context, opts ports.PositionOptions) (domain.Position, error) {
	m.mu.Lock()
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.currentFn != nil {
		return m.currentFn(ctx, opts)
	}
	<-ctx.Done()
	return domain.Position{}, ctx.Err()
}

func (m *mockLocator) Watch(ctx context.Context, opts ports.PositionOptions, fn func(domain.Position)) (ports.PositionWatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watch = &mockWatch{}
	m.deliver = fn
	return m.watch, nil
}

func (m *mockLocator) Push(pos domain.Position) bool {
	m.mu.Lock()
	fn := m.deliver
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(pos)
	return true
}

func (m *mockLocator) Watcher() *mockWatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watch
}

func fixAt(lat, lon float64) func(context.Context, ports.PositionOptions) (domain.Position, error) {
	return func(context.Context, ports.PositionOptions) (domain.Position, error) {
		return domain.Position{Location: domain.GeoPoint{Lat: lat, Lon: lon}, Timestamp: time.Now()}, nil
	}
}

// --- Mock RenderSurface ---

type surfaceLayer struct {
	kind  string // "tile" or "marker"
	at    domain.GeoPoint
	icon  domain.MarkerIcon
	tile  domain.TileSource
	popup string
	click func()
}

type mockSurface struct {
	createErr error
	// tileErr, when set, is consulted with the 1-based AddTileLayer call
	// number and fails that call when it returns non-nil.
	tileErr func(call int) error

	tileCalls int
	iconSets  int

	mu        sync.Mutex
	next      int
	created   bool
	destroyed bool
	layers    map[ports.LayerHandle]*surfaceLayer
	center    domain.GeoPoint
	zoom      int
	adds      int
	removes   int
	binds     int
}

func newMockSurface() *mockSurface {
	return &mockSurface{layers: make(map[ports.LayerHandle]*surfaceLayer)}
}

func (m *mockSurface) CreateMap(ctx context.Context, center domain.GeoPoint, zoom int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = true
	m.center, m.zoom = center, zoom
	return nil
}

func (m *mockSurface) add(l *surfaceLayer) ports.LayerHandle {
	m.next++
	h := ports.LayerHandle(fmt.Sprintf("%s-%d", l.kind, m.next))
	m.layers[h] = l
	m.adds++
	return h
}

func (m *mockSurface) AddTileLayer(src domain.TileSource) (ports.LayerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tileCalls++
	if m.tileErr != nil {
		if err := m.tileErr(m.tileCalls); err != nil {
			return "", err
		}
	}
	return m.add(&surfaceLayer{kind: "tile", tile: src}), nil
}

func (m *mockSurface) AddMarker(at domain.GeoPoint, icon domain.MarkerIcon) (ports.LayerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(&surfaceLayer{kind: "marker", at: at, icon: icon}), nil
}

func (m *mockSurface) RemoveLayer(h ports.LayerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[h]; !ok {
		return fmt.Errorf("unknown layer %s", h)
	}
	delete(m.layers, h)
	m.removes++
	return nil
}

func (m *mockSurface) SetView(center domain.GeoPoint, zoom int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center, m.zoom = center, zoom
	return nil
}

func (m *mockSurface) BindPopup(h ports.LayerHandle, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[h]
	if !ok {
		return fmt.Errorf("unknown layer %s", h)
	}
	l.popup = html
	m.binds++
	return nil
}

func (m *mockSurface) OnMarkerClick(h ports.LayerHandle, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[h]
	if !ok {
		return fmt.Errorf("unknown layer %s", h)
	}
	l.click = fn
	return nil
}

func (m *mockSurface) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.layers = make(map[ports.LayerHandle]*surfaceLayer)
	return nil
}

// inPlaceSurface adds ports.IconUpdater to the mock surface.
type inPlaceSurface struct{ *mockSurface }

func (m inPlaceSurface) SetIcon(h ports.LayerHandle, icon domain.MarkerIcon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[h]
	if !ok || l.kind != "marker" {
		return fmt.Errorf("unknown marker %s", h)
	}
	l.icon = icon
	m.iconSets++
	return nil
}

func (m *mockSurface) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.layers {
		if l.kind == kind {
			n++
		}
	}
	return n
}

func (m *mockSurface) tiles() []domain.TileSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TileSource
	for _, l := range m.layers {
		if l.kind == "tile" {
			out = append(out, l.tile)
		}
	}
	return out
}

// markerAt returns the handle of the marker drawn at p.
func (m *mockSurface) markerAt(p domain.GeoPoint) (ports.LayerHandle, *surfaceLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, l := range m.layers {
		if l.kind == "marker" && l.at == p && l.icon.Kind != "user" {
			return h, l
		}
	}
	return "", nil
}

func (m *mockSurface) view() (domain.GeoPoint, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center, m.zoom
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.SessionEvent
}

func (m *mockPublisher) PublishSessionEvent(ctx context.Context, ev *domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

// --- Fixtures ---

func ptr(f float64) *float64 { return &f }

func rawPoint(id, amenity, name string, lat, lon float64) domain.RawPoint {
	tags := map[string]string{"amenity": amenity}
	if name != "" {
		tags["name"] = name
	}
	return domain.RawPoint{ID: id, Location: domain.GeoPoint{Lat: lat, Lon: lon}, Tags: tags}
}
