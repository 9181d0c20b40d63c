package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

// MapOptions configures viewport behavior.
type MapOptions struct {
	Fallback     domain.GeoPoint
	WideZoom     int
	CloseZoom    int
	RecenterZoom int
	SelectZoom   int
}

// DefaultMapOptions centers on New Delhi until a location is known.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Fallback:     domain.GeoPoint{Lat: 28.6139, Lon: 77.2090},
		WideZoom:     11,
		CloseZoom:    15,
		RecenterZoom: 16,
		SelectZoom:   17,
	}
}

const selectedColor = "#1f2937"

type marker struct {
	handle ports.LayerHandle
	record domain.ServiceRecord
	popup  string
}

// MapSynchronizer is the only writer to a render surface. It owns the map
// instance, the active tile layer and every marker, and releases them on
// Close. Methods must be called from the owning session's loop.
//
// When the surface fails to initialize the synchronizer keeps tracking
// records and selection so the rest of the session stays usable, but no
// further surface calls are made.
type MapSynchronizer struct {
	surface ports.RenderSurface
	opts    MapOptions
	logger  *slog.Logger

	created bool // CreateMap succeeded; Destroy is owed on Close
	ready   bool
	initErr error
	closed  bool

	center domain.GeoPoint
	zoom   int

	layer domain.BaseLayer
	tile  ports.LayerHandle

	user       *domain.GeoPoint
	userHandle ports.LayerHandle

	order    []string
	markers  map[string]*marker
	selected string

	onSelect func(id string)
}

// NewMapSynchronizer creates a synchronizer for surface. Init must be called
// before anything is drawn.
func NewMapSynchronizer(surface ports.RenderSurface, opts MapOptions, logger *slog.Logger) *MapSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapSynchronizer{
		surface: surface,
		opts:    opts,
		logger:  logger,
		center:  opts.Fallback,
		zoom:    opts.WideZoom,
		layer:   domain.LayerStandard,
		markers: make(map[string]*marker),
	}
}

// OnSelect registers the callback invoked when a service marker is clicked.
// The callback runs on the surface's goroutine.
func (m *MapSynchronizer) OnSelect(fn func(id string)) {
	m.onSelect = fn
}

// Init creates the map at the fallback center, or at the resolved location
// when one is already known, and adds the standard tile layer.
func (m *MapSynchronizer) Init(ctx context.Context, loc domain.LocationState) error {
	if m.ready || m.initErr != nil {
		return m.initErr
	}
	if err := m.surface.CreateMap(ctx, m.opts.Fallback, m.opts.WideZoom); err != nil {
		m.initErr = fmt.Errorf("%w: %v", domain.ErrRenderingInit, err)
		m.logger.Error("map init failed", "error", err)
		return m.initErr
	}
	m.created = true
	h, err := m.surface.AddTileLayer(domain.TileSources[m.layer])
	if err != nil {
		m.initErr = fmt.Errorf("%w: %v", domain.ErrRenderingInit, err)
		m.logger.Error("tile layer init failed", "error", err)
		return m.initErr
	}
	m.tile = h
	m.ready = true
	return m.SyncLocation(loc)
}

// Err returns the rendering init failure, if any.
func (m *MapSynchronizer) Err() error {
	return m.initErr
}

func (m *MapSynchronizer) drawable() bool {
	return m.ready && !m.closed
}

func (m *MapSynchronizer) setView(center domain.GeoPoint, zoom int) error {
	m.center, m.zoom = center, zoom
	if !m.drawable() {
		return nil
	}
	return m.surface.SetView(center, zoom)
}

// SyncLocation moves the user marker to the resolved coordinate. The first
// resolution recenters at close zoom; later updates leave the viewport alone.
// Service popups are rebound since their directions depend on the user.
func (m *MapSynchronizer) SyncLocation(loc domain.LocationState) error {
	if !loc.Resolved() {
		return nil
	}
	at := *loc.Location
	if m.user != nil && *m.user == at {
		return nil
	}
	first := m.user == nil
	m.user = &at

	var errs []error
	if m.drawable() {
		if m.userHandle != "" {
			if err := m.surface.RemoveLayer(m.userHandle); err != nil {
				errs = append(errs, err)
			}
			m.userHandle = ""
		}
		h, err := m.surface.AddMarker(at, domain.MarkerIcon{Kind: "user", Glyph: "📍", Color: "#3b82f6"})
		if err != nil {
			errs = append(errs, fmt.Errorf("add user marker: %w", err))
		} else {
			m.userHandle = h
			if html, err := RenderUserPopup(at); err == nil {
				errs = append(errs, m.surface.BindPopup(h, html))
			}
		}
	}
	if first {
		errs = append(errs, m.setView(at, m.opts.CloseZoom))
	}
	for _, id := range m.order {
		errs = append(errs, m.refreshPopup(m.markers[id]))
	}
	return errors.Join(errs...)
}

// SyncServices reconciles service markers with the filtered sequence.
// Markers present before and after keep their surface layer.
func (m *MapSynchronizer) SyncServices(filtered []domain.ServiceRecord) error {
	next := make([]string, 0, len(filtered))
	byID := make(map[string]domain.ServiceRecord, len(filtered))
	for _, r := range filtered {
		if r.ID == domain.UserMarkerID {
			continue
		}
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		next = append(next, r.ID)
	}

	diff := Reconcile(m.order, next)
	var errs []error
	for _, id := range diff.ToRemove {
		mk := m.markers[id]
		delete(m.markers, id)
		if m.drawable() && mk.handle != "" {
			errs = append(errs, m.surface.RemoveLayer(mk.handle))
		}
	}
	for _, id := range diff.ToKeep {
		mk := m.markers[id]
		mk.record = byID[id]
		errs = append(errs, m.refreshPopup(mk))
	}
	for _, id := range diff.ToAdd {
		mk := &marker{record: byID[id]}
		m.markers[id] = mk
		errs = append(errs, m.draw(mk))
	}
	m.order = next

	if _, ok := m.markers[m.selected]; !ok {
		m.selected = ""
	}
	return errors.Join(errs...)
}

func (m *MapSynchronizer) icon(rec domain.ServiceRecord) domain.MarkerIcon {
	info := rec.Category.Info()
	icon := domain.MarkerIcon{
		Kind:   string(rec.Category),
		Glyph:  info.Icon,
		Color:  info.Color,
		Nearby: IsNearby(rec),
	}
	if rec.ID == m.selected {
		icon.Selected = true
		icon.Color = selectedColor
	}
	return icon
}

// draw adds a service marker with its popup and click binding.
func (m *MapSynchronizer) draw(mk *marker) error {
	if !m.drawable() {
		return nil
	}
	h, err := m.surface.AddMarker(mk.record.Location, m.icon(mk.record))
	if err != nil {
		return fmt.Errorf("add marker %s: %w", mk.record.ID, err)
	}
	mk.handle = h
	mk.popup = ""

	id := mk.record.ID
	if err := m.surface.OnMarkerClick(h, func() {
		if m.onSelect != nil {
			m.onSelect(id)
		}
	}); err != nil {
		return fmt.Errorf("bind click %s: %w", id, err)
	}
	return m.refreshPopup(mk)
}

// refreshPopup rebinds the popup only when its content changed.
func (m *MapSynchronizer) refreshPopup(mk *marker) error {
	if mk == nil || !m.drawable() || mk.handle == "" {
		return nil
	}
	html, err := RenderPopup(BuildPopup(mk.record, m.user))
	if err != nil {
		return err
	}
	if html == mk.popup {
		return nil
	}
	if err := m.surface.BindPopup(mk.handle, html); err != nil {
		return fmt.Errorf("bind popup %s: %w", mk.record.ID, err)
	}
	mk.popup = html
	return nil
}

// redraw updates a marker's icon to reflect the selection. Surfaces that
// implement ports.IconUpdater restyle in place; others get the layer
// replaced.
func (m *MapSynchronizer) redraw(id string) error {
	mk, ok := m.markers[id]
	if !ok || !m.drawable() {
		return nil
	}
	if up, ok := m.surface.(ports.IconUpdater); ok && mk.handle != "" {
		if err := up.SetIcon(mk.handle, m.icon(mk.record)); err != nil {
			return fmt.Errorf("set icon %s: %w", id, err)
		}
		return nil
	}
	if mk.handle != "" {
		if err := m.surface.RemoveLayer(mk.handle); err != nil {
			return err
		}
		mk.handle = ""
	}
	return m.draw(mk)
}

// Select marks id as selected and centers on it. Selecting the selected id
// again only recenters.
func (m *MapSynchronizer) Select(id string) error {
	mk, ok := m.markers[id]
	if !ok {
		return fmt.Errorf("select %q: %w", id, domain.ErrUnknownService)
	}
	var errs []error
	if prev := m.selected; prev != id {
		m.selected = id
		if prev != "" {
			errs = append(errs, m.redraw(prev))
		}
		errs = append(errs, m.redraw(id))
	}
	errs = append(errs, m.setView(mk.record.Location, m.opts.SelectZoom))
	return errors.Join(errs...)
}

// CenterOnUser recenters on the resolved user location.
func (m *MapSynchronizer) CenterOnUser() error {
	if m.user == nil {
		return domain.ErrLocationUnavailable
	}
	return m.setView(*m.user, m.opts.RecenterZoom)
}

// ToggleBaseLayer swaps the tile source, removing the active layer before
// adding the other so exactly one is ever on the surface.
func (m *MapSynchronizer) ToggleBaseLayer() (domain.BaseLayer, error) {
	if !m.drawable() {
		if m.initErr != nil {
			return m.layer, m.initErr
		}
		return m.layer, domain.ErrRenderingInit
	}
	next := m.layer.Toggle()
	if m.tile != "" {
		if err := m.surface.RemoveLayer(m.tile); err != nil {
			return m.layer, fmt.Errorf("remove tile layer: %w", err)
		}
		m.tile = ""
	}
	h, err := m.surface.AddTileLayer(domain.TileSources[next])
	if err != nil {
		// Put the previous source back so one tile layer stays on the surface.
		if prev, rerr := m.surface.AddTileLayer(domain.TileSources[m.layer]); rerr == nil {
			m.tile = prev
		} else {
			m.logger.Error("tile layer restore failed", "layer", m.layer, "error", rerr)
		}
		return m.layer, fmt.Errorf("add tile layer: %w", err)
	}
	m.tile = h
	m.layer = next
	return next, nil
}

// View projects the current viewport, marker set and selection.
func (m *MapSynchronizer) View() domain.MapViewState {
	ids := make([]string, 0, len(m.order)+1)
	ids = append(ids, m.order...)
	if m.user != nil {
		ids = append(ids, domain.UserMarkerID)
	}
	sort.Strings(ids)

	v := domain.MapViewState{
		Center:     m.center,
		Zoom:       m.zoom,
		BaseLayer:  m.layer,
		Markers:    ids,
		SelectedID: m.selected,
		Ready:      m.ready && !m.closed,
	}
	if m.initErr != nil {
		v.Error = domain.ErrRenderingInit.Error()
	}
	return v
}

// Popups returns the detail content of every displayed service in display
// order.
func (m *MapSynchronizer) Popups() []domain.Popup {
	out := make([]domain.Popup, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, BuildPopup(m.markers[id].record, m.user))
	}
	return out
}

// Close destroys the map and forgets every handle.
func (m *MapSynchronizer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.tile = ""
	m.userHandle = ""
	for _, mk := range m.markers {
		mk.handle = ""
	}
	if !m.created {
		return nil
	}
	return m.surface.Destroy()
}
