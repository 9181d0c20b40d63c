package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

func resolvedAt(p domain.GeoPoint) domain.LocationState {
	return domain.LocationState{Status: domain.LocationResolved, Tier: domain.TierHigh, Location: &p}
}

func records() []domain.ServiceRecord {
	return []domain.ServiceRecord{
		{ID: "node/1", Name: "Police One", Category: domain.CategoryPolice, Location: domain.GeoPoint{Lat: 28.62, Lon: 77.21}, Address: "A", Distance: ptr(0.5), Phone: "100"},
		{ID: "node/2", Name: "Hospital Two", Category: domain.CategoryHospital, Location: domain.GeoPoint{Lat: 28.63, Lon: 77.22}, Address: "B", Distance: ptr(2.1)},
		{ID: "node/3", Name: "Pharmacy Three", Category: domain.CategoryPharmacy, Location: domain.GeoPoint{Lat: 28.64, Lon: 77.23}, Address: "C"},
	}
}

func newSync(t *testing.T) (*usecases.MapSynchronizer, *mockSurface) {
	t.Helper()
	surface := newMockSurface()
	m := usecases.NewMapSynchronizer(surface, usecases.DefaultMapOptions(), nil)
	require.NoError(t, m.Init(context.Background(), domain.LocationState{Status: domain.LocationUnresolved}))
	return m, surface
}

func TestMapSync_InitAtFallbackCenter(t *testing.T) {
	m, surface := newSync(t)

	center, zoom := surface.view()
	assert.Equal(t, delhi, center)
	assert.Equal(t, 11, zoom)
	assert.Equal(t, 1, surface.count("tile"))

	v := m.View()
	assert.True(t, v.Ready)
	assert.Equal(t, domain.LayerStandard, v.BaseLayer)
	assert.Empty(t, v.Markers)
}

func TestMapSync_FirstResolutionZoomsIn(t *testing.T) {
	m, surface := newSync(t)
	user := domain.GeoPoint{Lat: 28.7041, Lon: 77.1025}

	require.NoError(t, m.SyncLocation(resolvedAt(user)))
	center, zoom := surface.view()
	assert.Equal(t, user, center)
	assert.Equal(t, 15, zoom)
	assert.Contains(t, m.View().Markers, domain.UserMarkerID)

	// Later movement keeps the viewport where the user left it.
	require.NoError(t, m.SetViewForTest(delhi, 12))
	require.NoError(t, m.SyncLocation(resolvedAt(domain.GeoPoint{Lat: 28.705, Lon: 77.103})))
	_, zoom = surface.view()
	assert.Equal(t, 12, zoom)
	assert.Equal(t, 1, surface.count("marker"), "exactly one user marker")
}

func TestMapSync_DoubleToggleKeepsOneTileLayer(t *testing.T) {
	m, surface := newSync(t)

	layer, err := m.ToggleBaseLayer()
	require.NoError(t, err)
	assert.Equal(t, domain.LayerSatellite, layer)
	assert.Equal(t, 1, surface.count("tile"))
	assert.Equal(t, domain.TileSources[domain.LayerSatellite], surface.tiles()[0])

	layer, err = m.ToggleBaseLayer()
	require.NoError(t, err)
	assert.Equal(t, domain.LayerStandard, layer)
	assert.Equal(t, 1, surface.count("tile"))
	assert.Equal(t, domain.TileSources[domain.LayerStandard], surface.tiles()[0])
}

func TestMapSync_FailedToggleRestoresPreviousLayer(t *testing.T) {
	surface := newMockSurface()
	surface.tileErr = func(call int) error {
		if call == 2 {
			return errors.New("tile server unreachable")
		}
		return nil
	}
	m := usecases.NewMapSynchronizer(surface, usecases.DefaultMapOptions(), nil)
	require.NoError(t, m.Init(context.Background(), domain.LocationState{}))

	layer, err := m.ToggleBaseLayer()
	require.Error(t, err)
	assert.Equal(t, domain.LayerStandard, layer)
	assert.Equal(t, 1, surface.count("tile"), "exactly one tile layer after a failed toggle")
	assert.Equal(t, domain.TileSources[domain.LayerStandard], surface.tiles()[0])
	assert.Equal(t, domain.LayerStandard, m.View().BaseLayer)

	// The restored layer is tracked, so the next toggle swaps it cleanly.
	layer, err = m.ToggleBaseLayer()
	require.NoError(t, err)
	assert.Equal(t, domain.LayerSatellite, layer)
	assert.Equal(t, 1, surface.count("tile"))
	assert.Equal(t, domain.TileSources[domain.LayerSatellite], surface.tiles()[0])
}

func TestMapSync_ReconcileKeepsStableMarkers(t *testing.T) {
	m, surface := newSync(t)
	recs := records()

	require.NoError(t, m.SyncServices(recs))
	assert.Equal(t, 3, surface.count("marker"))
	kept, _ := surface.markerAt(recs[1].Location)

	require.NoError(t, m.SyncServices(recs[1:]))
	assert.Equal(t, 2, surface.count("marker"))
	stillThere, _ := surface.markerAt(recs[1].Location)
	assert.Equal(t, kept, stillThere, "kept marker must not be redrawn")

	require.NoError(t, m.SyncServices(nil))
	assert.Equal(t, 0, surface.count("marker"))
	assert.Empty(t, m.View().Markers)
}

func TestMapSync_SelectIsIdempotent(t *testing.T) {
	m, surface := newSync(t)
	recs := records()
	require.NoError(t, m.SyncServices(recs))

	require.NoError(t, m.Select("node/2"))
	center, zoom := surface.view()
	assert.Equal(t, recs[1].Location, center)
	assert.Equal(t, 17, zoom)
	_, l := surface.markerAt(recs[1].Location)
	require.NotNil(t, l)
	assert.True(t, l.icon.Selected)

	adds := surface.adds
	require.NoError(t, m.SetViewForTest(delhi, 11))
	require.NoError(t, m.Select("node/2"))
	assert.Equal(t, adds, surface.adds, "reselecting must not redraw markers")
	center, _ = surface.view()
	assert.Equal(t, recs[1].Location, center, "reselecting still recenters")

	require.NoError(t, m.Select("node/1"))
	_, prev := surface.markerAt(recs[1].Location)
	assert.False(t, prev.icon.Selected)
	assert.Equal(t, "node/1", m.View().SelectedID)

	assert.ErrorIs(t, m.Select("missing"), domain.ErrUnknownService)
}

func TestMapSync_SelectRestylesInPlace(t *testing.T) {
	surface := newMockSurface()
	m := usecases.NewMapSynchronizer(inPlaceSurface{surface}, usecases.DefaultMapOptions(), nil)
	require.NoError(t, m.Init(context.Background(), domain.LocationState{}))
	recs := records()
	require.NoError(t, m.SyncServices(recs))

	h1, _ := surface.markerAt(recs[0].Location)
	h2, _ := surface.markerAt(recs[1].Location)
	adds, removes := surface.adds, surface.removes

	require.NoError(t, m.Select("node/2"))
	require.NoError(t, m.Select("node/1"))

	assert.Equal(t, adds, surface.adds, "selection must not add layers")
	assert.Equal(t, removes, surface.removes, "selection must not remove layers")
	assert.Equal(t, 3, surface.iconSets)

	got1, l1 := surface.markerAt(recs[0].Location)
	got2, l2 := surface.markerAt(recs[1].Location)
	assert.Equal(t, h1, got1)
	assert.Equal(t, h2, got2)
	assert.True(t, l1.icon.Selected)
	assert.False(t, l2.icon.Selected)
	assert.NotEmpty(t, l2.popup, "popup survives the restyle")
}

func TestMapSync_FilteringOutSelectionClearsIt(t *testing.T) {
	m, _ := newSync(t)
	recs := records()
	require.NoError(t, m.SyncServices(recs))
	require.NoError(t, m.Select("node/3"))

	require.NoError(t, m.SyncServices(recs[:2]))
	assert.Empty(t, m.View().SelectedID)
}

func TestMapSync_MarkerClickSelects(t *testing.T) {
	m, surface := newSync(t)
	var clicked string
	m.OnSelect(func(id string) { clicked = id })
	recs := records()
	require.NoError(t, m.SyncServices(recs))

	_, l := surface.markerAt(recs[0].Location)
	require.NotNil(t, l.click)
	l.click()
	assert.Equal(t, "node/1", clicked)
}

func TestMapSync_DirectionsNeedResolvedUser(t *testing.T) {
	m, surface := newSync(t)
	recs := records()
	require.NoError(t, m.SyncServices(recs))

	popups := m.Popups()
	require.Len(t, popups, 3)
	assert.False(t, popups[0].DirectionsEnabled)
	_, l := surface.markerAt(recs[0].Location)
	assert.Contains(t, l.popup, "Directions need your location")

	user := domain.GeoPoint{Lat: 28.6, Lon: 77.2}
	require.NoError(t, m.SyncLocation(resolvedAt(user)))

	popups = m.Popups()
	assert.True(t, popups[0].DirectionsEnabled)
	assert.Equal(t, "https://www.google.com/maps/dir/28.6,77.2/28.62,77.21", popups[0].DirectionsURL)
	_, l = surface.markerAt(recs[0].Location)
	assert.True(t, strings.Contains(l.popup, "google.com/maps/dir"), "popup rebound after location resolved")
}

func TestMapSync_CenterOnUser(t *testing.T) {
	m, surface := newSync(t)
	assert.ErrorIs(t, m.CenterOnUser(), domain.ErrLocationUnavailable)

	user := domain.GeoPoint{Lat: 28.6, Lon: 77.2}
	require.NoError(t, m.SyncLocation(resolvedAt(user)))
	require.NoError(t, m.CenterOnUser())
	center, zoom := surface.view()
	assert.Equal(t, user, center)
	assert.Equal(t, 16, zoom)
}

func TestMapSync_RenderingInitFailure(t *testing.T) {
	surface := newMockSurface()
	surface.createErr = errors.New("tiles script blocked")
	m := usecases.NewMapSynchronizer(surface, usecases.DefaultMapOptions(), nil)

	err := m.Init(context.Background(), domain.LocationState{})
	require.ErrorIs(t, err, domain.ErrRenderingInit)

	// Results and selection still work without a surface.
	require.NoError(t, m.SyncServices(records()))
	require.NoError(t, m.Select("node/1"))
	v := m.View()
	assert.False(t, v.Ready)
	assert.NotEmpty(t, v.Error)
	assert.Equal(t, "node/1", v.SelectedID)
	assert.Equal(t, 0, surface.adds)

	_, err = m.ToggleBaseLayer()
	assert.ErrorIs(t, err, domain.ErrRenderingInit)
}

func TestMapSync_CloseDestroysSurface(t *testing.T) {
	m, surface := newSync(t)
	require.NoError(t, m.SyncServices(records()))
	require.NoError(t, m.Close())
	assert.True(t, surface.destroyed)
	assert.False(t, m.View().Ready)
	require.NoError(t, m.Close())
}

func TestMapSync_CloseDestroysPartiallyInitializedMap(t *testing.T) {
	surface := newMockSurface()
	surface.tileErr = func(int) error { return errors.New("tile server unreachable") }
	m := usecases.NewMapSynchronizer(surface, usecases.DefaultMapOptions(), nil)

	require.ErrorIs(t, m.Init(context.Background(), domain.LocationState{}), domain.ErrRenderingInit)
	assert.True(t, surface.created)
	assert.False(t, m.View().Ready)

	require.NoError(t, m.Close())
	assert.True(t, surface.destroyed, "a created map is released even when init did not finish")
}

func TestMapSync_CloseWithoutMapSkipsDestroy(t *testing.T) {
	surface := newMockSurface()
	surface.createErr = errors.New("tiles script blocked")
	m := usecases.NewMapSynchronizer(surface, usecases.DefaultMapOptions(), nil)

	require.Error(t, m.Init(context.Background(), domain.LocationState{}))
	require.NoError(t, m.Close())
	assert.False(t, surface.destroyed)
}
