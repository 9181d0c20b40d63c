package usecases

import "github.com/samirrijal/safemap/internal/core/domain"

// SetViewForTest moves the viewport as a user pan/zoom would.
func (m *MapSynchronizer) SetViewForTest(center domain.GeoPoint, zoom int) error {
	return m.setView(center, zoom)
}
