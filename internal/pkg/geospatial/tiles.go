package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Tile is one circular query covering a grid cell.
type Tile struct {
	Bound    orb.Bound
	Center   domain.GeoPoint
	RadiusKm float64
}

// Tiles splits the square around center into cells of roughly cellKm per
// side and returns a circle per cell that covers it. Cells lying wholly
// outside the radiusKm circle are dropped.
func Tiles(center domain.GeoPoint, radiusKm, cellKm float64) []Tile {
	if radiusKm <= 0 || cellKm <= 0 {
		return nil
	}
	box := BoundingBox(center, radiusKm*1000)
	n := int(math.Ceil(2 * radiusKm / cellKm))
	dLon := (box.Max.Lon() - box.Min.Lon()) / float64(n)
	dLat := (box.Max.Lat() - box.Min.Lat()) / float64(n)
	origin := Point(center)

	tiles := make([]Tile, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			cell := orb.Bound{
				Min: orb.Point{box.Min.Lon() + float64(col)*dLon, box.Min.Lat() + float64(row)*dLat},
				Max: orb.Point{box.Min.Lon() + float64(col+1)*dLon, box.Min.Lat() + float64(row+1)*dLat},
			}
			c := cell.Center()
			halfDiag := geo.Distance(c, cell.Max) / 1000
			if geo.Distance(origin, c)/1000-halfDiag > radiusKm {
				continue
			}
			tiles = append(tiles, Tile{
				Bound:    cell,
				Center:   domain.GeoPoint{Lat: c.Lat(), Lon: c.Lon()},
				RadiusKm: halfDiag,
			})
		}
	}
	return tiles
}
