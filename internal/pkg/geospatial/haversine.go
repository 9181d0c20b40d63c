package geospatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/safemap/internal/core/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between a and b.
func DistanceKm(a, b domain.GeoPoint) float64 {
	if a == b {
		return 0
	}
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(center domain.GeoPoint, radiusMeters float64) orb.Bound {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(center.Lat)))

	return orb.Bound{
		Min: orb.Point{center.Lon - lonDelta, center.Lat - latDelta},
		Max: orb.Point{center.Lon + lonDelta, center.Lat + latDelta},
	}
}

// Point converts a GeoPoint into an orb point (lon, lat order).
func Point(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
