package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within the WGS 84 value ranges.
// NaN and infinities are rejected.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return fmt.Errorf("coordinate is not a number")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90,90]", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180,180]", p.Lon)
	}
	return nil
}

// IsZero reports whether the point is the zero value (0,0). Overpass never
// returns a real amenity on Null Island, so the zero value means "no position".
func (p GeoPoint) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}
