package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// ErrEmptyTrack is returned when a GeoJSON document holds no usable points.
var ErrEmptyTrack = errors.New("track has no points")

// TrackPoints flattens a GeoJSON FeatureCollection into the ordered points of
// its Point, MultiPoint and LineString geometries.
func TrackPoints(data []byte) ([]domain.GeoPoint, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}

	var out []domain.GeoPoint
	add := func(p orb.Point) {
		out = append(out, domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()})
	}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			add(g)
		case orb.MultiPoint:
			for _, p := range g {
				add(p)
			}
		case orb.LineString:
			for _, p := range g {
				add(p)
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyTrack
	}
	for i, p := range out {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("track point %d: %w", i, err)
		}
	}
	return out, nil
}
