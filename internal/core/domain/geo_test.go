package domain

import (
	"math"
	"testing"
)

func TestGeoPointValidate(t *testing.T) {
	cases := []struct {
		name string
		p    GeoPoint
		ok   bool
	}{
		{"delhi", GeoPoint{Lat: 28.6139, Lon: 77.2090}, true},
		{"poles and antimeridian", GeoPoint{Lat: -90, Lon: 180}, true},
		{"lat too high", GeoPoint{Lat: 90.5, Lon: 0}, false},
		{"lon too low", GeoPoint{Lat: 0, Lon: -181}, false},
		{"nan lat", GeoPoint{Lat: math.NaN(), Lon: 77.2}, false},
		{"nan lon", GeoPoint{Lat: 28.6, Lon: math.NaN()}, false},
		{"infinite lat", GeoPoint{Lat: math.Inf(1), Lon: 77.2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Errorf("expected %+v to be rejected", tc.p)
			}
		})
	}
}
