package usecases_test

import (
	"testing"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

func TestNormalize_Defaults(t *testing.T) {
	center := domain.GeoPoint{Lat: 28.6315, Lon: 77.2167}
	raw := domain.RawPoint{
		ID:       "way/42",
		Location: domain.GeoPoint{Lat: 28.6519, Lon: 77.1909},
		Tags:     map[string]string{"amenity": "fire_station"},
	}

	rec, ok := usecases.Normalize(center, raw)
	if !ok {
		t.Fatal("expected record")
	}
	if rec.Name != "FIRE STATION Service" {
		t.Errorf("expected synthesized name, got %q", rec.Name)
	}
	if rec.Address != "Address not available" {
		t.Errorf("expected fallback address, got %q", rec.Address)
	}
	if rec.Category != domain.CategoryFireStation {
		t.Errorf("expected fire_station, got %s", rec.Category)
	}
	if rec.OpenStatus != domain.OpenUnknown {
		t.Errorf("missing opening_hours must be unknown, got %s", rec.OpenStatus)
	}
	if rec.Distance == nil || *rec.Distance < 3.2 || *rec.Distance > 3.6 {
		t.Errorf("expected distance ≈3.4 km, got %v", rec.Distance)
	}
	if rec.Rating != nil {
		t.Errorf("expected no rating, got %v", *rec.Rating)
	}
}

func TestNormalize_RecognizedTags(t *testing.T) {
	center := domain.GeoPoint{Lat: 28.6, Lon: 77.2}
	raw := domain.RawPoint{
		ID:       "node/7",
		Location: domain.GeoPoint{Lat: 28.61, Lon: 77.21},
		Tags: map[string]string{
			"amenity":          "hospital",
			"name":             "  Safdarjung Hospital ",
			"contact:phone":    "+91 11 2670 7444",
			"addr:street":      "Ring Road",
			"addr:housenumber": "1",
			"opening_hours":    "24/7",
			"rating":           "4.2",
			"wheelchair":       "yes",
		},
	}

	rec, ok := usecases.Normalize(center, raw)
	if !ok {
		t.Fatal("expected record")
	}
	if rec.Name != "Safdarjung Hospital" {
		t.Errorf("unexpected name %q", rec.Name)
	}
	if rec.Phone != "+91 11 2670 7444" {
		t.Errorf("expected contact:phone fallback, got %q", rec.Phone)
	}
	if rec.Address != "Ring Road 1" {
		t.Errorf("unexpected address %q", rec.Address)
	}
	if rec.OpenStatus != domain.OpenNow {
		t.Errorf("expected open, got %s", rec.OpenStatus)
	}
	if rec.Rating == nil || *rec.Rating != 4.2 {
		t.Errorf("unexpected rating %v", rec.Rating)
	}
}

func TestNormalize_FullAddressWins(t *testing.T) {
	raw := rawPoint("node/1", "police", "Station", 28.6, 77.2)
	raw.Tags["addr:full"] = "Sansad Marg, New Delhi"
	raw.Tags["addr:street"] = "ignored"

	rec, _ := usecases.Normalize(domain.GeoPoint{Lat: 28.6, Lon: 77.2}, raw)
	if rec.Address != "Sansad Marg, New Delhi" {
		t.Errorf("unexpected address %q", rec.Address)
	}
}

func TestNormalize_UnknownAmenityIsOther(t *testing.T) {
	rec, ok := usecases.Normalize(domain.GeoPoint{Lat: 1, Lon: 1}, rawPoint("n", "clinic", "", 1.001, 1.001))
	if !ok {
		t.Fatal("expected record")
	}
	if rec.Category != domain.CategoryOther {
		t.Errorf("expected other, got %s", rec.Category)
	}
	if rec.Name != "CLINIC Service" {
		t.Errorf("unexpected name %q", rec.Name)
	}
}

func TestNormalize_DropsMissingCoordinates(t *testing.T) {
	if _, ok := usecases.Normalize(domain.GeoPoint{Lat: 1, Lon: 1}, rawPoint("n", "police", "x", 0, 0)); ok {
		t.Error("expected point without coordinates to be dropped")
	}
	if _, ok := usecases.Normalize(domain.GeoPoint{Lat: 1, Lon: 1}, rawPoint("n", "police", "x", 95, 0)); ok {
		t.Error("expected out-of-range point to be dropped")
	}
}

func TestParseOpeningHours(t *testing.T) {
	tests := map[string]domain.OpenStatus{
		"":                  domain.OpenUnknown,
		"24/7":              domain.OpenNow,
		"off":               domain.ClosedNow,
		"Closed":            domain.ClosedNow,
		"Mo-Fr 09:00-17:00": domain.OpenUnknown,
	}
	for in, want := range tests {
		if got := usecases.ParseOpeningHours(in); got != want {
			t.Errorf("ParseOpeningHours(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFallbackRecord(t *testing.T) {
	center := domain.GeoPoint{Lat: 28.6, Lon: 77.2}
	rec := usecases.FallbackRecord(center, "112")

	if rec.Location != center {
		t.Errorf("fallback must sit at the query center, got %+v", rec.Location)
	}
	if rec.Phone != "112" || rec.Name != "Emergency Services" {
		t.Errorf("unexpected fallback %+v", rec)
	}
	if rec.Distance == nil || *rec.Distance != 0 {
		t.Error("fallback distance must be 0")
	}
	if rec.OpenStatus != domain.OpenUnknown {
		t.Errorf("fallback has no hours data, expected unknown, got %s", rec.OpenStatus)
	}
}
