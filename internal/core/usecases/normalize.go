package usecases

import (
	"strconv"
	"strings"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
)

const addressNotAvailable = "Address not available"

// Normalize converts a raw tagged point into a ServiceRecord with its distance
// from center. It reports false for points without a usable coordinate.
func Normalize(center domain.GeoPoint, raw domain.RawPoint) (domain.ServiceRecord, bool) {
	if raw.Location.IsZero() || raw.Location.Validate() != nil {
		return domain.ServiceRecord{}, false
	}

	tags := raw.Tags
	amenity := tags["amenity"]
	category := domain.ParseCategory(amenity)

	name := strings.TrimSpace(tags["name"])
	if name == "" {
		label := amenity
		if label == "" {
			label = string(category)
		}
		name = strings.ToUpper(strings.ReplaceAll(label, "_", " ")) + " Service"
	}

	phone := strings.TrimSpace(tags["phone"])
	if phone == "" {
		phone = strings.TrimSpace(tags["contact:phone"])
	}

	distance := geospatial.DistanceKm(center, raw.Location)
	rec := domain.ServiceRecord{
		ID:         raw.ID,
		Name:       name,
		Category:   category,
		Location:   raw.Location,
		Phone:      phone,
		Address:    formatAddress(tags),
		Distance:   &distance,
		OpenStatus: ParseOpeningHours(tags["opening_hours"]),
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(tags["rating"]), 64); err == nil {
		rec.Rating = &v
	}
	return rec, true
}

func formatAddress(tags map[string]string) string {
	if full := strings.TrimSpace(tags["addr:full"]); full != "" {
		return full
	}
	street := strings.TrimSpace(tags["addr:street"] + " " + tags["addr:housenumber"])
	if street != "" {
		return street
	}
	return addressNotAvailable
}

// ParseOpeningHours maps an OSM opening_hours value onto an OpenStatus.
// Only unconditional values are decided; schedules stay unknown.
func ParseOpeningHours(v string) domain.OpenStatus {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "24/7":
		return domain.OpenNow
	case "off", "closed":
		return domain.ClosedNow
	default:
		return domain.OpenUnknown
	}
}

// FallbackRecord is the synthetic generic emergency line shown at center
// when discovery fails.
func FallbackRecord(center domain.GeoPoint, phone string) domain.ServiceRecord {
	zero := 0.0
	return domain.ServiceRecord{
		ID:         "emergency-1",
		Name:       "Emergency Services",
		Category:   domain.CategoryPolice,
		Location:   center,
		Phone:      phone,
		Address:    "Emergency Hotline",
		Distance:   &zero,
		OpenStatus: domain.OpenUnknown,
	}
}
