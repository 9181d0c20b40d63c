package domain

import "strings"

// Category is the closed set of emergency service kinds.
type Category string

const (
	CategoryPolice      Category = "police"
	CategoryHospital    Category = "hospital"
	CategoryFireStation Category = "fire_station"
	CategoryPharmacy    Category = "pharmacy"
	CategoryOther       Category = "other"
)

// CategoryAll is the filter value that matches every category.
const CategoryAll = "all"

// CategoryInfo holds the presentation attributes of a category.
type CategoryInfo struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// categoryInfo must have an entry for every Category constant.
var categoryInfo = map[Category]CategoryInfo{
	CategoryPolice:      {Label: "Police Station", Icon: "👮", Color: "#ef4444"},
	CategoryHospital:    {Label: "Hospital", Icon: "🏥", Color: "#10b981"},
	CategoryFireStation: {Label: "Fire Station", Icon: "🚒", Color: "#f97316"},
	CategoryPharmacy:    {Label: "Pharmacy", Icon: "💊", Color: "#8b5cf6"},
	CategoryOther:       {Label: "Service", Icon: "🏢", Color: "#6b7280"},
}

// DiscoverableCategories are the categories queried from geodata sources.
var DiscoverableCategories = []Category{
	CategoryPolice,
	CategoryHospital,
	CategoryFireStation,
	CategoryPharmacy,
}

// Info returns the presentation attributes for c, falling back to "other".
func (c Category) Info() CategoryInfo {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return categoryInfo[CategoryOther]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// ParseCategory maps an OSM amenity value onto a Category.
func ParseCategory(amenity string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(amenity)))
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// OpenStatus is the three-valued opening state of a service.
type OpenStatus string

const (
	OpenUnknown OpenStatus = "unknown"
	OpenNow     OpenStatus = "open"
	ClosedNow   OpenStatus = "closed"
)

// ServiceRecord is a normalized emergency service point of interest.
type ServiceRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   Category   `json:"category"`
	Location   GeoPoint   `json:"location"`
	Phone      string     `json:"phone,omitempty"`
	Address    string     `json:"address"`
	Distance   *float64   `json:"distance_km,omitempty"` // computed field
	OpenStatus OpenStatus `json:"open_status"`
	Rating     *float64   `json:"rating,omitempty"`
}

// DistanceOr returns the known distance or def.
func (s ServiceRecord) DistanceOr(def float64) float64 {
	if s.Distance == nil {
		return def
	}
	return *s.Distance
}

// IdentityKey returns the deduplication key (normalized name, category).
func (s ServiceRecord) IdentityKey() string {
	return NormalizeName(s.Name) + "|" + string(s.Category)
}

// NormalizeName lower-cases a name and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// DiscoveryResult is a ranked, deduplicated sequence of service records.
// It is replaced wholesale, never mutated in place.
type DiscoveryResult []ServiceRecord

// RawPoint is a tagged point as returned by a geospatial query service.
type RawPoint struct {
	ID       string            `json:"id"`
	Location GeoPoint          `json:"location"`
	Tags     map[string]string `json:"tags"`
}

// FilterCriteria narrows a discovery result for display.
type FilterCriteria struct {
	SearchText string `json:"search"`
	Category   string `json:"category"` // "all" or a Category value
}

// Hotline is a static emergency phone number.
type Hotline struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DefaultHotlines are always shown regardless of subsystem health.
var DefaultHotlines = []Hotline{
	{Name: "Police Emergency", Phone: "100"},
	{Name: "Women Helpline", Phone: "1091"},
	{Name: "Medical Emergency", Phone: "108"},
	{Name: "Fire Emergency", Phone: "101"},
}
