package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

// NearbyResponse is a page of ranked services around a point.
type NearbyResponse struct {
	Center     domain.GeoPoint        `json:"center"`
	RadiusKm   float64                `json:"radius_km"`
	Fallback   bool                   `json:"fallback"`
	Data       []domain.ServiceRecord `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

// HotlinesHandler returns the static emergency phone numbers.
func HotlinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(deps.hotlines())
	}
}

// queryFloat parses a required float query parameter.
func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

// findNearby runs the shared lat/lon/radius_km/category/q query.
func findNearby(c *fiber.Ctx, deps *Dependencies) (*usecases.NearbyResult, error) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		return nil, errBadRequest(c, err.Error())
	}
	lon, err := queryFloat(c, "lon")
	if err != nil {
		return nil, errBadRequest(c, err.Error())
	}
	radius := c.QueryFloat("radius_km", 0)
	if radius < 0 {
		return nil, errBadRequest(c, "radius_km must be positive")
	}
	criteria := domain.FilterCriteria{
		SearchText: c.Query("q"),
		Category:   c.Query("category", domain.CategoryAll),
	}
	if len(criteria.SearchText) > 200 {
		return nil, errBadRequest(c, "query too long (max 200 characters)")
	}

	res, err := deps.Nearby.Find(c.UserContext(), domain.GeoPoint{Lat: lat, Lon: lon}, radius, criteria)
	if err != nil {
		return nil, errDomain(c, err)
	}
	return res, nil
}

// NearbyServicesHandler discovers, ranks and filters services around a point.
func NearbyServicesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := findNearby(c, deps)
		if res == nil {
			return err
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		services := res.Services
		total := len(services)
		if offset >= total {
			services = []domain.ServiceRecord{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			services = services[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		if res.Fallback {
			c.Set("Cache-Control", "no-store")
		}
		return c.JSON(NearbyResponse{
			Center:     res.Center,
			RadiusKm:   res.RadiusKm,
			Fallback:   res.Fallback,
			Data:       services,
			Pagination: pg,
		})
	}
}

// NearbyGeoJSONHandler returns the same services as a GeoJSON
// FeatureCollection of points.
func NearbyGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := findNearby(c, deps)
		if res == nil {
			return err
		}

		data, err := servicesGeoJSON(res.Services).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Content-Type", "application/geo+json")
		if res.Fallback {
			c.Set("Cache-Control", "no-store")
		}
		return c.Send(data)
	}
}

func servicesGeoJSON(services []domain.ServiceRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range services {
		f := geojson.NewFeature(orb.Point{s.Location.Lon, s.Location.Lat})
		f.ID = s.ID
		info := s.Category.Info()
		f.Properties["name"] = s.Name
		f.Properties["category"] = string(s.Category)
		f.Properties["label"] = info.Label
		f.Properties["marker-color"] = info.Color
		f.Properties["address"] = s.Address
		f.Properties["open_status"] = string(s.OpenStatus)
		if s.Phone != "" {
			f.Properties["phone"] = s.Phone
		}
		if s.Distance != nil {
			f.Properties["distance_km"] = *s.Distance
			f.Properties["nearby"] = usecases.IsNearby(s)
		}
		fc.Append(f)
	}
	return fc
}
