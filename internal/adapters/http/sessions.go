package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

// createSessionRequest describes the device opening a session.
type createSessionRequest struct {
	GeolocationSupported *bool `json:"geolocation_supported"`
}

// positionRequest is a device fix or a geolocation failure.
type positionRequest struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	AccuracyM float64  `json:"accuracy_m"`
	Error     string   `json:"error"`
}

type retryRequest struct {
	GeolocationSupported *bool `json:"geolocation_supported"`
}

type selectRequest struct {
	ID string `json:"id"`
}

// parseOptionalBody parses a JSON body when one is present.
func parseOptionalBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(v)
}

func session(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	return deps.Sessions.Get(c.Params("id"))
}

// respondSnapshot writes the session's current snapshot.
func respondSnapshot(c *fiber.Ctx, s *usecases.Session) error {
	snap, err := s.Snapshot(c.UserContext())
	if err != nil {
		return errDomain(c, err)
	}
	c.Set("Cache-Control", "no-store")
	return c.JSON(snap)
}

// CreateSessionHandler opens a live map session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := parseOptionalBody(c, &req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		supported := true
		if req.GeolocationSupported != nil {
			supported = *req.GeolocationSupported
		}

		snap, err := deps.Sessions.Create(c.UserContext(), supported)
		if err != nil {
			return errDomain(c, err)
		}
		c.Set("Location", "/v1/sessions/"+snap.ID)
		c.Set("Cache-Control", "no-store")
		return c.Status(201).JSON(snap)
	}
}

// GetSessionHandler returns a session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// ReportPositionHandler accepts a device fix or failure for a session.
func ReportPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		report := domain.PositionReport{SessionID: c.Params("id")}
		switch {
		case req.Error != "":
			report.Error = domain.ParseGeolocationErrorKind(req.Error)
		case req.Lat != nil && req.Lon != nil:
			at := domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon}
			if err := at.Validate(); err != nil {
				return errBadRequest(c, err.Error())
			}
			report.Position = &domain.Position{Location: at, AccuracyM: req.AccuracyM}
		default:
			return errBadRequest(c, "either lat and lon or error is required")
		}

		if err := deps.Sessions.Report(report); err != nil {
			return errDomain(c, err)
		}
		return c.Status(202).JSON(fiber.Map{"status": "accepted"})
	}
}

// RetryHandler retries geolocation after a failure.
func RetryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req retryRequest
		if err := parseOptionalBody(c, &req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		id := c.Params("id")
		if err := deps.Sessions.Retry(c.UserContext(), id, req.GeolocationSupported); err != nil {
			return errDomain(c, err)
		}
		s, err := deps.Sessions.Get(id)
		if err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// DismissNoticeHandler hides the location failure notice.
func DismissNoticeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		if err := s.DismissNotice(c.UserContext()); err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// SetFilterHandler replaces the session's search text and category.
func SetFilterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var criteria domain.FilterCriteria
		if err := c.BodyParser(&criteria); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if len(criteria.SearchText) > 200 {
			return errBadRequest(c, "search too long (max 200 characters)")
		}
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		if _, err := s.SetFilter(c.UserContext(), criteria); err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// SelectHandler selects a displayed service.
func SelectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil || req.ID == "" {
			return errBadRequest(c, "id is required")
		}
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		if err := s.Select(c.UserContext(), req.ID); err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// RecenterHandler centers the map on the user's location.
func RecenterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		if err := s.CenterOnUser(c.UserContext()); err != nil {
			return errDomain(c, err)
		}
		return respondSnapshot(c, s)
	}
}

// ToggleLayerHandler swaps the standard and satellite base layers.
func ToggleLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := session(c, deps)
		if err != nil {
			return errDomain(c, err)
		}
		layer, err := s.ToggleBaseLayer(c.UserContext())
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(fiber.Map{"base_layer": layer})
	}
}

// ClickMarkerHandler forwards a marker click from clients without a socket.
func ClickMarkerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Click(c.Params("id"), ports.LayerHandle(c.Params("handle"))); err != nil {
			return errDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// RenderOpsHandler returns the operations that rebuild the session's map.
func RenderOpsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ops, err := deps.Sessions.Replay(c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		if ops == nil {
			ops = []domain.RenderOp{}
		}
		return c.JSON(ops)
	}
}

// DeleteSessionHandler tears a session down.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errDomain(c, err)
		}
		return c.SendStatus(204)
	}
}
