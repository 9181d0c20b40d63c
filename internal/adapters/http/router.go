package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. Device position reports
	// have their own route and are not counted.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodPost && isPositionPath(c.Path())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 with a 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/hotlines", HotlinesHandler(deps))
	v1.Get("/services/nearby", timeout.NewWithContext(NearbyServicesHandler(deps), 15*time.Second))
	v1.Get("/services/nearby.geojson", timeout.NewWithContext(NearbyGeoJSONHandler(deps), 15*time.Second))

	sessions := v1.Group("/sessions")
	sessions.Post("/", timeout.NewWithContext(CreateSessionHandler(deps), 15*time.Second))
	sessions.Get("/:id", timeout.NewWithContext(GetSessionHandler(deps), 15*time.Second))
	sessions.Delete("/:id", timeout.NewWithContext(DeleteSessionHandler(deps), 15*time.Second))
	sessions.Post("/:id/position", timeout.NewWithContext(ReportPositionHandler(deps), 15*time.Second))
	sessions.Post("/:id/retry", timeout.NewWithContext(RetryHandler(deps), 15*time.Second))
	sessions.Post("/:id/notice/dismiss", timeout.NewWithContext(DismissNoticeHandler(deps), 15*time.Second))
	sessions.Put("/:id/filter", timeout.NewWithContext(SetFilterHandler(deps), 15*time.Second))
	sessions.Post("/:id/select", timeout.NewWithContext(SelectHandler(deps), 15*time.Second))
	sessions.Post("/:id/recenter", timeout.NewWithContext(RecenterHandler(deps), 15*time.Second))
	sessions.Post("/:id/layer/toggle", timeout.NewWithContext(ToggleLayerHandler(deps), 15*time.Second))
	sessions.Post("/:id/markers/:handle/click", timeout.NewWithContext(ClickMarkerHandler(deps), 15*time.Second))
	sessions.Get("/:id/render", timeout.NewWithContext(RenderOpsHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), 15*time.Second))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", WebSocketUpgrade(deps))
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func isPositionPath(path string) bool {
	return strings.HasPrefix(path, "/v1/sessions/") && strings.HasSuffix(path, "/position")
}
