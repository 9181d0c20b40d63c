package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/samirrijal/safemap/internal/adapters/geolocation"
	"github.com/samirrijal/safemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/adapters/overpass"
	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/adapters/render"
	"github.com/samirrijal/safemap/internal/adapters/valkey"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/core/usecases"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/logging"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

func main() {
	// Local development reads SAFEMAP_* overrides from .env
	_ = godotenv.Load()

	cfg, err := config.Load("safemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Discovery source
	var source ports.GeoSource
	switch cfg.Discovery.Source {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolMetrics(ctx, 15*time.Second)
		deps.DB = db
		source = postgres.NewServiceRepo(db)
	default:
		source = overpass.New(cfg.Overpass, logging.Component("overpass"))
	}
	slog.Info("discovery source selected", "source", source.Name())

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, render ops served by polling only", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		deps.NATS = pub.Conn()
	}

	discoveryOpts := usecases.DiscoveryOptions{
		RadiusKm:        cfg.Discovery.RadiusKm,
		CacheTTLSeconds: cfg.Discovery.CacheTTLSeconds,
		EmergencyPhone:  cfg.Discovery.EmergencyPhone,
	}
	sessionOpts := usecases.SessionOptions{
		Discovery:        discoveryOpts,
		Tiers:            tiersFromConfig(cfg.Geolocation),
		RefreshDistanceM: cfg.Discovery.RefreshDistanceM,
		Map: usecases.MapOptions{
			Fallback:     domain.GeoPoint{Lat: cfg.Map.FallbackLat, Lon: cfg.Map.FallbackLon},
			WideZoom:     cfg.Map.WideZoom,
			CloseZoom:    cfg.Map.CloseZoom,
			RecenterZoom: cfg.Map.RecenterZoom,
			SelectZoom:   cfg.Map.SelectZoom,
		},
	}

	sessionLogger := logging.Component("session")
	manager := usecases.NewSessionManager(ctx, usecases.ManagerDeps{
		Source:    source,
		Cache:     cache,
		Publisher: publisher,
		NewLocator: func(supported bool) ports.ReportedGeolocator {
			return geolocation.NewReportedLocator(supported)
		},
		NewSurface: func(sessionID string) ports.InteractiveSurface {
			if publisher == nil {
				return render.NewCommandSurface(nil)
			}
			return render.NewCommandSurface(render.PublisherSink(publisher, sessionID, sessionLogger))
		},
	}, sessionOpts, time.Duration(cfg.Session.IdleTimeoutSeconds)*time.Second, sessionLogger)
	go manager.Run(ctx, time.Minute)

	deps.Sessions = manager
	deps.Nearby = usecases.NewNearbyService(source, cache, discoveryOpts, logging.Component("nearby"))

	// Device position reports arriving over NATS
	if pub != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("position subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err = sub.SubscribePositionReports(ctx, func(_ context.Context, report *domain.PositionReport) error {
				return manager.Report(*report)
			})
			if err != nil {
				slog.Warn("subscribe position reports failed", "error", err)
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "SafeMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		ExposeHeaders:    "Link, Location, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	cancel()
	manager.Shutdown()

	slog.Info("server stopped")
}

func tiersFromConfig(g config.GeolocationConfig) map[domain.AccuracyTier]ports.PositionOptions {
	return map[domain.AccuracyTier]ports.PositionOptions{
		domain.TierHigh: {
			HighAccuracy: true,
			Timeout:      time.Duration(g.HighTimeoutSeconds) * time.Second,
			MaximumAge:   time.Duration(g.HighMaxAgeSeconds) * time.Second,
		},
		domain.TierLow: {
			HighAccuracy: false,
			Timeout:      time.Duration(g.LowTimeoutSeconds) * time.Second,
			MaximumAge:   time.Duration(g.LowMaxAgeSeconds) * time.Second,
		},
	}
}
