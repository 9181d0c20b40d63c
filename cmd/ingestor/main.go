package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/samirrijal/safemap/internal/adapters/overpass"
	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
	"github.com/samirrijal/safemap/internal/pkg/logging"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cellKm := flag.Float64("cell-km", 5, "side length of each Overpass query cell")
	pause := flag.Duration("pause", 2*time.Second, "delay between Overpass requests")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load("safemap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	source := overpass.New(cfg.Overpass, logging.Component("overpass"))
	repo := postgres.NewServiceRepo(db)

	center := domain.GeoPoint{Lat: cfg.Ingest.CenterLat, Lon: cfg.Ingest.CenterLon}
	tiles := geospatial.Tiles(center, cfg.Ingest.RadiusKm, *cellKm)
	slog.Info("SafeMap ingestor starting",
		"center", center, "radius_km", cfg.Ingest.RadiusKm, "tiles", len(tiles))

	start := time.Now()
	var total, failed int
	for i, tile := range tiles {
		n, err := ingestTile(ctx, source, repo, tile, *pause)
		if ctx.Err() != nil {
			slog.Warn("ingestion interrupted", "tile", i)
			break
		}
		if err != nil {
			failed++
			slog.Error("tile failed", "tile", i, "center", tile.Center, "error", err)
			continue
		}
		total += n
		slog.Info("tile done", "tile", i+1, "of", len(tiles), "points", n)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		slog.Warn("count services failed", "error", err)
	}
	slog.Info("ingestion complete",
		"upserted", total, "failed_tiles", failed, "stored", count, "took", time.Since(start).String())
}

// ingestTile queries each category inside one tile and upserts the points.
// A failing category does not stop the others.
func ingestTile(ctx context.Context, source ports.GeoSource, repo ports.ServiceRepository, tile geospatial.Tile, pause time.Duration) (int, error) {
	var points []domain.RawPoint
	var lastErr error
	for _, cat := range domain.DiscoverableCategories {
		pts, err := source.Query(ctx, tile.Center, tile.RadiusKm, []domain.Category{cat})
		if err != nil {
			lastErr = err
			slog.Warn("category query failed", "category", cat, "error", err)
		} else {
			points = append(points, pts...)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(pause):
		}
	}
	if len(points) == 0 {
		return 0, lastErr
	}
	if err := repo.UpsertBatch(ctx, points); err != nil {
		return 0, err
	}
	for _, p := range points {
		metrics.IngestedServices.WithLabelValues(string(domain.ParseCategory(p.Tags["amenity"]))).Inc()
	}
	return len(points), nil
}
