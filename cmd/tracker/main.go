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

	natsadapter "github.com/samirrijal/safemap/internal/adapters/nats"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
	"github.com/samirrijal/safemap/internal/pkg/logging"
)

// tracker replays a GeoJSON track as device fixes for one session, the way a
// phone streaming its position over NATS would.
func main() {
	session := flag.String("session", "", "session id to report for")
	track := flag.String("track", "track.geojson", "GeoJSON FeatureCollection with the route")
	interval := flag.Duration("interval", 5*time.Second, "delay between fixes")
	accuracy := flag.Float64("accuracy", 15, "reported accuracy in meters")
	loop := flag.Bool("loop", false, "restart the track when it ends")
	flag.Parse()

	if *session == "" {
		log.Fatal("usage: tracker -session <id> [-track file.geojson]")
	}

	_ = godotenv.Load()
	cfg, err := config.Load("safemap-tracker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	data, err := os.ReadFile(*track)
	if err != nil {
		log.Fatalf("read track: %v", err)
	}
	points, err := geospatial.TrackPoints(data)
	if err != nil {
		log.Fatalf("track: %v", err)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("replaying track", "session", *session, "points", len(points), "interval", interval.String())

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if i == len(points) {
			if !*loop {
				break
			}
			i = 0
		}
		report := &domain.PositionReport{
			SessionID: *session,
			Position: &domain.Position{
				Location:  points[i],
				AccuracyM: *accuracy,
				Timestamp: time.Now(),
			},
		}
		if err := pub.PublishPositionReport(ctx, report); err != nil {
			slog.Error("publish fix failed", "index", i, "error", err)
		} else {
			slog.Debug("fix published", "index", i, "lat", points[i].Lat, "lon", points[i].Lon)
		}

		select {
		case <-ctx.Done():
			slog.Info("tracker stopped")
			return
		case <-ticker.C:
		}
	}
	slog.Info("track finished")
}
