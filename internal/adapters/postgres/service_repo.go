package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// maxNearby caps one radius query.
const maxNearby = 500

// ServiceRepo implements ports.ServiceRepository over the PostGIS snapshot
// written by the ingestor.
type ServiceRepo struct {
	db *DB
}

// NewServiceRepo creates a new ServiceRepo.
func NewServiceRepo(db *DB) *ServiceRepo {
	return &ServiceRepo{db: db}
}

// Name identifies the source in logs and metrics.
func (r *ServiceRepo) Name() string { return "postgres" }

// PerCategory is false: one query covers every category.
func (r *ServiceRepo) PerCategory() bool { return false }

// Query returns the stored points within radiusKm of center, nearest first.
func (r *ServiceRepo) Query(ctx context.Context, center domain.GeoPoint, radiusKm float64, categories []domain.Category) ([]domain.RawPoint, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanPostGISQuery)
	span.SetAttributes(attribute.Float64("radius_km", radiusKm))
	defer span.End()

	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT osm_id,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       tags
		FROM emergency_services
		WHERE category = ANY($1)
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography
		LIMIT $5
	`, cats, center.Lon, center.Lat, radiusKm*1000, maxNearby)
	if err != nil {
		return nil, fmt.Errorf("query nearby services: %w", err)
	}
	defer rows.Close()

	var out []domain.RawPoint
	for rows.Next() {
		var p domain.RawPoint
		if err := rows.Scan(&p.ID, &p.Location.Lat, &p.Location.Lon, &p.Tags); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

// UpsertBatch inserts or refreshes many points using pgx.Batch.
func (r *ServiceRepo) UpsertBatch(ctx context.Context, points []domain.RawPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		tags := p.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		batch.Queue(`
			INSERT INTO emergency_services (osm_id, category, name, location, tags, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, now())
			ON CONFLICT (osm_id) DO UPDATE
			SET category = EXCLUDED.category, name = EXCLUDED.name,
			    location = EXCLUDED.location, tags = EXCLUDED.tags,
			    updated_at = now()
		`, p.ID, string(domain.ParseCategory(tags["amenity"])), tags["name"],
			p.Location.Lon, p.Location.Lat, tags)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored points.
func (r *ServiceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM emergency_services`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return n, nil
}
