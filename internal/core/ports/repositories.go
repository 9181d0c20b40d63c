package ports

import (
	"context"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// ServiceRepository is a GeoSource backed by a local snapshot that the
// ingestor keeps fresh.
type ServiceRepository interface {
	GeoSource
	UpsertBatch(ctx context.Context, points []domain.RawPoint) error
	Count(ctx context.Context) (int, error)
}
