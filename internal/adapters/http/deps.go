package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/adapters/valkey"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionManager
	Nearby   *usecases.NearbyService
	Hotlines []domain.Hotline // defaults to domain.DefaultHotlines
	NATS     *nats.Conn
	DB       *postgres.DB // only when discovery.source=postgres
	Cache    *valkey.Cache
}

func (d *Dependencies) hotlines() []domain.Hotline {
	if len(d.Hotlines) == 0 {
		return domain.DefaultHotlines
	}
	return d.Hotlines
}
