package usecases

import (
	"math"
	"sort"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// Rank deduplicates records by identity key, keeping the first occurrence,
// and orders them by distance then name. Records without a distance sort last.
func Rank(records []domain.ServiceRecord) domain.DiscoveryResult {
	seen := make(map[string]struct{}, len(records))
	out := make(domain.DiscoveryResult, 0, len(records))
	for _, r := range records {
		key := r.IdentityKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rankLess(out[i], out[j])
	})
	return out
}

func rankLess(a, b domain.ServiceRecord) bool {
	da, db := a.DistanceOr(math.Inf(1)), b.DistanceOr(math.Inf(1))
	if da != db {
		return da < db
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.ID < b.ID
}
