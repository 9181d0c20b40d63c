package usecases

import (
	"strings"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// ApplyFilter returns the records of result matching criteria, preserving order.
// An unknown category matches nothing.
func ApplyFilter(result domain.DiscoveryResult, criteria domain.FilterCriteria) []domain.ServiceRecord {
	category := strings.TrimSpace(criteria.Category)
	if category == "" {
		category = domain.CategoryAll
	}
	needle := strings.ToLower(strings.TrimSpace(criteria.SearchText))

	out := make([]domain.ServiceRecord, 0, len(result))
	for _, r := range result {
		if category != domain.CategoryAll && string(r.Category) != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Address), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}
