package usecases_test

import (
	"testing"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

func TestApplyFilter_PoliceAroundUser(t *testing.T) {
	center := domain.GeoPoint{Lat: 28.7041, Lon: 77.1025}
	raw := []domain.RawPoint{
		rawPoint("node/1", "hospital", "North Hospital", 28.7200, 77.1100),
		rawPoint("node/2", "police", "Far Police", 28.7300, 77.1300),
		rawPoint("node/3", "hospital", "Ring Road Hospital", 28.6950, 77.0950),
		rawPoint("node/4", "police", "Near Police", 28.7060, 77.1030),
		rawPoint("node/5", "hospital", "Model Town Hospital", 28.7100, 77.1300),
	}
	var records []domain.ServiceRecord
	for _, p := range raw {
		rec, ok := usecases.Normalize(center, p)
		if !ok {
			t.Fatalf("normalize dropped %s", p.ID)
		}
		records = append(records, rec)
	}

	got := usecases.ApplyFilter(usecases.Rank(records), domain.FilterCriteria{Category: "police"})

	if len(got) != 2 {
		t.Fatalf("expected 2 police records, got %d", len(got))
	}
	if got[0].ID != "node/4" || got[1].ID != "node/2" {
		t.Errorf("expected ascending distance [node/4 node/2], got [%s %s]", got[0].ID, got[1].ID)
	}
	if *got[0].Distance > *got[1].Distance {
		t.Error("records not sorted by distance")
	}
}

func TestApplyFilter(t *testing.T) {
	result := domain.DiscoveryResult{
		{ID: "1", Name: "AIIMS Hospital", Category: domain.CategoryHospital, Address: "Ansari Nagar"},
		{ID: "2", Name: "Parliament Street Police", Category: domain.CategoryPolice, Address: "Sansad Marg"},
		{ID: "3", Name: "Apollo Pharmacy", Category: domain.CategoryPharmacy, Address: "Connaught Place"},
	}

	tests := []struct {
		name     string
		criteria domain.FilterCriteria
		want     []string
	}{
		{"empty criteria matches all", domain.FilterCriteria{}, []string{"1", "2", "3"}},
		{"all category", domain.FilterCriteria{Category: "all"}, []string{"1", "2", "3"}},
		{"category only", domain.FilterCriteria{Category: "pharmacy"}, []string{"3"}},
		{"name search is case insensitive", domain.FilterCriteria{SearchText: "aiims"}, []string{"1"}},
		{"address search", domain.FilterCriteria{SearchText: "MARG"}, []string{"2"}},
		{"search and category", domain.FilterCriteria{SearchText: "a", Category: "hospital"}, []string{"1"}},
		{"unknown category matches nothing", domain.FilterCriteria{Category: "veterinary"}, nil},
		{"no match", domain.FilterCriteria{SearchText: "zzz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecases.ApplyFilter(result, tt.criteria)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d records, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestApplyFilter_EmptyResult(t *testing.T) {
	got := usecases.ApplyFilter(nil, domain.FilterCriteria{SearchText: "x", Category: "police"})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
