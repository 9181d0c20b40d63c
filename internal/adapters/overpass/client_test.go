package overpass_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/safemap/internal/adapters/overpass"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/config"
)

const sampleResponse = `{
  "elements": [
    {"type": "node", "id": 101, "lat": 28.63, "lon": 77.21, "tags": {"amenity": "police", "name": "Parliament Street"}},
    {"type": "way", "id": 202, "center": {"lat": 28.62, "lon": 77.20}, "tags": {"amenity": "police"}},
    {"type": "relation", "id": 303, "tags": {"amenity": "police"}}
  ]
}`

func newClient(endpoints ...string) *overpass.Client {
	return overpass.New(config.OverpassConfig{Endpoints: endpoints, TimeoutSeconds: 5, UserAgent: "SafeMap-test"}, nil)
}

func TestBuildQuery_SingleCategory(t *testing.T) {
	q := overpass.BuildQuery(domain.GeoPoint{Lat: 28.6139, Lon: 77.209}, 5000, []domain.Category{domain.CategoryPolice})

	assert.Contains(t, q, "[out:json][timeout:25];")
	assert.Contains(t, q, `node["amenity"="police"](around:5000,28.6139,77.209);`)
	assert.Contains(t, q, `way["amenity"="police"](around:5000,28.6139,77.209);`)
	assert.True(t, strings.HasSuffix(q, "out center;"))
}

func TestBuildQuery_ManyCategories(t *testing.T) {
	q := overpass.BuildQuery(domain.GeoPoint{Lat: 1, Lon: 2}, 100, []domain.Category{domain.CategoryPolice, domain.CategoryHospital})
	assert.Contains(t, q, `["amenity"~"^(police|hospital)$"]`)
}

func TestQuery_ParsesNodesAndWayCenters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "SafeMap-test", r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), `"amenity"="police"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	points, err := newClient(srv.URL).Query(context.Background(), domain.GeoPoint{Lat: 28.6, Lon: 77.2}, 5, []domain.Category{domain.CategoryPolice})
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "node/101", points[0].ID)
	assert.Equal(t, domain.GeoPoint{Lat: 28.63, Lon: 77.21}, points[0].Location)
	assert.Equal(t, "Parliament Street", points[0].Tags["name"])
	assert.Equal(t, "way/202", points[1].ID)
	assert.Equal(t, domain.GeoPoint{Lat: 28.62, Lon: 77.20}, points[1].Location)
}

func TestQuery_FallsBackToNextMirror(t *testing.T) {
	var busyHits int32
	busy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&busyHits, 1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer busy.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer ok.Close()

	points, err := newClient(busy.URL, ok.URL).Query(context.Background(), domain.GeoPoint{Lat: 28.6, Lon: 77.2}, 5, []domain.Category{domain.CategoryPolice})
	require.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&busyHits))
}

func TestQuery_AllMirrorsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer bad.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer garbage.Close()

	_, err := newClient(bad.URL, garbage.URL).Query(context.Background(), domain.GeoPoint{Lat: 28.6, Lon: 77.2}, 5, []domain.Category{domain.CategoryPolice})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 504")
	assert.Contains(t, err.Error(), "decode")
}

func TestQuery_NoCategoriesIsEmpty(t *testing.T) {
	points, err := newClient("http://unused.invalid").Query(context.Background(), domain.GeoPoint{}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestClient_Contract(t *testing.T) {
	c := newClient("http://unused.invalid")
	assert.Equal(t, "overpass", c.Name())
	assert.True(t, c.PerCategory())
}
