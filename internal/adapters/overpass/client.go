// Package overpass queries the OpenStreetMap Overpass API for emergency
// amenities around a point.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// serverTimeout is the [timeout:N] directive sent with every query.
const serverTimeout = 25

// Client implements ports.GeoSource against one or more Overpass mirrors.
// Mirrors are tried in order; the first successful answer wins.
type Client struct {
	endpoints  []string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an Overpass client from configuration.
func New(cfg config.OverpassConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 35 * time.Second
	}
	return &Client{
		endpoints:  cfg.Endpoints,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "overpass"),
	}
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string { return "overpass" }

// PerCategory is true: one query per category keeps a slow category from
// failing the others.
func (c *Client) PerCategory() bool { return true }

// BuildQuery renders the Overpass QL for categories within radiusM metres of
// center. Ways are returned with their center point.
func BuildQuery(center domain.GeoPoint, radiusM int, categories []domain.Category) string {
	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = string(cat)
	}
	filter := `["amenity"="` + names[0] + `"]`
	if len(names) > 1 {
		filter = `["amenity"~"^(` + strings.Join(names, "|") + `)$"]`
	}
	around := fmt.Sprintf("(around:%d,%s,%s)", radiusM,
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", serverTimeout)
	fmt.Fprintf(&b, "  node%s%s;\n", filter, around)
	fmt.Fprintf(&b, "  way%s%s;\n", filter, around)
	b.WriteString(");\nout center;")
	return b.String()
}

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// Query returns the raw amenity points within radiusKm of center.
func (c *Client) Query(ctx context.Context, center domain.GeoPoint, radiusKm float64, categories []domain.Category) ([]domain.RawPoint, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	if len(c.endpoints) == 0 {
		return nil, errors.New("overpass: no endpoints configured")
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanOverpassFetch)
	defer span.End()

	q := BuildQuery(center, int(radiusKm*1000), categories)
	var errs []error
	for _, endpoint := range c.endpoints {
		points, err := c.post(ctx, endpoint, q)
		if err == nil {
			span.SetAttributes(attribute.String("overpass.endpoint", endpoint), attribute.Int("overpass.elements", len(points)))
			return points, nil
		}
		c.logger.Warn("overpass endpoint failed", "endpoint", endpoint, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	err := errors.Join(errs...)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all endpoints failed")
	return nil, fmt.Errorf("overpass: %w", err)
}

func (c *Client) post(ctx context.Context, endpoint, q string) ([]domain.RawPoint, error) {
	form := url.Values{"data": {q}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return parseElements(r.Elements), nil
}

// parseElements converts nodes and way centers to raw points. Elements
// without a coordinate are skipped.
func parseElements(elements []element) []domain.RawPoint {
	out := make([]domain.RawPoint, 0, len(elements))
	for _, el := range elements {
		var at domain.GeoPoint
		switch {
		case el.Lat != nil && el.Lon != nil:
			at = domain.GeoPoint{Lat: *el.Lat, Lon: *el.Lon}
		case el.Center != nil:
			at = domain.GeoPoint{Lat: el.Center.Lat, Lon: el.Center.Lon}
		default:
			continue
		}
		out = append(out, domain.RawPoint{
			ID:       el.Type + "/" + strconv.FormatInt(el.ID, 10),
			Location: at,
			Tags:     el.Tags,
		})
	}
	return out
}
