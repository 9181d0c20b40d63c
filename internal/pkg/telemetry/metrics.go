package telemetry

// Span names used for instrumentation.
const (
	SpanDiscoveryQuery = "discovery.query"
	SpanOverpassFetch  = "overpass.fetch"
	SpanPostGISQuery   = "postgis.nearby"
)
