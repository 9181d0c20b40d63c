package domain

// UserMarkerID is the marker id reserved for the user's own location.
const UserMarkerID = "user-location"

// BaseLayer selects one of the two mutually exclusive tile sources.
type BaseLayer string

const (
	LayerStandard  BaseLayer = "standard"
	LayerSatellite BaseLayer = "satellite"
)

// Toggle returns the other base layer.
func (b BaseLayer) Toggle() BaseLayer {
	if b == LayerSatellite {
		return LayerStandard
	}
	return LayerSatellite
}

// TileSource describes a tile layer URL template.
type TileSource struct {
	URLTemplate string `json:"url_template"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"max_zoom"`
}

// TileSources maps every base layer onto its tile source.
var TileSources = map[BaseLayer]TileSource{
	LayerStandard: {
		URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	},
	LayerSatellite: {
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "© Esri, Maxar, Earthstar Geographics, and the GIS User Community",
		MaxZoom:     19,
	},
}

// MarkerIcon describes how a marker is drawn.
type MarkerIcon struct {
	Kind     string `json:"kind"` // "user" or a Category value
	Glyph    string `json:"glyph,omitempty"`
	Color    string `json:"color,omitempty"`
	Selected bool   `json:"selected,omitempty"`
	Nearby   bool   `json:"nearby,omitempty"`
}

// MapViewState is a projection of location, filtered results and selection.
// It is rebuilt by the map synchronizer and never used as a source of truth.
type MapViewState struct {
	Center     GeoPoint  `json:"center"`
	Zoom       int       `json:"zoom"`
	BaseLayer  BaseLayer `json:"base_layer"`
	Markers    []string  `json:"markers"`
	SelectedID string    `json:"selected_id,omitempty"`
	Ready      bool      `json:"ready"`
	Error      string    `json:"error,omitempty"`
}

// Popup is the detail content bound to a service marker.
type Popup struct {
	ServiceID         string     `json:"service_id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	Icon              string     `json:"icon"`
	Address           string     `json:"address"`
	Distance          string     `json:"distance,omitempty"`
	Nearby            bool       `json:"nearby"`
	Phone             string     `json:"phone,omitempty"`
	CallURL           string     `json:"call_url,omitempty"`
	OpenStatus        OpenStatus `json:"open_status"`
	DirectionsURL     string     `json:"directions_url,omitempty"`
	DirectionsEnabled bool       `json:"directions_enabled"`
}

// Render operation names.
const (
	OpCreateMap    = "create_map"
	OpAddTileLayer = "add_tile_layer"
	OpAddMarker    = "add_marker"
	OpRemoveLayer  = "remove_layer"
	OpSetView      = "set_view"
	OpBindPopup    = "bind_popup"
	OpSetIcon      = "set_icon"
	OpDestroy      = "destroy"
)

// RenderOp is one drawing instruction sent to a remote map client.
type RenderOp struct {
	Seq    uint64      `json:"seq"`
	Op     string      `json:"op"`
	Handle string      `json:"handle,omitempty"`
	Center *GeoPoint   `json:"center,omitempty"`
	Zoom   int         `json:"zoom,omitempty"`
	Tile   *TileSource `json:"tile,omitempty"`
	Icon   *MarkerIcon `json:"icon,omitempty"`
	HTML   string      `json:"html,omitempty"`
}
