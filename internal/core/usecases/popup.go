package usecases

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// NearbyThresholdKm marks services closer than this as nearby.
const NearbyThresholdKm = 1.0

// DirectionsURL returns a turn-by-turn directions link from the user to dest.
func DirectionsURL(from, to domain.GeoPoint) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/%s,%s/%s,%s",
		formatCoord(from.Lat), formatCoord(from.Lon),
		formatCoord(to.Lat), formatCoord(to.Lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsNearby reports whether the record's known distance is under the nearby
// threshold.
func IsNearby(rec domain.ServiceRecord) bool {
	return rec.Distance != nil && *rec.Distance < NearbyThresholdKm
}

// BuildPopup assembles the detail content for a record. Directions need a
// resolved user coordinate; without one the action is disabled.
func BuildPopup(rec domain.ServiceRecord, user *domain.GeoPoint) domain.Popup {
	info := rec.Category.Info()
	p := domain.Popup{
		ServiceID:  rec.ID,
		Name:       rec.Name,
		Category:   info.Label,
		Icon:       info.Icon,
		Address:    rec.Address,
		Nearby:     IsNearby(rec),
		Phone:      rec.Phone,
		OpenStatus: rec.OpenStatus,
	}
	if rec.Distance != nil {
		p.Distance = fmt.Sprintf("%.2f km away", *rec.Distance)
	}
	if rec.Phone != "" {
		p.CallURL = "tel:" + rec.Phone
	}
	if user != nil {
		p.DirectionsURL = DirectionsURL(*user, rec.Location)
		p.DirectionsEnabled = true
	}
	return p
}

var popupTmpl = template.Must(template.New("popup").Parse(`<div class="service-popup" data-id="{{.ServiceID}}">
<h3>{{.Icon}} {{.Name}}</h3>
<p class="category">{{.Category}}</p>
<p class="address">{{.Address}}</p>
{{- if .Distance}}
<p class="distance">{{.Distance}}{{if .Nearby}} <span class="badge">NEARBY</span>{{end}}</p>
{{- end}}
{{- if eq .OpenStatus "open"}}
<p class="status open">Open</p>
{{- else if eq .OpenStatus "closed"}}
<p class="status closed">Closed</p>
{{- else}}
<p class="status unknown">Hours unknown</p>
{{- end}}
<div class="actions">
{{- if .CallURL}}
<a class="call" href="{{.CallURL}}">Call {{.Phone}}</a>
{{- end}}
{{- if .DirectionsEnabled}}
<a class="directions" href="{{.DirectionsURL}}" target="_blank" rel="noopener">Directions</a>
{{- else}}
<span class="directions disabled">Directions need your location</span>
{{- end}}
</div>
</div>`))

var userPopupTmpl = template.Must(template.New("user").Parse(
	`<div class="user-popup"><strong>Your Current Location</strong><br>{{printf "%.5f" .Lat}}, {{printf "%.5f" .Lon}}</div>`))

// RenderPopup renders popup content as escaped HTML for a render surface.
// OSM tag values are untrusted, so every field goes through html/template.
func RenderPopup(p domain.Popup) (string, error) {
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render popup %s: %w", p.ServiceID, err)
	}
	return buf.String(), nil
}

// RenderUserPopup renders the popup of the user's own marker.
func RenderUserPopup(at domain.GeoPoint) (string, error) {
	var buf bytes.Buffer
	if err := userPopupTmpl.Execute(&buf, at); err != nil {
		return "", fmt.Errorf("render user popup: %w", err)
	}
	return buf.String(), nil
}
