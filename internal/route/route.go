// Package route builds the custody route geometry of a product timeline for
// map display.
package route

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/model"
)

// SRID is WGS 84, the coordinate system of GPS readings.
const SRID = 4326

// Stop is a located timeline event on the route.
type Stop struct {
	Index     int     `json:"index"`
	Location  string  `json:"location"`
	Actor     string  `json:"actor"`
	Action    string  `json:"action"`
	Status    string  `json:"status"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Transport string  `json:"transport_mode,omitempty"`
}

// Stops returns the events that carry GPS coordinates, in custody order.
func Stops(events []model.TimelineEvent) []Stop {
	var stops []Stop
	for _, ev := range events {
		if !ev.HasGPS() {
			continue
		}
		s := Stop{
			Index:     ev.Index,
			Location:  ev.Location,
			Actor:     ev.Actor,
			Action:    ev.Action,
			Status:    string(ev.Status),
			Latitude:  *ev.GPSLatitude,
			Longitude: *ev.GPSLongitude,
		}
		if ev.TransportMode != nil {
			s.Transport = string(*ev.TransportMode)
		}
		stops = append(stops, s)
	}
	return stops
}

// Build returns the route as a LineString through every located event, or
// nil when fewer than two events are located.
func Build(events []model.TimelineEvent) *geom.LineString {
	stops := Stops(events)
	if len(stops) < 2 {
		return nil
	}
	flat := make([]float64, 0, len(stops)*2)
	for _, s := range stops {
		flat = append(flat, s.Longitude, s.Latitude)
	}
	return geom.NewLineStringFlat(geom.XY, flat).SetSRID(SRID)
}

// Length returns the great-circle length of a route in km.
func Length(ls *geom.LineString) float64 {
	if ls == nil {
		return 0
	}
	var total float64
	for i := 1; i < ls.NumCoords(); i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		total += esg.Haversine(esg.Point{Lat: a.Y(), Lon: a.X()}, esg.Point{Lat: b.Y(), Lon: b.X()})
	}
	return total
}

// GeoJSON renders the route as a feature collection: one LineString for the
// path (when at least two events are located) followed by one Point per
// located event.
func GeoJSON(events []model.TimelineEvent) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}

	if ls := Build(events); ls != nil {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       "route",
			Geometry: ls,
			Properties: map[string]any{
				"kind":        "route",
				"distance_km": math.Round(Length(ls)*10) / 10,
			},
		})
	}

	for _, s := range Stops(events) {
		props := map[string]any{
			"kind":     "stop",
			"index":    s.Index,
			"location": s.Location,
			"actor":    s.Actor,
			"action":   s.Action,
			"status":   s.Status,
		}
		if s.Transport != "" {
			props["transport_mode"] = s.Transport
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{s.Longitude, s.Latitude}).SetSRID(SRID),
			Properties: props,
		})
	}
	return fc
}

// EncodeEWKB converts a route to EWKB bytes with SRID 4326. Returns nil,
// nil for a nil route.
func EncodeEWKB(ls *geom.LineString) ([]byte, error) {
	if ls == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(ls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "route: encode WKB")
	}
	return data, nil
}
