package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent   = "blocktrace/1.0 (supply-chain provenance)"
)

// nominatimPlace is one element of the Nominatim search response. Nominatim
// encodes coordinates as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
}

// geocodeNominatim resolves a location with the OpenStreetMap Nominatim
// search API, taking the first place returned.
func (g *geocoder) geocodeNominatim(ctx context.Context, location string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"format": {"json"},
		"q":      {location},
		"limit":  {"1"},
	}

	reqURL := g.nominatimURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	p := places[0]
	lat, latErr := strconv.ParseFloat(p.Lat, 64)
	lon, lonErr := strconv.ParseFloat(p.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("geocode: nominatim bad coordinates %q,%q", p.Lat, p.Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      "nominatim",
		Quality:     nominatimTypeToQuality(p.Class, p.AddressType),
		DisplayName: p.DisplayName,
		Matched:     true,
	}, nil
}

// nominatimTypeToQuality maps Nominatim place classes to our quality taxonomy.
func nominatimTypeToQuality(class, addressType string) string {
	switch addressType {
	case "house", "building":
		return "rooftop"
	case "road", "street":
		return "range"
	}
	switch class {
	case "building", "amenity", "shop", "office":
		return "rooftop"
	case "highway":
		return "range"
	case "place", "boundary":
		return "centroid"
	default:
		return "approximate"
	}
}
