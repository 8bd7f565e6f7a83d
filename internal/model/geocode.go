package model

import "time"

// GeocodeEntry is a cached geocoding outcome for one normalised location.
// Non-matches are cached too so repeated misses skip the provider.
type GeocodeEntry struct {
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Source    string    `json:"source"`
	Quality   string    `json:"quality"`
	Matched   bool      `json:"matched"`
	CachedAt  time.Time `json:"cached_at"`
}
