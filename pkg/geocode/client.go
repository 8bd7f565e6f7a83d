// Package geocode resolves free-text place names to coordinates via
// Nominatim (primary) and Google (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client geocodes free-text locations.
type Client interface {
	// Geocode resolves a single location. An unresolvable location is a
	// Result with Matched false, not an error.
	Geocode(ctx context.Context, location string) (*Result, error)

	// BatchGeocode resolves locations, returning one Result per input in
	// the same order.
	BatchGeocode(ctx context.Context, locations []string) ([]Result, error)
}

// Result holds the geocoding output for a location.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Source      string  `json:"source"`  // "nominatim", "google" or "cascade"
	Quality     string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	DisplayName string  `json:"display_name,omitempty"`
	Matched     bool    `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Nominatim and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim, which requires one
// identifying the application.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithNominatimURL overrides the Nominatim search endpoint.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.nominatimURL = u
		}
	}
}

// WithCache enables result caching with the given TTL. A zero TTL keeps
// entries forever.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

type geocoder struct {
	httpClient   *http.Client
	nominatimURL string
	userAgent    string
	googleKey    string
	limiter      *rate.Limiter
	cache        Cache
	cacheTTL     time.Duration
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		nominatimURL: nominatimSearchURL,
		userAgent:    defaultUserAgent,
		limiter:      rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode resolves a location, trying Nominatim first, then Google if configured.
func (g *geocoder) Geocode(ctx context.Context, location string) (*Result, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return &Result{Matched: false}, nil
	}

	key := CacheKey(location)
	if g.cache != nil {
		if cached := checkCache(ctx, g.cache, key, g.cacheTTL); cached != nil {
			return cached, nil
		}
	}

	result, nomErr := g.geocodeNominatim(ctx, location)
	if nomErr == nil && result.Matched {
		g.store(ctx, key, location, result)
		return result, nil
	}
	if nomErr != nil {
		zap.L().Debug("geocode: nominatim failed", zap.String("location", location), zap.Error(nomErr))
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, location)
		if googleErr == nil && googleResult.Matched {
			g.store(ctx, key, location, googleResult)
			return googleResult, nil
		}
	}

	// No match from any provider. Only cache the miss when a provider
	// actually answered; a transport error may succeed next time.
	noMatch := &Result{Matched: false}
	if nomErr == nil {
		g.store(ctx, key, location, noMatch)
	}
	return noMatch, nil
}

// BatchGeocode resolves locations one at a time under the shared rate limit.
func (g *geocoder) BatchGeocode(ctx context.Context, locations []string) ([]Result, error) {
	if len(locations) == 0 {
		return nil, nil
	}

	results := make([]Result, len(locations))
	for i, loc := range locations {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		r, err := g.Geocode(ctx, loc)
		if err != nil || r == nil {
			results[i] = Result{Matched: false}
			continue
		}
		results[i] = *r
	}
	return results, nil
}

func (g *geocoder) store(ctx context.Context, key, location string, r *Result) {
	if g.cache == nil {
		return
	}
	if err := storeCache(ctx, g.cache, key, location, r); err != nil {
		zap.L().Debug("geocode: cache store failed", zap.Error(err))
	}
}
