package geocode

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, location string) (*Result, error)
	Available() bool
}

// NominatimProvider geocodes via OpenStreetMap Nominatim.
type NominatimProvider struct {
	g *geocoder
}

// NewNominatimProvider creates a NominatimProvider. Options other than the
// cache apply; caching belongs to the CascadeClient.
func NewNominatimProvider(opts ...Option) *NominatimProvider {
	g := NewClient(opts...).(*geocoder)
	g.cache = nil
	return &NominatimProvider{g: g}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, location string) (*Result, error) {
	return p.g.geocodeNominatim(ctx, location)
}

// GoogleProvider geocodes via the Google Geocoding API.
type GoogleProvider struct {
	g *geocoder
}

// NewGoogleProvider creates a GoogleProvider. It is unavailable without an
// API key.
func NewGoogleProvider(apiKey string, opts ...Option) *GoogleProvider {
	g := NewClient(append(opts, WithGoogleAPIKey(apiKey))...).(*geocoder)
	g.cache = nil
	return &GoogleProvider{g: g}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.g.googleKey != "" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, location string) (*Result, error) {
	return p.g.geocodeGoogle(ctx, location)
}

// CascadeClient tries geocode providers in order until one succeeds.
type CascadeClient struct {
	providers        []Provider
	cache            Cache
	cacheTTL         time.Duration
	batchConcurrency int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCascadeCache enables caching on the cascade client.
func WithCascadeCache(c Cache) CascadeOption {
	return func(cc *CascadeClient) {
		cc.cache = c
	}
}

// WithCascadeCacheTTLDays sets the cache TTL in days for the cascade client.
func WithCascadeCacheTTLDays(days int) CascadeOption {
	return func(c *CascadeClient) {
		if days > 0 {
			c.cacheTTL = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithCascadeBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithCascadeBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each provider in order.
func (c *CascadeClient) Geocode(ctx context.Context, location string) (*Result, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}

	key := CacheKey(location)
	if c.cache != nil {
		if cached := checkCache(ctx, c.cache, key, c.cacheTTL); cached != nil {
			return cached, nil
		}
	}

	var lastResult *Result
	answered := false
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, location)
		if err != nil {
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		answered = true
		if result != nil && result.Matched {
			c.store(ctx, key, location, result)
			return result, nil
		}
		if result != nil {
			lastResult = result
		}
	}

	// All providers missed. Cache the negative result only if at least one
	// provider answered.
	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
	}
	if answered {
		c.store(ctx, key, location, noMatch)
	}
	return noMatch, nil
}

// BatchGeocode implements Client by geocoding locations in parallel.
// Results keep input order.
func (c *CascadeClient) BatchGeocode(ctx context.Context, locations []string) ([]Result, error) {
	if len(locations) == 0 {
		return nil, nil
	}

	results := make([]Result, len(locations))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, loc := range locations {
		eg.Go(func() error {
			r, gcErr := c.Geocode(gCtx, loc)
			if gcErr != nil || r == nil {
				results[i] = Result{Matched: false, Source: "cascade"}
				return nil //nolint:nilerr // individual geocode failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results, ctx.Err()
}

func (c *CascadeClient) store(ctx context.Context, key, location string, r *Result) {
	if c.cache == nil {
		return
	}
	if err := storeCache(ctx, c.cache, key, location, r); err != nil {
		zap.L().Debug("cascade: cache store failed", zap.Error(err))
	}
}
