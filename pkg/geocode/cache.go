package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Cache persists geocoding outcomes keyed by normalised location hash.
// GetGeocode returns nil, nil on a miss or when the entry is older than
// maxAge (zero disables the age check).
type Cache interface {
	GetGeocode(ctx context.Context, key string, maxAge time.Duration) (*model.GeocodeEntry, error)
	SetGeocode(ctx context.Context, entry *model.GeocodeEntry) error
}

// normalize lowercases and collapses whitespace so that "Port of  Mombasa"
// and "port of mombasa" share a cache entry.
func normalize(location string) string {
	return strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

// CacheKey returns the SHA-256 hex of the normalized location for cache lookup.
func CacheKey(location string) string {
	h := sha256.Sum256([]byte(normalize(location)))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached geocode result, respecting TTL if configured.
// Returns cached non-matches (Matched=false) so the caller can skip providers.
func checkCache(ctx context.Context, c Cache, key string, ttl time.Duration) *Result {
	e, err := c.GetGeocode(ctx, key, ttl)
	if err != nil {
		zap.L().Debug("geocode cache lookup failed", zap.Error(err))
		return nil
	}
	if e == nil {
		return nil
	}

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.Bool("matched", e.Matched))

	return &Result{
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Source:    e.Source,
		Quality:   e.Quality,
		Matched:   e.Matched,
	}
}

// NewEntry builds the cache entry for a location's geocode result.
func NewEntry(location string, r Result, at time.Time) model.GeocodeEntry {
	return model.GeocodeEntry{
		Key:       CacheKey(location),
		Location:  normalize(location),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Source:    r.Source,
		Quality:   r.Quality,
		Matched:   r.Matched,
		CachedAt:  at.UTC(),
	}
}

// storeCache writes a geocode result (match or non-match) into the cache.
func storeCache(ctx context.Context, c Cache, key, location string, r *Result) error {
	e := NewEntry(location, *r, time.Now())
	e.Key = key
	if err := c.SetGeocode(ctx, &e); err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}
