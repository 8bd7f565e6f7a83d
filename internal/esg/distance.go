package esg

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/pkg/geocode"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Pow(math.Sin(dLon/2), 2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathDistance sums the distance between consecutive points. A nil point is
// a missing link: the pairs on either side of it contribute nothing. The
// second return value counts contributing pairs.
func PathDistance(points []*Point) (float64, int) {
	var total float64
	links := 0
	for i := 1; i < len(points); i++ {
		if points[i-1] == nil || points[i] == nil {
			continue
		}
		total += Haversine(*points[i-1], *points[i])
		links++
	}
	return total, links
}

// HistoryFetcher loads a product's step history for a principal.
type HistoryFetcher interface {
	GetProductHistory(ctx context.Context, productID, principal string) ([]model.Step, error)
}

// Geocoder resolves a location string.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (*geocode.Result, error)
}

// DistanceRefiner recomputes product journey distances by geocoding step
// locations.
type DistanceRefiner struct {
	history     HistoryFetcher
	geocoder    Geocoder
	concurrency int
	log         *zap.Logger
}

// NewDistanceRefiner creates a DistanceRefiner that refines at most
// concurrency products at once.
func NewDistanceRefiner(history HistoryFetcher, geocoder Geocoder, concurrency int) *DistanceRefiner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DistanceRefiner{
		history:     history,
		geocoder:    geocoder,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "distance_refiner")),
	}
}

// Refine returns refined distances in km, rounded to 0.1, keyed by product.
// Products whose history cannot be fetched, or where no consecutive pair of
// locations geocoded, are left out so callers fall back to the reported
// distance. When ctx ends early the products finished so far are returned.
func (r *DistanceRefiner) Refine(ctx context.Context, principal string, productIDs []string) map[string]float64 {
	var (
		mu  sync.Mutex
		out = make(map[string]float64, len(productIDs))
	)

	var eg errgroup.Group
	eg.SetLimit(r.concurrency)

	for _, id := range productIDs {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			d, ok := r.refineProduct(ctx, principal, id)
			if !ok {
				return nil
			}
			mu.Lock()
			out[id] = d
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

func (r *DistanceRefiner) refineProduct(ctx context.Context, principal, productID string) (float64, bool) {
	steps, err := r.history.GetProductHistory(ctx, productID, principal)
	if err != nil {
		r.log.Debug("refine: history fetch failed", zap.String("product_id", productID), zap.Error(err))
		return 0, false
	}
	if len(steps) < 2 {
		return 0, false
	}

	seen := make(map[string]*Point, len(steps))
	points := make([]*Point, len(steps))
	for i, s := range steps {
		if ctx.Err() != nil {
			return 0, false
		}
		p, ok := seen[s.Location]
		if !ok {
			p = r.locate(ctx, s.Location)
			seen[s.Location] = p
		}
		points[i] = p
	}

	total, links := PathDistance(points)
	if links == 0 {
		return 0, false
	}
	return round1(total), true
}

// locate geocodes a location, returning nil on any failure.
func (r *DistanceRefiner) locate(ctx context.Context, location string) *Point {
	res, err := r.geocoder.Geocode(ctx, location)
	if err != nil {
		r.log.Debug("refine: geocode failed", zap.String("location", location), zap.Error(err))
		return nil
	}
	if res == nil || !res.Matched {
		r.log.Debug("refine: location not found", zap.String("location", location))
		return nil
	}
	return &Point{Lat: res.Latitude, Lon: res.Longitude}
}
