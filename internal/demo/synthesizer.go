// Package demo fabricates illustrative enrichment values for demonstration
// timelines. Nothing produced here may feed an authoritative ESG figure.
package demo

import (
	"math/rand/v2"
	"sync"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Emission factors in kg CO2 per km.
var emissionFactors = map[model.TransportMode]float64{
	model.TransportTruck: 0.162,
	model.TransportShip:  0.017,
	model.TransportPlane: 0.255,
	model.TransportTrain: 0.041,
}

// EmissionFactor returns the kg CO2 per km for mode. Unknown modes use the
// truck factor.
func EmissionFactor(mode model.TransportMode) float64 {
	if f, ok := emissionFactors[mode]; ok {
		return f
	}
	return emissionFactors[model.TransportTruck]
}

const (
	minDurationHours = 2
	maxDurationHours = 49
	minDistanceKm    = 100
	maxDistanceKm    = 899
)

// Synthesizer fills absent enrichment fields with plausible random values.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer returns a Synthesizer backed by a PCG source seeded with
// seed. The same seed always yields the same decorations.
func NewSynthesizer(seed int64) *Synthesizer {
	return NewSynthesizerWithRand(rand.New(rand.NewPCG(uint64(seed), 0))) //nolint:gosec // illustrative data only
}

// NewSynthesizerWithRand returns a Synthesizer drawing from rng.
func NewSynthesizerWithRand(rng *rand.Rand) *Synthesizer {
	return &Synthesizer{rng: rng}
}

// Decorate returns a copy of events with absent transport mode, duration,
// distance and carbon filled in. Values already present are kept. Every
// returned event is marked Synthesized.
func (s *Synthesizer) Decorate(events []model.TimelineEvent) []model.TimelineEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TimelineEvent, len(events))
	for i, ev := range events {
		if ev.TransportMode == nil {
			m := model.TransportModes[s.rng.IntN(len(model.TransportModes))]
			ev.TransportMode = &m
		}
		if ev.DurationHours == nil {
			d := minDurationHours + s.rng.IntN(maxDurationHours-minDurationHours+1)
			ev.DurationHours = &d
		}
		if ev.DistanceKm == nil {
			d := float64(minDistanceKm + s.rng.IntN(maxDistanceKm-minDistanceKm+1))
			ev.DistanceKm = &d
		}
		if ev.CarbonFootprintKg == nil {
			c := CarbonEstimate(*ev.DistanceKm, *ev.TransportMode)
			ev.CarbonFootprintKg = &c
		}
		ev.Synthesized = true
		out[i] = ev
	}
	return out
}

// CarbonEstimate returns distance × EmissionFactor(mode).
func CarbonEstimate(distanceKm float64, mode model.TransportMode) float64 {
	return distanceKm * EmissionFactor(mode)
}
