package timeline

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Summary holds derived statistics for one product timeline. Averages are
// taken over events that carry the field and are nil when none do.
type Summary struct {
	TotalEvents         int             `json:"total_events"`
	TotalDistanceKm     float64         `json:"total_distance_km"`
	TotalCarbonKg       float64         `json:"total_carbon_kg"`
	TotalCostUSD        decimal.Decimal `json:"total_cost_usd"`
	TotalDurationHours  *int            `json:"total_duration_hours,omitempty"`
	AvgQuality          *int            `json:"avg_quality,omitempty"`
	AvgTemperature      *float64        `json:"avg_temperature,omitempty"`
	AvgHumidity         *float64        `json:"avg_humidity,omitempty"`
	VerifiedCount       int             `json:"verified_count"`
	UniqueLocations     int             `json:"unique_locations"`
	TransportModes      int             `json:"transport_modes"`
	Efficiency          int             `json:"efficiency"`
	SustainabilityScore int             `json:"sustainability_score"`
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}
	return m.sum / float64(m.n), true
}

// Summarize computes summary statistics over events. It returns nil for an
// empty timeline.
func Summarize(events []model.TimelineEvent) *Summary {
	if len(events) == 0 {
		return nil
	}

	var (
		distance, carbon float64
		cost             = decimal.Zero
		quality          mean
		temp, humidity   mean
		duration         int
		hasDuration      bool
		verified         int
	)
	locations := make(map[string]struct{})
	modes := make(map[model.TransportMode]struct{})

	for _, ev := range events {
		if ev.DistanceKm != nil {
			distance += *ev.DistanceKm
		}
		if ev.CarbonFootprintKg != nil {
			carbon += *ev.CarbonFootprintKg
		}
		if ev.CostUSD != nil {
			cost = cost.Add(decimal.NewFromFloat(*ev.CostUSD))
		}
		if ev.QualityScore != nil {
			q := float64(*ev.QualityScore)
			quality.add(&q)
		}
		if ev.DurationHours != nil {
			duration += *ev.DurationHours
			hasDuration = true
		}
		temp.add(ev.TemperatureCelsius)
		humidity.add(ev.HumidityPercent)

		if ev.Status == model.StatusVerified {
			verified++
		}
		locations[ev.Location] = struct{}{}
		if ev.TransportMode != nil {
			modes[*ev.TransportMode] = struct{}{}
		}
	}

	carbon = round(carbon, 2)
	s := &Summary{
		TotalEvents:         len(events),
		TotalDistanceKm:     math.Round(distance),
		TotalCarbonKg:       carbon,
		TotalCostUSD:        cost.Round(2),
		VerifiedCount:       verified,
		UniqueLocations:     len(locations),
		TransportModes:      len(modes),
		Efficiency:          int(math.Round(float64(verified) / float64(len(events)) * 100)),
		SustainabilityScore: max(100-int(math.Round(carbon*2)), 0),
	}
	if hasDuration {
		s.TotalDurationHours = &duration
	}
	if v, ok := quality.value(); ok {
		q := int(math.Round(v))
		s.AvgQuality = &q
	}
	if v, ok := temp.value(); ok {
		t := round(v, 1)
		s.AvgTemperature = &t
	}
	if v, ok := humidity.value(); ok {
		h := round(v, 1)
		s.AvgHumidity = &h
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
