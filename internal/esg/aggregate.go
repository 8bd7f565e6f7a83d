// Package esg reduces per-product sustainability scores into fleet metrics,
// estimates scores from raw step history and refines journey distances by
// geocoding step locations.
package esg

import (
	"math"

	"github.com/blocktrace/blocktrace/internal/model"
)

// MaxEfficiencyImprovement caps the efficiency heuristic.
const MaxEfficiencyImprovement = 35.0

// Metrics are fleet-wide figures derived from a set of ESG scores. The zero
// value is the defined result for an empty fleet.
type Metrics struct {
	AvgScore              int     `json:"avg_score"`
	TotalCO2Saved         float64 `json:"total_co2_saved"`
	TotalDistance         float64 `json:"total_distance"`
	TotalProducts         int     `json:"total_products"`
	TotalSteps            int     `json:"total_steps"`
	AvgStepsPerProduct    float64 `json:"avg_steps_per_product"`
	EfficiencyImprovement float64 `json:"efficiency_improvement"`
}

// Aggregate computes fleet metrics. refined optionally maps product IDs to
// independently computed distances that replace the backend-reported
// distance for that product; it may be nil.
func Aggregate(scores []model.ESGScore, refined map[string]float64) Metrics {
	if len(scores) == 0 {
		return Metrics{}
	}

	var (
		scoreSum      int
		co2, distance float64
		steps         int
	)
	for _, s := range scores {
		scoreSum += int(s.SustainabilityScore)
		co2 += s.CO2SavedVsTraditional
		steps += int(s.TotalSteps)
		if d, ok := refined[s.ProductID]; ok {
			distance += d
		} else {
			distance += s.TotalDistanceKm
		}
	}

	n := len(scores)
	avgScore := int(math.Round(float64(scoreSum) / float64(n)))
	avgSteps := float64(steps) / float64(n)
	efficiency := math.Min(MaxEfficiencyImprovement, avgSteps*8+float64(avgScore-50)*0.5)

	return Metrics{
		AvgScore:              avgScore,
		TotalCO2Saved:         co2,
		TotalDistance:         distance,
		TotalProducts:         n,
		TotalSteps:            steps,
		AvgStepsPerProduct:    round1(avgSteps),
		EfficiencyImprovement: round1(efficiency),
	}
}

// SelectBestPerformer returns the score with the strictly highest
// sustainability score, the first one on ties, or nil for no scores.
func SelectBestPerformer(scores []model.ESGScore) *model.ESGScore {
	if len(scores) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].SustainabilityScore > scores[best].SustainabilityScore {
			best = i
		}
	}
	b := scores[best]
	return &b
}

// Comparisons express CO2 savings and distance in everyday terms. They are
// illustrative only.
type Comparisons struct {
	TreesEquivalent       int     `json:"trees_equivalent"`
	CarMilesEquivalent    int     `json:"car_miles_equivalent"`
	FlightHoursEquivalent int     `json:"flight_hours_equivalent"`
	PercentOfMoonDistance float64 `json:"percent_of_moon_distance"`
}

const (
	treeKgPerYear   = 22.0
	carKgPerMile    = 0.404
	flightKgPerHour = 90.0
	moonDistanceKm  = 384400.0
)

// DeriveComparisons converts total CO2 saved (kg) and total distance (km)
// into real-world equivalents.
func DeriveComparisons(totalCO2Saved, totalDistance float64) Comparisons {
	return Comparisons{
		TreesEquivalent:       int(math.Round(totalCO2Saved / treeKgPerYear)),
		CarMilesEquivalent:    int(math.Round(totalCO2Saved / carKgPerMile)),
		FlightHoursEquivalent: int(math.Round(totalCO2Saved / flightKgPerHour)),
		PercentOfMoonDistance: math.Round(totalDistance/moonDistanceKm*100*100) / 100,
	}
}

// Label grades a sustainability score.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
