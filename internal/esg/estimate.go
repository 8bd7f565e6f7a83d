package esg

import (
	"fmt"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Estimation constants shared with the provenance service's scoring model.
const (
	truckKgPerKm         = 0.162
	kmPerExtraLocation   = 500.0
	traditionalOverhead  = 1.3
	maxDistancePenalty   = 30.0
	maxTransparencyBonus = 20.0
	transparencyPerStep  = 2.0
	kmPerPenaltyPoint    = 100.0
)

// Estimate computes a local ESG score from a product's step history using
// the same model as the ESG service. It returns nil for an empty history.
func Estimate(productID string, steps []model.Step) *model.ESGScore {
	if len(steps) == 0 {
		return nil
	}

	var reportedDistance, reportedCarbon float64
	locations := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if s.DistanceKm != nil {
			reportedDistance += *s.DistanceKm
		}
		if s.CarbonFootprintKg != nil {
			reportedCarbon += *s.CarbonFootprintKg
		}
		locations[s.Location] = struct{}{}
	}

	distance := reportedDistance
	if distance <= 0 {
		distance = float64(len(locations)-1) * kmPerExtraLocation
	}
	carbon := reportedCarbon
	if carbon <= 0 {
		carbon = distance * truckKgPerKm
	}

	penalty := min(distance/kmPerPenaltyPoint, maxDistancePenalty)
	bonus := min(float64(len(steps))*transparencyPerStep, maxTransparencyBonus)
	// Truncated, not rounded, to match the service.
	score := uint8(clamp(100-penalty+bonus, 0, 100))
	saved := carbon*traditionalOverhead - carbon

	return &model.ESGScore{
		ProductID:             productID,
		SustainabilityScore:   score,
		CarbonFootprintKg:     carbon,
		TotalDistanceKm:       distance,
		TotalSteps:            uint32(len(steps)),
		ImpactMessage:         ImpactMessage(score, saved),
		CO2SavedVsTraditional: saved,
	}
}

// ImpactMessage renders the one-line impact summary shown with a score.
func ImpactMessage(score uint8, co2Saved float64) string {
	return fmt.Sprintf("Enhanced Impact Score: %d/100 🌿 — saved %.1fkg CO₂ vs traditional supply chains", score, co2Saved)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
