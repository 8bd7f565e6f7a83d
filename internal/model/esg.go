package model

// ESGScore is the sustainability rating for one product, computed by the
// ESG service from the product's full step history.
type ESGScore struct {
	ProductID             string  `json:"product_id"`
	SustainabilityScore   uint8   `json:"sustainability_score"`
	CarbonFootprintKg     float64 `json:"carbon_footprint_kg"`
	TotalDistanceKm       float64 `json:"total_distance_km"`
	TotalSteps            uint32  `json:"total_steps"`
	ImpactMessage         string  `json:"impact_message"`
	CO2SavedVsTraditional float64 `json:"co2_saved_vs_traditional"`
}
