package model

import "strings"

// StepInput is a custody event submitted for recording. The backend assigns
// the timestamp; the client never sets it.
type StepInput struct {
	ProductID string  `json:"product_id" validate:"required"`
	ActorName string  `json:"actor_name" validate:"required"`
	Role      string  `json:"role" validate:"required"`
	Action    string  `json:"action" validate:"required"`
	Location  string  `json:"location" validate:"required"`
	Notes     *string `json:"notes,omitempty"`
	Status    *Status `json:"status,omitempty" validate:"omitempty,oneof=verified delay dispute pending"`

	TransportMode      *TransportMode `json:"transport_mode,omitempty" validate:"omitempty,oneof=truck ship plane train"`
	TemperatureCelsius *float64       `json:"temperature_celsius,omitempty"`
	HumidityPercent    *float64       `json:"humidity_percent,omitempty" validate:"omitempty,min=0,max=100"`
	GPSLatitude        *float64       `json:"gps_latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	GPSLongitude       *float64       `json:"gps_longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	BatchNumber        *string        `json:"batch_number,omitempty"`
	CertificationHash  *string        `json:"certification_hash,omitempty"`
	EstimatedArrival   *uint64        `json:"estimated_arrival,omitempty"`
	QualityScore       *int           `json:"quality_score,omitempty" validate:"omitempty,min=0,max=100"`
	CarbonFootprintKg  *float64       `json:"carbon_footprint_kg,omitempty" validate:"omitempty,min=0"`
	DistanceKm         *float64       `json:"distance_km,omitempty" validate:"omitempty,min=0"`
	CostUSD            *float64       `json:"cost_usd,omitempty" validate:"omitempty,min=0"`
	BlockchainHash     *string        `json:"blockchain_hash,omitempty"`
}

// Normalize trims required text, drops blank optionals and defaults the
// status to verified.
func (in *StepInput) Normalize() {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.ActorName = strings.TrimSpace(in.ActorName)
	in.Role = strings.TrimSpace(in.Role)
	in.Action = strings.TrimSpace(in.Action)
	in.Location = strings.TrimSpace(in.Location)

	in.Notes = blankToNil(in.Notes)
	in.BatchNumber = blankToNil(in.BatchNumber)
	in.CertificationHash = blankToNil(in.CertificationHash)
	in.BlockchainHash = blankToNil(in.BlockchainHash)

	if in.Status == nil || strings.TrimSpace(string(*in.Status)) == "" {
		s := StatusVerified
		in.Status = &s
	}
}

// Validate normalizes the input and checks it against the same rules the
// provenance service enforces.
func (in *StepInput) Validate() error {
	in.Normalize()
	return Validate(in)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
