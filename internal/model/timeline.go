package model

import "time"

// Status classifies a timeline event.
type Status string

const (
	StatusVerified Status = "verified"
	StatusDelay    Status = "delay"
	StatusDispute  Status = "dispute"
	StatusPending  Status = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusVerified, StatusDelay, StatusDispute, StatusPending:
		return true
	default:
		return false
	}
}

// Label returns the display label for a status.
func (s Status) Label() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusDelay:
		return "Delayed"
	case StatusDispute:
		return "Dispute"
	case StatusPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// TimelineEvent is a Step decorated for display. Events are derived per
// request and never persisted.
type TimelineEvent struct {
	Index           int       `json:"index"`
	ProductID       string    `json:"product_id"`
	Actor           string    `json:"actor"`
	Role            string    `json:"role"`
	Action          string    `json:"action"`
	Location        string    `json:"location"`
	Time            time.Time `json:"time"`
	TimestampMillis int64     `json:"timestamp"`
	Notes           *string   `json:"notes,omitempty"`
	Status          Status    `json:"status"`

	TransportMode      *TransportMode `json:"transport_mode,omitempty"`
	TemperatureCelsius *float64       `json:"temperature_celsius,omitempty"`
	HumidityPercent    *float64       `json:"humidity_percent,omitempty"`
	GPSLatitude        *float64       `json:"gps_latitude,omitempty"`
	GPSLongitude       *float64       `json:"gps_longitude,omitempty"`
	BatchNumber        *string        `json:"batch_number,omitempty"`
	CertificationHash  *string        `json:"certification_hash,omitempty"`
	EstimatedArrival   *uint64        `json:"estimated_arrival,omitempty"`
	ActualArrival      *uint64        `json:"actual_arrival,omitempty"`
	QualityScore       *int           `json:"quality_score,omitempty"`
	CarbonFootprintKg  *float64       `json:"carbon_footprint_kg,omitempty"`
	DistanceKm         *float64       `json:"distance_km,omitempty"`
	CostUSD            *float64       `json:"cost_usd,omitempty"`
	BlockchainHash     *string        `json:"blockchain_hash,omitempty"`

	// DurationHours is only ever set by the demo synthesizer.
	DurationHours *int `json:"duration_hours,omitempty"`
	// Synthesized marks events carrying fabricated demo values.
	Synthesized bool `json:"synthesized,omitempty"`
}

// HasGPS reports whether the event carries a coordinate pair.
func (e TimelineEvent) HasGPS() bool {
	return e.GPSLatitude != nil && e.GPSLongitude != nil
}
