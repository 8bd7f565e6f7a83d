package model

import (
	"encoding/json"
	"time"
)

// TransportMode is how goods moved during a custody step.
type TransportMode string

const (
	TransportTruck TransportMode = "truck"
	TransportShip  TransportMode = "ship"
	TransportPlane TransportMode = "plane"
	TransportTrain TransportMode = "train"
)

// TransportModes lists every supported transport mode in display order.
var TransportModes = []TransportMode{TransportTruck, TransportShip, TransportPlane, TransportTrain}

// Valid reports whether m is one of the supported transport modes.
func (m TransportMode) Valid() bool {
	switch m {
	case TransportTruck, TransportShip, TransportPlane, TransportTrain:
		return true
	default:
		return false
	}
}

// Step is one immutable custody event recorded by the provenance service.
// Optional enrichment fields are nil when the backend did not record them.
type Step struct {
	ProductID string  `json:"product_id"`
	ActorName string  `json:"actor_name"`
	Role      string  `json:"role"`
	Action    string  `json:"action"`
	Location  string  `json:"location"`
	Notes     *string `json:"notes,omitempty"`
	// Timestamp is backend time in nanoseconds since the Unix epoch.
	Timestamp uint64  `json:"timestamp"`
	Status    *string `json:"status,omitempty"`

	TransportMode      *TransportMode `json:"transport_mode,omitempty"`
	TemperatureCelsius *float64       `json:"temperature_celsius,omitempty"`
	HumidityPercent    *float64       `json:"humidity_percent,omitempty"`
	GPSLatitude        *float64       `json:"gps_latitude,omitempty"`
	GPSLongitude       *float64       `json:"gps_longitude,omitempty"`
	BatchNumber        *string        `json:"batch_number,omitempty"`
	CertificationHash  *string        `json:"certification_hash,omitempty"`
	EstimatedArrival   *uint64        `json:"estimated_arrival,omitempty"`
	ActualArrival      *uint64        `json:"actual_arrival,omitempty"`
	QualityScore       *uint8         `json:"quality_score,omitempty"`
	CarbonFootprintKg  *float64       `json:"carbon_footprint_kg,omitempty"`
	DistanceKm         *float64       `json:"distance_km,omitempty"`
	CostUSD            *float64       `json:"cost_usd,omitempty"`
	BlockchainHash     *string        `json:"blockchain_hash,omitempty"`
}

// Time returns the step timestamp as a UTC time.
func (s Step) Time() time.Time {
	return time.Unix(0, int64(s.Timestamp)).UTC()
}

// TimeMillis returns the step timestamp in epoch milliseconds.
func (s Step) TimeMillis() int64 {
	return int64(s.Timestamp / uint64(time.Millisecond))
}

// stepWire mirrors Step but tolerates the backend's optional encoding,
// where an absent value is [] and a present one is a single-element array.
type stepWire struct {
	ProductID string      `json:"product_id"`
	ActorName string      `json:"actor_name"`
	Role      string      `json:"role"`
	Action    string      `json:"action"`
	Location  string      `json:"location"`
	Notes     opt[string] `json:"notes"`
	Timestamp flexUint64  `json:"timestamp"`
	Status    opt[string] `json:"status"`

	TransportMode      opt[TransportMode] `json:"transport_mode"`
	TemperatureCelsius opt[float64]       `json:"temperature_celsius"`
	HumidityPercent    opt[float64]       `json:"humidity_percent"`
	GPSLatitude        opt[float64]       `json:"gps_latitude"`
	GPSLongitude       opt[float64]       `json:"gps_longitude"`
	BatchNumber        opt[string]        `json:"batch_number"`
	CertificationHash  opt[string]        `json:"certification_hash"`
	EstimatedArrival   opt[flexUint64]    `json:"estimated_arrival"`
	ActualArrival      opt[flexUint64]    `json:"actual_arrival"`
	QualityScore       opt[uint8]         `json:"quality_score"`
	CarbonFootprintKg  opt[float64]       `json:"carbon_footprint_kg"`
	DistanceKm         opt[float64]       `json:"distance_km"`
	CostUSD            opt[float64]       `json:"cost_usd"`
	BlockchainHash     opt[string]        `json:"blockchain_hash"`
}

// UnmarshalJSON accepts both plain nullable fields and the backend's
// zero-or-one element array convention for optionals.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Step{
		ProductID:          w.ProductID,
		ActorName:          w.ActorName,
		Role:               w.Role,
		Action:             w.Action,
		Location:           w.Location,
		Notes:              w.Notes.ptr(),
		Timestamp:          uint64(w.Timestamp),
		Status:             w.Status.ptr(),
		TransportMode:      w.TransportMode.ptr(),
		TemperatureCelsius: w.TemperatureCelsius.ptr(),
		HumidityPercent:    w.HumidityPercent.ptr(),
		GPSLatitude:        w.GPSLatitude.ptr(),
		GPSLongitude:       w.GPSLongitude.ptr(),
		BatchNumber:        w.BatchNumber.ptr(),
		CertificationHash:  w.CertificationHash.ptr(),
		EstimatedArrival:   flexPtr(w.EstimatedArrival.ptr()),
		ActualArrival:      flexPtr(w.ActualArrival.ptr()),
		QualityScore:       w.QualityScore.ptr(),
		CarbonFootprintKg:  w.CarbonFootprintKg.ptr(),
		DistanceKm:         w.DistanceKm.ptr(),
		CostUSD:            w.CostUSD.ptr(),
		BlockchainHash:     w.BlockchainHash.ptr(),
	}
	return nil
}

func flexPtr(v *flexUint64) *uint64 {
	if v == nil {
		return nil
	}
	u := uint64(*v)
	return &u
}
