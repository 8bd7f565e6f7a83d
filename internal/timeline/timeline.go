// Package timeline turns a product's recorded custody steps into display
// events, filters them and computes summary statistics.
package timeline

import (
	"strings"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Build maps each step to a timeline event. The result has the same length
// and order as steps. Absent enrichment fields stay absent.
func Build(steps []model.Step) []model.TimelineEvent {
	events := make([]model.TimelineEvent, len(steps))
	for i, s := range steps {
		events[i] = fromStep(i, s)
	}
	return events
}

func fromStep(i int, s model.Step) model.TimelineEvent {
	ev := model.TimelineEvent{
		Index:              i,
		ProductID:          s.ProductID,
		Actor:              s.ActorName,
		Role:               s.Role,
		Action:             s.Action,
		Location:           s.Location,
		Time:               s.Time(),
		TimestampMillis:    s.TimeMillis(),
		Notes:              s.Notes,
		Status:             statusOf(s.Status),
		TransportMode:      s.TransportMode,
		TemperatureCelsius: s.TemperatureCelsius,
		HumidityPercent:    s.HumidityPercent,
		GPSLatitude:        s.GPSLatitude,
		GPSLongitude:       s.GPSLongitude,
		BatchNumber:        s.BatchNumber,
		CertificationHash:  s.CertificationHash,
		EstimatedArrival:   s.EstimatedArrival,
		ActualArrival:      s.ActualArrival,
		CarbonFootprintKg:  s.CarbonFootprintKg,
		DistanceKm:         s.DistanceKm,
		CostUSD:            s.CostUSD,
		BlockchainHash:     s.BlockchainHash,
	}
	if s.QualityScore != nil {
		q := int(*s.QualityScore)
		ev.QualityScore = &q
	}
	return ev
}

// statusOf keeps the backend status verbatim, including values outside the
// known set, and defaults to verified when none was recorded.
func statusOf(raw *string) model.Status {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return model.StatusVerified
	}
	return model.Status(*raw)
}

// Latest returns the index of the most recent event, or -1 when there are
// none. Events are in custody order so this is the last element.
func Latest(events []model.TimelineEvent) int {
	if len(events) == 0 {
		return -1
	}
	return events[len(events)-1].Index
}
