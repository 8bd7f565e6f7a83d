package demo

import (
	_ "embed"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/timeline"
)

//go:embed scenario.yaml
var defaultScenario []byte

// Scenario describes a demo product journey.
type Scenario struct {
	ProductID string         `yaml:"product_id"`
	Name      string         `yaml:"name"`
	Steps     []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one custody event in a demo journey. Optional fields
// left out of the file are synthesized when the timeline is built.
type ScenarioStep struct {
	Actor         string               `yaml:"actor"`
	Role          string               `yaml:"role"`
	Action        string               `yaml:"action"`
	Location      string               `yaml:"location"`
	Notes         string               `yaml:"notes,omitempty"`
	Status        string               `yaml:"status,omitempty"`
	HoursAfter    int                  `yaml:"hours_after"`
	TransportMode *model.TransportMode `yaml:"transport_mode,omitempty"`
	Latitude      *float64             `yaml:"latitude,omitempty"`
	Longitude     *float64             `yaml:"longitude,omitempty"`
	Temperature   *float64             `yaml:"temperature_celsius,omitempty"`
	Humidity      *float64             `yaml:"humidity_percent,omitempty"`
	Quality       *uint8               `yaml:"quality_score,omitempty"`
	DistanceKm    *float64             `yaml:"distance_km,omitempty"`
	CostUSD       *float64             `yaml:"cost_usd,omitempty"`
	Batch         string               `yaml:"batch_number,omitempty"`
	Certification string               `yaml:"certification_hash,omitempty"`
}

// LoadScenario reads a scenario from a YAML file. An empty path loads the
// built-in scenario.
func LoadScenario(path string) (*Scenario, error) {
	data := defaultScenario
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "demo: read scenario %s", path)
		}
	}
	return ParseScenario(data)
}

// ParseScenario decodes and checks a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, eris.Wrap(err, "demo: parse scenario")
	}
	if sc.ProductID == "" {
		return nil, eris.New("demo: scenario has no product_id")
	}
	if len(sc.Steps) == 0 {
		return nil, eris.Errorf("demo: scenario %s has no steps", sc.ProductID)
	}
	for i, st := range sc.Steps {
		if st.Location == "" || st.Action == "" {
			return nil, eris.Errorf("demo: scenario %s step %d needs action and location", sc.ProductID, i)
		}
		if st.TransportMode != nil && !st.TransportMode.Valid() {
			return nil, eris.Errorf("demo: scenario %s step %d has unknown transport mode %q", sc.ProductID, i, *st.TransportMode)
		}
	}
	return &sc, nil
}

// Records converts the scenario into step records starting at start.
func (sc *Scenario) Records(start time.Time) []model.Step {
	steps := make([]model.Step, 0, len(sc.Steps))
	for _, st := range sc.Steps {
		at := start.Add(time.Duration(st.HoursAfter) * time.Hour)
		s := model.Step{
			ProductID:          sc.ProductID,
			ActorName:          st.Actor,
			Role:               st.Role,
			Action:             st.Action,
			Location:           st.Location,
			Timestamp:          uint64(at.UnixNano()),
			TransportMode:      st.TransportMode,
			GPSLatitude:        st.Latitude,
			GPSLongitude:       st.Longitude,
			TemperatureCelsius: st.Temperature,
			HumidityPercent:    st.Humidity,
			QualityScore:       st.Quality,
			DistanceKm:         st.DistanceKm,
			CostUSD:            st.CostUSD,
			Notes:              optString(st.Notes),
			Status:             optString(st.Status),
			BatchNumber:        optString(st.Batch),
			CertificationHash:  optString(st.Certification),
		}
		steps = append(steps, s)
	}
	return steps
}

// Timeline builds the scenario's timeline and decorates it with synth.
func (sc *Scenario) Timeline(start time.Time, synth *Synthesizer) []model.TimelineEvent {
	return synth.Decorate(timeline.Build(sc.Records(start)))
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
