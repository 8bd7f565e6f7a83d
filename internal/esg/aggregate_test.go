package esg

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktrace/blocktrace/internal/model"
)

func score(id string, s uint8) model.ESGScore {
	return model.ESGScore{ProductID: id, SustainabilityScore: s}
}

func TestAggregate_ZeroState(t *testing.T) {
	assert.Equal(t, Metrics{}, Aggregate(nil, nil))
	assert.Equal(t, Metrics{}, Aggregate([]model.ESGScore{}, map[string]float64{"x": 5}))
}

func TestAggregate_Basic(t *testing.T) {
	scores := []model.ESGScore{
		{ProductID: "a", SustainabilityScore: 90, CO2SavedVsTraditional: 10, TotalDistanceKm: 100, TotalSteps: 3},
		{ProductID: "b", SustainabilityScore: 71, CO2SavedVsTraditional: 5.5, TotalDistanceKm: 50, TotalSteps: 4},
	}

	m := Aggregate(scores, nil)
	assert.Equal(t, 81, m.AvgScore) // 80.5 rounds half away from zero
	assert.InDelta(t, 15.5, m.TotalCO2Saved, 1e-9)
	assert.InDelta(t, 150, m.TotalDistance, 1e-9)
	assert.Equal(t, 2, m.TotalProducts)
	assert.Equal(t, 7, m.TotalSteps)
	assert.InDelta(t, 3.5, m.AvgStepsPerProduct, 1e-9)
	// 3.5*8 + 31*0.5 = 43.5, capped
	assert.InDelta(t, 35, m.EfficiencyImprovement, 1e-9)
}

func TestAggregate_EfficiencyBelowCap(t *testing.T) {
	scores := []model.ESGScore{
		{ProductID: "a", SustainabilityScore: 40, TotalSteps: 1},
		{ProductID: "b", SustainabilityScore: 40, TotalSteps: 2},
		{ProductID: "c", SustainabilityScore: 40, TotalSteps: 2},
	}
	m := Aggregate(scores, nil)
	// avgSteps 5/3 = 1.666..., 13.333 - 5 = 8.333 -> 8.3
	assert.InDelta(t, 1.7, m.AvgStepsPerProduct, 1e-9)
	assert.InDelta(t, 8.3, m.EfficiencyImprovement, 1e-9)
}

func TestAggregate_RefinedDistanceOverrides(t *testing.T) {
	scores := []model.ESGScore{
		{ProductID: "a", TotalDistanceKm: 100},
		{ProductID: "b", TotalDistanceKm: 50},
	}
	m := Aggregate(scores, map[string]float64{"a": 812.4, "zzz": 1})
	assert.InDelta(t, 862.4, m.TotalDistance, 1e-9)
}

func TestAggregate_SumDecomposition(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var a, b []model.ESGScore
	for i := range 40 {
		s := model.ESGScore{
			ProductID:             strconv.Itoa(i),
			SustainabilityScore:   uint8(rng.Intn(101)),
			CO2SavedVsTraditional: float64(rng.Intn(1000)) / 4,
			TotalDistanceKm:       float64(rng.Intn(5000)) / 2,
			TotalSteps:            uint32(rng.Intn(12)),
		}
		if i%3 == 0 {
			a = append(a, s)
		} else {
			b = append(b, s)
		}
	}

	all := Aggregate(append(append([]model.ESGScore{}, a...), b...), nil)
	ma, mb := Aggregate(a, nil), Aggregate(b, nil)

	assert.InDelta(t, ma.TotalCO2Saved+mb.TotalCO2Saved, all.TotalCO2Saved, 1e-6)
	assert.InDelta(t, ma.TotalDistance+mb.TotalDistance, all.TotalDistance, 1e-6)
	assert.Equal(t, ma.TotalSteps+mb.TotalSteps, all.TotalSteps)
}

func TestAggregate_EfficiencyCapHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for range 200 {
		n := 1 + rng.Intn(10)
		scores := make([]model.ESGScore, n)
		for i := range scores {
			scores[i] = model.ESGScore{
				SustainabilityScore: uint8(rng.Intn(101)),
				TotalSteps:          uint32(rng.Intn(100)),
			}
		}
		assert.LessOrEqual(t, Aggregate(scores, nil).EfficiencyImprovement, MaxEfficiencyImprovement)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	scores := []model.ESGScore{
		{ProductID: "a", SustainabilityScore: 63, CO2SavedVsTraditional: 0.1, TotalDistanceKm: 0.2, TotalSteps: 3},
		{ProductID: "b", SustainabilityScore: 88, CO2SavedVsTraditional: 0.7, TotalDistanceKm: 1.3, TotalSteps: 9},
	}
	refined := map[string]float64{"b": 4.4}
	assert.Equal(t, Aggregate(scores, refined), Aggregate(scores, refined))
}

func TestSelectBestPerformer(t *testing.T) {
	assert.Nil(t, SelectBestPerformer(nil))

	best := SelectBestPerformer([]model.ESGScore{score("a", 70), score("b", 90), score("c", 90)})
	require.NotNil(t, best)
	assert.Equal(t, "b", best.ProductID)

	best = SelectBestPerformer([]model.ESGScore{score("only", 0)})
	require.NotNil(t, best)
	assert.Equal(t, "only", best.ProductID)
}

func TestDeriveComparisons(t *testing.T) {
	c := DeriveComparisons(220, 38440)
	assert.Equal(t, 10, c.TreesEquivalent)
	assert.Equal(t, 545, c.CarMilesEquivalent)
	assert.Equal(t, 2, c.FlightHoursEquivalent)
	assert.InDelta(t, 10.0, c.PercentOfMoonDistance, 1e-9)

	c = DeriveComparisons(0, 1234)
	assert.Equal(t, 0, c.TreesEquivalent)
	assert.InDelta(t, 0.32, c.PercentOfMoonDistance, 1e-9)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent"},
		{80, "Excellent"},
		{79, "Good"},
		{60, "Good"},
		{59, "Fair"},
		{40, "Fair"},
		{39, "Poor"},
		{0, "Poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.score), tt.score)
	}
}
