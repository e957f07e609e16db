package anomaly

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PetroPulse/internal/domain/models"
)

func ts(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
}

// normalFleet generates tightly clustered healthy telemetry.
func normalFleet(n int) []models.EquipmentRecord {
	rng := rand.New(rand.NewSource(7))
	recs := make([]models.EquipmentRecord, n)
	for i := range recs {
		recs[i] = models.EquipmentRecord{
			EquipmentID: "pump-1",
			FacilityID:  "fac-a",
			Timestamp:   ts(i),
			HealthScore: 0.85 + 0.05*rng.Float64(),
			Features:    []float64{50 + rng.Float64(), 3 + 0.1*rng.Float64()},
		}
	}
	return recs
}

func TestFitScoreFlagsOutlier(t *testing.T) {
	d := New(DefaultConfig(), nil)
	base := normalFleet(64)

	state, err := d.Fit(base)
	require.NoError(t, err)
	assert.Equal(t, 64, state.TrainedOn())

	outlier := models.EquipmentRecord{
		EquipmentID: "pump-9",
		FacilityID:  "fac-a",
		Timestamp:   ts(100),
		HealthScore: 0.05,
		Features:    []float64{120, 9},
	}

	verdicts, err := d.Score(state, append(base[:4:4], outlier))
	require.NoError(t, err)
	require.Len(t, verdicts, 5)

	for _, v := range verdicts[:4] {
		assert.False(t, v.IsAnomalous, "normal record flagged: %+v", v)
		assert.Equal(t, "normal", v.ReasonCode)
	}

	last := verdicts[4]
	assert.True(t, last.IsAnomalous)
	assert.Equal(t, "low_health", last.ReasonCode)
	assert.Greater(t, last.Severity, 0.6)
}

func TestScoreSeverityInUnitInterval(t *testing.T) {
	d := New(DefaultConfig(), nil)
	base := normalFleet(32)

	state, err := d.Fit(base)
	require.NoError(t, err)
	verdicts, err := d.Score(state, base)
	require.NoError(t, err)

	for _, v := range verdicts {
		assert.Greater(t, v.Severity, 0.0)
		assert.Less(t, v.Severity, 1.0)
	}
}

func TestScoreDeterministic(t *testing.T) {
	d := New(DefaultConfig(), nil)
	base := normalFleet(32)

	s1, err := d.Fit(base)
	require.NoError(t, err)
	s2, err := d.Fit(base)
	require.NoError(t, err)

	v1, err := d.Score(s1, base)
	require.NoError(t, err)
	v2, err := d.Score(s2, base)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestScoreExactThresholdStaysNormal(t *testing.T) {
	// threshold equal to the score must not flag; only strictly above does
	d := New(Config{Trees: 10, SampleSize: 16, Threshold: 0, Seed: 42, MinBaseline: 8}, nil)
	base := normalFleet(16)

	state, err := d.Fit(base)
	require.NoError(t, err)
	verdicts, err := d.Score(state, base[:1])
	require.NoError(t, err)
	require.Len(t, verdicts, 1)

	d2 := New(Config{Trees: 10, SampleSize: 16, Threshold: verdicts[0].Severity, Seed: 42, MinBaseline: 8}, nil)
	state2, err := d2.Fit(base)
	require.NoError(t, err)
	verdicts2, err := d2.Score(state2, base[:1])
	require.NoError(t, err)
	require.Len(t, verdicts2, 1)
	assert.Equal(t, verdicts[0].Severity, verdicts2[0].Severity)
	assert.False(t, verdicts2[0].IsAnomalous)
}

func TestScoreSkipsRecordsWithMissingFeatures(t *testing.T) {
	d := New(DefaultConfig(), nil)
	base := normalFleet(32)

	state, err := d.Fit(base)
	require.NoError(t, err)

	batch := []models.EquipmentRecord{
		base[0],
		{EquipmentID: "pump-7", Timestamp: ts(50), HealthScore: math.NaN(), Features: []float64{50, 3}},
		{EquipmentID: "pump-8", Timestamp: ts(51), HealthScore: 0.9, Features: []float64{50, math.NaN()}},
		{EquipmentID: "pump-6", Timestamp: ts(52), HealthScore: 0.9, Features: []float64{50}}, // wrong dim
		base[1],
	}

	verdicts, err := d.Score(state, batch)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, "pump-1", verdicts[0].EquipmentID)
	assert.Equal(t, "pump-1", verdicts[1].EquipmentID)
}

func TestFitRejectsThinBaseline(t *testing.T) {
	d := New(DefaultConfig(), nil)

	_, err := d.Fit(normalFleet(3))
	var dq *models.DataQualityError
	require.ErrorAs(t, err, &dq)
}

func TestFitDropsUnusableRows(t *testing.T) {
	d := New(Config{Trees: 10, SampleSize: 16, Threshold: 0.6, Seed: 42, MinBaseline: 8}, nil)
	base := normalFleet(10)
	base[3].HealthScore = math.NaN()

	state, err := d.Fit(base)
	require.NoError(t, err)
	assert.Equal(t, 9, state.TrainedOn())
}
