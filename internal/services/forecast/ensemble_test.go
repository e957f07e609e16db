package forecast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"PetroPulse/internal/domain/models"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * 24 * time.Hour)
}

// featureRows derives the same rolling features the preprocessor would.
func featureRows(id string, values []float64, window, lags int) []models.FeatureRow {
	skip := window - 1
	if lags > skip {
		skip = lags
	}
	rows := make([]models.FeatureRow, 0, len(values)-skip)
	for i := skip; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		lg := make([]float64, lags)
		for l := 1; l <= lags; l++ {
			lg[l-1] = values[i-l]
		}
		rows = append(rows, models.FeatureRow{
			SeriesID:  id,
			Timestamp: day(i),
			Value:     values[i],
			RollMean:  stat.Mean(w, nil),
			RollVol:   stat.StdDev(w, nil),
			Lags:      lg,
		})
	}
	return rows
}

func trendValues(start, slope float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

func testConfig() Config {
	return Config{Horizon: 30, BoundSigma: 1.96, Seed: 42, MinTrainRows: 10, Window: 3}
}

func TestFitPredictDeterministic(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", []float64{70, 71.2, 70.8, 72, 73.5, 72.9, 74, 75.1, 74.6, 76, 77.2, 76.8, 78, 79.3}, 3, 2)

	s1, err := e.Fit(rows)
	require.NoError(t, err)
	s2, err := e.Fit(rows)
	require.NoError(t, err)

	r1, err := e.Predict(s1, 10)
	require.NoError(t, err)
	r2, err := e.Predict(s2, 10)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestPredictContinuesLinearTrend(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(10, 1, 20), 3, 2)

	state, err := e.Fit(rows)
	require.NoError(t, err)
	res, err := e.Predict(state, 5)
	require.NoError(t, err)

	// every member learns a constant +1 delta on a perfect trend
	last := rows[len(rows)-1].Value
	for i, hp := range res.Horizon {
		assert.InDelta(t, last+float64(i+1), hp.Point, 1e-6, "step %d", i)
	}
	assert.Equal(t, "increasing", res.TrendDirection())
}

func TestPredictBoundsOrderedAndWidening(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", []float64{70, 72, 69, 73, 71, 74, 70, 75, 72, 76, 73, 77, 74, 78}, 3, 2)

	state, err := e.Fit(rows)
	require.NoError(t, err)
	res, err := e.Predict(state, 30)
	require.NoError(t, err)
	require.Len(t, res.Horizon, 30)

	prevWidth := 0.0
	for i, hp := range res.Horizon {
		assert.LessOrEqual(t, hp.Lower, hp.Point, "step %d", i)
		assert.LessOrEqual(t, hp.Point, hp.Upper, "step %d", i)
		width := hp.Upper - hp.Lower
		assert.GreaterOrEqual(t, width+1e-12, prevWidth, "step %d", i)
		prevWidth = width
	}
}

func TestPredictDefaultHorizon(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(50, 0.5, 18), 3, 2)

	state, err := e.Fit(rows)
	require.NoError(t, err)
	res, err := e.Predict(state, 0)
	require.NoError(t, err)
	assert.Len(t, res.Horizon, 30)
}

func TestPredictTimestampsFollowStep(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(50, 0.5, 15), 3, 2)

	state, err := e.Fit(rows)
	require.NoError(t, err)
	res, err := e.Predict(state, 3)
	require.NoError(t, err)

	lastTS := rows[len(rows)-1].Timestamp
	assert.Equal(t, lastTS, res.GeneratedAt)
	for i, hp := range res.Horizon {
		assert.Equal(t, lastTS.Add(time.Duration(i+1)*24*time.Hour), hp.Timestamp)
	}
}

func TestFitRejectsShortHistory(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(10, 1, 8), 3, 2)

	_, err := e.Fit(rows)
	var ih *models.InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, "wti", ih.SeriesID)
}

func TestFitRejectsMixedSeries(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(10, 1, 15), 3, 2)
	rows[4].SeriesID = "brent"

	_, err := e.Fit(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixed series")
}

func TestModelStateSurvivesJSON(t *testing.T) {
	e := New(testConfig())
	rows := featureRows("wti", trendValues(60, 0.25, 16), 3, 2)

	state, err := e.Fit(rows)
	require.NoError(t, err)
	want, err := e.Predict(state, 7)
	require.NoError(t, err)

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var restored ModelState
	require.NoError(t, json.Unmarshal(data, &restored))

	got, err := e.Predict(&restored, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
