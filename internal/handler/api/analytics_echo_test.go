package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PetroPulse/internal/domain/models"
	"PetroPulse/internal/repository"
	"PetroPulse/internal/services/anomaly"
	"PetroPulse/internal/services/forecast"
	"PetroPulse/internal/services/prep"
	"PetroPulse/internal/usecase"
	"PetroPulse/pkg/logger"
)

type apiEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func newTestHandler(t *testing.T, rateCapacity, rateRefill float64) *AnalyticsEchoHandler {
	t.Helper()
	l := testLogger(t)
	orch := usecase.NewOrchestrator(
		prep.New(prep.Config{Window: 3, Lags: 2, MaxGap: 2, Step: 24 * time.Hour}),
		forecast.New(forecast.Config{Horizon: 10, BoundSigma: 1.96, Seed: 42, MinTrainRows: 10, Window: 3}),
		anomaly.New(anomaly.Config{Trees: 10, SampleSize: 16, Threshold: 0.6, Seed: 42, MinBaseline: 8}, nil),
		usecase.Sinks{},
		nil,
		l,
		10,
	)
	return NewAnalyticsEchoHandler(l, orch, rateCapacity, rateRefill)
}

func serve(h *AnalyticsEchoHandler, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func marketBatch(n int) []models.TimeSeriesPoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.TimeSeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, models.TimeSeriesPoint{
			SeriesID:  "wti",
			Timestamp: base.AddDate(0, 0, i),
			Value:     70 + float64(i)*0.5,
		})
	}
	return points
}

func fleetBatch(n int) []models.EquipmentRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(11))
	records := make([]models.EquipmentRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.EquipmentRecord{
			EquipmentID: "pump-1",
			FacilityID:  "permian-a",
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			HealthScore: 0.85 + rng.Float64()*0.05,
			Features:    []float64{50 + rng.Float64(), 3 + rng.Float64()*0.1},
		})
	}
	return records
}

func refreshBody(t *testing.T, market []models.TimeSeriesPoint, equipment []models.EquipmentRecord) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"market":    market,
		"equipment": equipment,
	})
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

func postRefresh(t *testing.T, h *AnalyticsEchoHandler, market []models.TimeSeriesPoint, equipment []models.EquipmentRecord) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", refreshBody(t, market, equipment))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return serve(h, req)
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := postRefresh(t, h, marketBatch(25), fleetBatch(12))
	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status, "body: %s", rec.Body.String())

	var snap models.AnalyticsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Forecasts, 1)
	assert.Equal(t, "wti", snap.Forecasts[0].SeriesID)
	assert.Len(t, snap.Forecasts[0].Horizon, 10)
	assert.Equal(t, "increasing", snap.Summary.PriceTrend["wti"])
	assert.Equal(t, 12, snap.Summary.RecordCount)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	env = decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var body struct {
		State models.RefreshState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, models.SnapshotReady, body.State.Status)
	assert.False(t, body.State.Stale)
}

func TestRefreshRejectsEmptyMarket(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := postRefresh(t, h, nil, fleetBatch(12))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestRefreshUnusableHistoryIsUnprocessable(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := postRefresh(t, h, marketBatch(4), fleetBatch(12))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, env.Status)
}

func TestRefreshRateLimited(t *testing.T) {
	h := newTestHandler(t, 1, 0.0001)

	rec := postRefresh(t, h, marketBatch(25), fleetBatch(12))
	require.Equal(t, http.StatusOK, decodeEnvelope(t, rec).Status)

	rec = postRefresh(t, h, marketBatch(25), fleetBatch(12))
	assert.Equal(t, http.StatusTooManyRequests, decodeEnvelope(t, rec).Status)
}

func TestMaintenanceBeforeFirstSnapshot(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/maintenance", nil))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestSummaryAfterRefresh(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := postRefresh(t, h, marketBatch(25), fleetBatch(12))
	require.Equal(t, http.StatusOK, decodeEnvelope(t, rec).Status)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status)

	var summary models.SnapshotSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 12, summary.RecordCount)
}

func TestForecastFromPersistedState(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	store, err := repository.NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	p := prep.New(prep.Config{Window: 3, Lags: 2, MaxGap: 2, Step: 24 * time.Hour})
	rows, err := p.Prepare(marketBatch(25))
	require.NoError(t, err)

	f := forecast.New(forecast.Config{Horizon: 10, BoundSigma: 1.96, Seed: 42, MinTrainRows: 10, Window: 3})
	state, err := f.Fit(rows)
	require.NoError(t, err)
	require.NoError(t, store.SaveForecastState("wti", state))

	h.SetModelStore(f, store)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/forecast/wti?horizon=5", nil))
	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, env.Status, "body: %s", rec.Body.String())

	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "wti", res.SeriesID)
	assert.Len(t, res.Horizon, 5)
}

func TestForecastUnknownSeries(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	store, err := repository.NewFileModelStore(t.TempDir())
	require.NoError(t, err)
	h.SetModelStore(forecast.New(forecast.DefaultConfig()), store)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/forecast/brent", nil))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestHealthzWithoutProbe(t *testing.T) {
	h := newTestHandler(t, 10, 10)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)
}
