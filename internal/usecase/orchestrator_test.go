package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PetroPulse/internal/domain/models"
	domsvc "PetroPulse/internal/domain/service"
)

type fakePrep struct {
	prepareErr error
	equipErr   error
}

func (f *fakePrep) Prepare(points []models.TimeSeriesPoint) ([]models.FeatureRow, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	rows := make([]models.FeatureRow, len(points))
	for i, p := range points {
		rows[i] = models.FeatureRow{SeriesID: p.SeriesID, Timestamp: p.Timestamp, Value: p.Value}
	}
	return rows, nil
}

func (f *fakePrep) PrepareEquipment(records []models.EquipmentRecord) ([]models.EquipmentRecord, error) {
	if f.equipErr != nil {
		return nil, f.equipErr
	}
	return records, nil
}

type fakeState struct{ id string }

func (s *fakeState) Series() string { return s.id }

type fakeForecaster struct {
	delay  time.Duration
	fitErr error
}

func (f *fakeForecaster) Fit(rows []models.FeatureRow) (domsvc.ForecastState, error) {
	time.Sleep(f.delay)
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return &fakeState{id: rows[0].SeriesID}, nil
}

func (f *fakeForecaster) Predict(state domsvc.ForecastState, horizon int) (models.ForecastResult, error) {
	pts := make([]models.HorizonPoint, horizon)
	for i := range pts {
		pts[i] = models.HorizonPoint{Point: float64(70 + i), Lower: float64(69 + i), Upper: float64(71 + i)}
	}
	return models.ForecastResult{SeriesID: state.Series(), Horizon: pts}, nil
}

type fakeBaseline struct{ n int }

func (b *fakeBaseline) TrainedOn() int { return b.n }

type fakeScorer struct {
	delay    time.Duration
	fitErr   error
	allBad   bool
	scoreErr error
}

func (f *fakeScorer) Fit(baseline []models.EquipmentRecord) (domsvc.BaselineState, error) {
	time.Sleep(f.delay)
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return &fakeBaseline{n: len(baseline)}, nil
}

func (f *fakeScorer) Score(state domsvc.BaselineState, records []models.EquipmentRecord) ([]models.AnomalyVerdict, error) {
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	out := make([]models.AnomalyVerdict, len(records))
	for i, r := range records {
		out[i] = models.AnomalyVerdict{
			EquipmentID: r.EquipmentID,
			Timestamp:   r.Timestamp,
			IsAnomalous: f.allBad,
			Severity:    0.5,
			ReasonCode:  "normal",
		}
		if f.allBad {
			out[i].ReasonCode = "low_health"
		}
	}
	return out, nil
}

type recordingSinks struct {
	mu        sync.Mutex
	archived  int
	published int
	notified  int
	alerts    int
}

func (r *recordingSinks) ArchiveForecasts(context.Context, int64, []models.ForecastResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archived++
	return nil
}

func (r *recordingSinks) ArchiveVerdicts(context.Context, int64, []models.AnomalyVerdict) error {
	return nil
}
func (r *recordingSinks) Health(context.Context) error { return nil }
func (r *recordingSinks) Close() error                 { return nil }

func (r *recordingSinks) PublishAnomalies(context.Context, []models.AnomalyVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
	return nil
}

func (r *recordingSinks) PublishSnapshot(context.Context, *models.AnalyticsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published++
	return nil
}

func marketBatch() []models.TimeSeriesPoint {
	pts := make([]models.TimeSeriesPoint, 12)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range pts {
		pts[i] = models.TimeSeriesPoint{SeriesID: "wti", Timestamp: base.Add(time.Duration(i) * 24 * time.Hour), Value: float64(70 + i)}
	}
	return pts
}

func equipmentBatch() []models.EquipmentRecord {
	recs := make([]models.EquipmentRecord, 10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range recs {
		recs[i] = models.EquipmentRecord{
			EquipmentID: "pump-1",
			FacilityID:  "fac-a",
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			HealthScore: 0.9,
		}
	}
	return recs
}

func newTestOrchestrator(f *fakeForecaster, s *fakeScorer, sinks Sinks) *Orchestrator {
	return NewOrchestrator(&fakePrep{}, f, s, sinks, nil, nil, 30)
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	snap, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Len(t, snap.Forecasts, 1)
	assert.Equal(t, "wti", snap.Forecasts[0].SeriesID)
	assert.Len(t, snap.Forecasts[0].Horizon, 30)
	assert.Len(t, snap.Anomalies, 10)
	assert.Equal(t, 0, snap.Summary.AnomalyCount)
	assert.Equal(t, 10, snap.Summary.RecordCount)
	assert.Equal(t, "increasing", snap.Summary.PriceTrend["wti"])

	got, ok := o.CurrentSnapshot()
	require.True(t, ok)
	assert.Same(t, snap, got)

	st := o.Status()
	assert.Equal(t, models.SnapshotReady, st.Status)
	assert.False(t, st.Stale)
	assert.Empty(t, st.LastError)
}

func TestRefreshWaitsForBothComputations(t *testing.T) {
	o := newTestOrchestrator(
		&fakeForecaster{delay: 30 * time.Millisecond},
		&fakeScorer{delay: 60 * time.Millisecond},
		Sinks{},
	)

	snap, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Forecasts)
	assert.NotEmpty(t, snap.Anomalies)
}

func TestRefreshTimeoutKeepsPriorSnapshot(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	first, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)

	o.forecaster = &fakeForecaster{delay: 200 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Refresh(ctx, marketBatch(), equipmentBatch())
	require.ErrorIs(t, err, models.ErrRefreshTimeout)

	got, ok := o.CurrentSnapshot()
	require.True(t, ok)
	assert.Same(t, first, got)

	st := o.Status()
	assert.Equal(t, models.SnapshotReady, st.Status)
	assert.True(t, st.Stale)
	assert.Contains(t, st.LastError, "deadline")
}

func TestRefreshForecastFailureWrapped(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{fitErr: errors.New("boom")}, &fakeScorer{}, Sinks{})

	_, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	var fu *models.ForecastUnavailableError
	require.ErrorAs(t, err, &fu)

	_, ok := o.CurrentSnapshot()
	assert.False(t, ok)
	assert.Equal(t, models.SnapshotAbsent, o.Status().Status)
}

func TestRefreshAnomalyFailureWrapped(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{fitErr: errors.New("bad baseline")}, Sinks{})

	_, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	var au *models.AnomalyUnavailableError
	require.ErrorAs(t, err, &au)
}

func TestRefreshFailureAfterSuccessIsStale(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	first, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)

	o.scorer = &fakeScorer{scoreErr: errors.New("scoring broke")}
	_, err = o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.Error(t, err)

	got, ok := o.CurrentSnapshot()
	require.True(t, ok)
	assert.Same(t, first, got)

	st := o.Status()
	assert.Equal(t, models.SnapshotReady, st.Status)
	assert.True(t, st.Stale)
}

func TestRefreshKeepsPreviousSnapshot(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	first, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)
	second, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)

	cur, ok := o.CurrentSnapshot()
	require.True(t, ok)
	assert.Same(t, second, cur)

	prev, ok := o.PreviousSnapshot()
	require.True(t, ok)
	assert.Same(t, first, prev)
}

func TestRefreshEmitsToSinks(t *testing.T) {
	rec := &recordingSinks{}
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{allBad: true}, Sinks{
		Archive: rec,
		Alerts:  rec,
		Cache:   rec,
		Notify:  func(*models.AnalyticsSnapshot) { rec.notified++ },
	})

	_, err := o.Refresh(context.Background(), marketBatch(), equipmentBatch())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.archived)
	assert.Equal(t, 1, rec.published)
	assert.Equal(t, 1, rec.alerts)
	assert.Equal(t, 1, rec.notified)
}

func TestRefreshEmptyEquipmentBatch(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	snap, err := o.Refresh(context.Background(), marketBatch(), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Anomalies)
	assert.Empty(t, snap.Maintenance)
	assert.Equal(t, 0, snap.Summary.RecordCount)
}

func TestStatusBeforeFirstRefresh(t *testing.T) {
	o := newTestOrchestrator(&fakeForecaster{}, &fakeScorer{}, Sinks{})

	st := o.Status()
	assert.Equal(t, models.SnapshotAbsent, st.Status)
	assert.False(t, st.Stale)

	_, ok := o.CurrentSnapshot()
	assert.False(t, ok)
}
