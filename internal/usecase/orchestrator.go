package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"PetroPulse/internal/domain/models"
	domrepo "PetroPulse/internal/domain/repository"
	domsvc "PetroPulse/internal/domain/service"
	"PetroPulse/pkg/logger"
)

// Sinks are optional side outputs of a successful refresh. All of them
// are best-effort: a sink failure is logged and never fails the refresh
// or corrupts the published snapshot.
type Sinks struct {
	Archive domrepo.ResultArchive
	Alerts  domrepo.AlertPublisher
	Cache   domrepo.SnapshotCache
	Models  domrepo.ModelStore
	Notify  func(*models.AnalyticsSnapshot)
}

// Orchestrator owns the single current snapshot and coordinates the two
// model computations against a shared preparation of the input batches.
type Orchestrator struct {
	prep       domsvc.Preprocessor
	forecaster domsvc.Forecaster
	scorer     domsvc.AnomalyScorer
	sinks      Sinks
	metrics    domrepo.Metrics
	log        *logger.Logger
	horizon    int
	now        func() time.Time

	// refreshMu serializes refreshes; readers never take it. The snapshot
	// is built off to the side and swapped in as one visible update.
	refreshMu sync.Mutex
	current   atomic.Pointer[models.AnalyticsSnapshot]
	previous  atomic.Pointer[models.AnalyticsSnapshot]

	stateMu     sync.Mutex
	status      models.SnapshotStatus
	lastErr     error
	lastAttempt time.Time
}

func NewOrchestrator(
	prep domsvc.Preprocessor,
	forecaster domsvc.Forecaster,
	scorer domsvc.AnomalyScorer,
	sinks Sinks,
	metrics domrepo.Metrics,
	log *logger.Logger,
	horizon int,
) *Orchestrator {
	if horizon <= 0 {
		horizon = 30
	}
	return &Orchestrator{
		prep:       prep,
		forecaster: forecaster,
		scorer:     scorer,
		sinks:      sinks,
		metrics:    metrics,
		log:        log,
		horizon:    horizon,
		now:        time.Now,
		status:     models.SnapshotAbsent,
	}
}

type forecastOut struct {
	results []models.ForecastResult
	err     error
}

type anomalyOut struct {
	verdicts    []models.AnomalyVerdict
	maintenance []models.MaintenanceItem
	records     int
	err         error
}

// Refresh prepares both input streams, runs the forecast and anomaly
// computations concurrently, and publishes a new snapshot only once both
// complete. This is a join, not a race. On any failure, including the
// deadline, the previously published snapshot stays in place.
func (o *Orchestrator) Refresh(ctx context.Context, market []models.TimeSeriesPoint, equipment []models.EquipmentRecord) (*models.AnalyticsSnapshot, error) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	prior := o.setComputing()
	start := o.now()

	fCh := make(chan forecastOut, 1)
	aCh := make(chan anomalyOut, 1)
	go func() { fCh <- o.runForecasts(market) }()
	go func() { aCh <- o.runAnomalies(equipment) }()

	var fOut forecastOut
	var aOut anomalyOut
	for done := 0; done < 2; {
		select {
		case fOut = <-fCh:
			done++
		case aOut = <-aCh:
			done++
		case <-ctx.Done():
			// The goroutines finish into buffered channels and are
			// discarded; nothing they produce is published.
			o.failRefresh(prior, models.ErrRefreshTimeout)
			o.observe("timeout", start)
			return nil, models.ErrRefreshTimeout
		}
	}

	if fOut.err != nil {
		o.failRefresh(prior, fOut.err)
		o.observe("forecast_error", start)
		return nil, fOut.err
	}
	if aOut.err != nil {
		o.failRefresh(prior, aOut.err)
		o.observe("anomaly_error", start)
		return nil, aOut.err
	}

	snap := o.assemble(fOut, aOut)
	o.previous.Store(o.current.Swap(snap))
	o.setReady()
	o.observe("ok", start)
	o.emit(ctx, snap)
	return snap, nil
}

func (o *Orchestrator) runForecasts(market []models.TimeSeriesPoint) forecastOut {
	rows, err := o.prep.Prepare(market)
	if err != nil {
		return forecastOut{err: &models.ForecastUnavailableError{Err: err}}
	}

	bySeries := make(map[string][]models.FeatureRow)
	ids := make([]string, 0)
	for _, r := range rows {
		if _, ok := bySeries[r.SeriesID]; !ok {
			ids = append(ids, r.SeriesID)
		}
		bySeries[r.SeriesID] = append(bySeries[r.SeriesID], r)
	}
	sort.Strings(ids)

	results := make([]models.ForecastResult, 0, len(ids))
	for _, id := range ids {
		state, err := o.forecaster.Fit(bySeries[id])
		if err != nil {
			return forecastOut{err: &models.ForecastUnavailableError{Err: err}}
		}
		res, err := o.forecaster.Predict(state, o.horizon)
		if err != nil {
			return forecastOut{err: &models.ForecastUnavailableError{Err: err}}
		}
		results = append(results, res)
		o.persistForecastState(id, state)
	}
	return forecastOut{results: results}
}

func (o *Orchestrator) runAnomalies(equipment []models.EquipmentRecord) anomalyOut {
	records, err := o.prep.PrepareEquipment(equipment)
	if err != nil {
		return anomalyOut{err: &models.AnomalyUnavailableError{Err: err}}
	}
	if len(records) == 0 {
		return anomalyOut{verdicts: []models.AnomalyVerdict{}}
	}

	baseline, err := o.scorer.Fit(records)
	if err != nil {
		return anomalyOut{err: &models.AnomalyUnavailableError{Err: err}}
	}
	verdicts, err := o.scorer.Score(baseline, records)
	if err != nil {
		return anomalyOut{err: &models.AnomalyUnavailableError{Err: err}}
	}
	o.persistBaseline(baseline)
	return anomalyOut{
		verdicts:    verdicts,
		maintenance: BuildMaintenanceReport(records, verdicts),
		records:     len(records),
	}
}

func (o *Orchestrator) assemble(f forecastOut, a anomalyOut) *models.AnalyticsSnapshot {
	trend := make(map[string]string, len(f.results))
	anomalies := 0
	for _, v := range a.verdicts {
		if v.IsAnomalous {
			anomalies++
		}
	}
	for _, r := range f.results {
		trend[r.SeriesID] = r.TrendDirection()
		if o.metrics != nil && len(r.Horizon) > 0 {
			o.metrics.RecordForecastPrice(r.SeriesID, r.Horizon[len(r.Horizon)-1].Point)
		}
	}
	if o.metrics != nil {
		o.metrics.RecordAnomalies(anomalies)
	}
	return &models.AnalyticsSnapshot{
		Forecasts:   f.results,
		Anomalies:   a.verdicts,
		Maintenance: a.maintenance,
		Summary: models.SnapshotSummary{
			PriceTrend:   trend,
			AnomalyCount: anomalies,
			RecordCount:  a.records,
		},
		ComputedAt: o.now(),
	}
}

// CurrentSnapshot is a non-blocking read of the last published snapshot.
func (o *Orchestrator) CurrentSnapshot() (*models.AnalyticsSnapshot, bool) {
	snap := o.current.Load()
	return snap, snap != nil
}

// PreviousSnapshot returns the snapshot before the current one, kept for
// delta display.
func (o *Orchestrator) PreviousSnapshot() (*models.AnalyticsSnapshot, bool) {
	snap := o.previous.Load()
	return snap, snap != nil
}

// Status reports the snapshot lifecycle so the presentation layer can
// tell "no snapshot yet" from "refresh failed, stale data" from "fresh".
func (o *Orchestrator) Status() models.RefreshState {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	st := models.RefreshState{
		Status:      o.status,
		LastAttempt: o.lastAttempt,
	}
	if snap := o.current.Load(); snap != nil {
		st.ComputedAt = snap.ComputedAt
		st.Stale = o.lastErr != nil
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}

func (o *Orchestrator) setComputing() models.SnapshotStatus {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	prior := o.status
	o.status = models.SnapshotComputing
	o.lastAttempt = o.now()
	return prior
}

func (o *Orchestrator) setReady() {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.status = models.SnapshotReady
	o.lastErr = nil
}

// failRefresh transitions back to the prior state, never to a corrupt
// intermediate one.
func (o *Orchestrator) failRefresh(prior models.SnapshotStatus, err error) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if prior == models.SnapshotComputing {
		prior = models.SnapshotAbsent
	}
	o.status = prior
	o.lastErr = err
	if o.log != nil {
		o.log.Error("refresh failed", logger.Error(err))
	}
}

func (o *Orchestrator) observe(outcome string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordRefresh(outcome, o.now().Sub(start).Seconds())
	}
}

// emit pushes the fresh snapshot to the optional side outputs.
func (o *Orchestrator) emit(ctx context.Context, snap *models.AnalyticsSnapshot) {
	computedAt := snap.ComputedAt.Unix()
	if o.sinks.Archive != nil {
		if err := o.sinks.Archive.ArchiveForecasts(ctx, computedAt, snap.Forecasts); err != nil {
			o.warn("forecast archive failed", err)
		}
		if err := o.sinks.Archive.ArchiveVerdicts(ctx, computedAt, snap.Anomalies); err != nil {
			o.warn("verdict archive failed", err)
		}
	}
	if o.sinks.Alerts != nil && snap.Summary.AnomalyCount > 0 {
		if err := o.sinks.Alerts.PublishAnomalies(ctx, snap.Anomalies); err != nil {
			o.warn("alert publish failed", err)
		}
	}
	if o.sinks.Cache != nil {
		if err := o.sinks.Cache.PublishSnapshot(ctx, snap); err != nil {
			o.warn("snapshot cache publish failed", err)
		}
	}
	if o.sinks.Notify != nil {
		o.sinks.Notify(snap)
	}
}

func (o *Orchestrator) persistForecastState(seriesID string, state domsvc.ForecastState) {
	if o.sinks.Models == nil {
		return
	}
	if err := o.sinks.Models.SaveForecastState(seriesID, state); err != nil {
		o.warn("forecast state save failed", err)
	}
}

func (o *Orchestrator) persistBaseline(state domsvc.BaselineState) {
	if o.sinks.Models == nil {
		return
	}
	if err := o.sinks.Models.SaveBaseline(state); err != nil {
		o.warn("baseline save failed", err)
	}
}

func (o *Orchestrator) warn(msg string, err error) {
	if o.log != nil {
		o.log.Warn(msg, logger.Error(err))
	}
	if o.metrics != nil {
		o.metrics.RecordError("sink")
	}
}
