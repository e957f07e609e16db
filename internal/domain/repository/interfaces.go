package repository

import (
	"context"

	"PetroPulse/internal/domain/models"
)

// ResultArchive persists computed results for downstream renderers
// (CSV/PDF export, history charts). Writes are best-effort: an archive
// failure never fails the refresh that produced the results.
type ResultArchive interface {
	ArchiveForecasts(ctx context.Context, computedAt int64, forecasts []models.ForecastResult) error
	ArchiveVerdicts(ctx context.Context, computedAt int64, verdicts []models.AnomalyVerdict) error
	Health(ctx context.Context) error
	Close() error
}

// AlertPublisher pushes anomalous verdicts to a message topic so that
// notification services can pick them up.
type AlertPublisher interface {
	PublishAnomalies(ctx context.Context, verdicts []models.AnomalyVerdict) error
	Close() error
}

// SnapshotCache publishes the latest snapshot for sibling services that
// read it out-of-process.
type SnapshotCache interface {
	PublishSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error
}

// ModelStore persists fitted model states across restarts. Fit/Predict
// stay pure; whoever wants persistence goes through this explicitly.
type ModelStore interface {
	SaveForecastState(seriesID string, state any) error
	LoadForecastState(seriesID string, dest any) (bool, error)
	SaveBaseline(state any) error
	LoadBaseline(dest any) (bool, error)
}

// Metrics records operational metrics for the analytics core.
type Metrics interface {
	RecordRefresh(outcome string, seconds float64)
	RecordError(kind string)
	RecordAnomalies(count int)
	RecordForecastPrice(seriesID string, price float64)
}
