package service

import (
	"PetroPulse/internal/domain/models"
)

// Preprocessor cleans and aligns raw records into feature tables.
type Preprocessor interface {
	// Prepare sorts, deduplicates, gap-fills and derives rolling features
	// for each series present in the input.
	Prepare(points []models.TimeSeriesPoint) ([]models.FeatureRow, error)
	// PrepareEquipment sorts and deduplicates telemetry per equipment and
	// rejects health scores outside [0,1].
	PrepareEquipment(records []models.EquipmentRecord) ([]models.EquipmentRecord, error)
}

// ForecastState is the fitted state of a price forecaster. Callers that
// need persistence across refreshes retain it explicitly; Fit and Predict
// hold no hidden state.
type ForecastState interface {
	Series() string
}

// Forecaster fits an ensemble over one series' feature rows and produces
// a multi-step forecast with an uncertainty band.
type Forecaster interface {
	Fit(rows []models.FeatureRow) (ForecastState, error)
	Predict(state ForecastState, horizon int) (models.ForecastResult, error)
}

// BaselineState is the fitted baseline of an anomaly scorer.
type BaselineState interface {
	TrainedOn() int
}

// AnomalyScorer learns a baseline from normal operating data and scores
// new records against it. Score recovers record-level failures locally:
// a record with missing features is skipped, the batch continues.
type AnomalyScorer interface {
	Fit(baseline []models.EquipmentRecord) (BaselineState, error)
	Score(state BaselineState, records []models.EquipmentRecord) ([]models.AnomalyVerdict, error)
}
