package models

import "time"

// TimeSeriesPoint is a single raw observation of a price series.
// Raw batches may arrive unordered and may contain duplicate timestamps;
// the preprocessor normalizes them before anything else touches the data.
type TimeSeriesPoint struct {
	SeriesID  string    `json:"series_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// FeatureRow is one cleaned, time-indexed row with rolling statistics.
// Rows are derived strictly from history at or before Timestamp; rolling
// windows never read past it.
type FeatureRow struct {
	SeriesID  string    `json:"series_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	RollMean  float64   `json:"roll_mean"`
	RollVol   float64   `json:"roll_vol"`
	Lags      []float64 `json:"lags"` // Lags[0] is the previous value
}
