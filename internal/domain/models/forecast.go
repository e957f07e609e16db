package models

import "time"

// HorizonPoint is one step of a forecast with its uncertainty band.
// Lower <= Point <= Upper holds at every step.
type HorizonPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Point     float64   `json:"point"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// ForecastResult is an ordered multi-step forecast for a single series.
type ForecastResult struct {
	SeriesID    string         `json:"series_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Horizon     []HorizonPoint `json:"horizon"`
}

// TrendDirection summarizes where the point estimates end relative to
// where they start.
func (r ForecastResult) TrendDirection() string {
	if len(r.Horizon) < 2 {
		return "flat"
	}
	first := r.Horizon[0].Point
	last := r.Horizon[len(r.Horizon)-1].Point
	switch {
	case last > first:
		return "increasing"
	case last < first:
		return "decreasing"
	default:
		return "flat"
	}
}
