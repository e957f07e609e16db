package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrRefreshTimeout is returned when a refresh exceeds its deadline.
// The previously published snapshot, if any, stays in place.
var ErrRefreshTimeout = errors.New("refresh deadline exceeded")

// DataQualityError marks an input stream that cannot be repaired:
// gaps beyond the configured tolerance, series too short for the rolling
// windows, or values outside their allowed range.
type DataQualityError struct {
	SeriesID string
	Reason   string
}

func (e *DataQualityError) Error() string {
	if e.SeriesID == "" {
		return fmt.Sprintf("data quality: %s", e.Reason)
	}
	return fmt.Sprintf("data quality: series %s: %s", e.SeriesID, e.Reason)
}

// InsufficientHistoryError means too little training data to fit a model.
type InsufficientHistoryError struct {
	SeriesID string
	Got      int
	Need     int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: series %s has %d rows, need %d", e.SeriesID, e.Got, e.Need)
}

// MissingFeatureError marks a single equipment record that cannot be
// scored. It is recovered locally: the record is skipped and the rest of
// the batch is still scored.
type MissingFeatureError struct {
	EquipmentID string
	Timestamp   time.Time
	Reason      string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature: equipment %s at %s: %s", e.EquipmentID, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// ForecastUnavailableError wraps any failure of the forecasting branch of
// a refresh.
type ForecastUnavailableError struct {
	Err error
}

func (e *ForecastUnavailableError) Error() string { return fmt.Sprintf("forecast unavailable: %v", e.Err) }
func (e *ForecastUnavailableError) Unwrap() error { return e.Err }

// AnomalyUnavailableError wraps any failure of the anomaly branch of a
// refresh.
type AnomalyUnavailableError struct {
	Err error
}

func (e *AnomalyUnavailableError) Error() string { return fmt.Sprintf("anomaly detection unavailable: %v", e.Err) }
func (e *AnomalyUnavailableError) Unwrap() error { return e.Err }
