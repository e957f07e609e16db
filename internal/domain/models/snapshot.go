package models

import "time"

// SnapshotStatus tracks the snapshot lifecycle: Absent -> Computing -> Ready,
// then Ready -> Computing -> Ready on each refresh. A failed refresh falls
// back to the prior status.
type SnapshotStatus string

const (
	SnapshotAbsent    SnapshotStatus = "absent"
	SnapshotComputing SnapshotStatus = "computing"
	SnapshotReady     SnapshotStatus = "ready"
)

// SnapshotSummary carries the headline numbers shown on dashboards.
type SnapshotSummary struct {
	PriceTrend   map[string]string `json:"price_trend"` // series id -> increasing/decreasing/flat
	AnomalyCount int               `json:"anomaly_count"`
	RecordCount  int               `json:"record_count"`
}

// AnalyticsSnapshot is the immutable bundle of one successful refresh.
// Forecasts are ordered by series id, Anomalies by (equipment id, timestamp).
// Consumers must treat it as read-only; a new refresh produces a new bundle.
type AnalyticsSnapshot struct {
	Forecasts   []ForecastResult  `json:"forecasts"`
	Anomalies   []AnomalyVerdict  `json:"anomalies"`
	Maintenance []MaintenanceItem `json:"maintenance"`
	Summary     SnapshotSummary   `json:"summary"`
	ComputedAt  time.Time         `json:"computed_at"`
}

// RefreshState is what the presentation layer needs to distinguish
// "no snapshot yet" from "refresh failed, showing stale data" from
// "fresh successful snapshot".
type RefreshState struct {
	Status      SnapshotStatus `json:"status"`
	Stale       bool           `json:"stale"` // last refresh failed but a prior snapshot is served
	LastError   string         `json:"last_error,omitempty"`
	LastAttempt time.Time      `json:"last_attempt,omitempty"`
	ComputedAt  time.Time      `json:"computed_at,omitempty"`
}
