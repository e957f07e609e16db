package models

import "time"

// EquipmentRecord is one telemetry sample for a piece of equipment.
// HealthScore is expected in [0,1]; Features carries additional sensor
// readings used by the anomaly baseline.
type EquipmentRecord struct {
	EquipmentID string    `json:"equipment_id"`
	FacilityID  string    `json:"facility_id"`
	Timestamp   time.Time `json:"timestamp"`
	HealthScore float64   `json:"health_score"`
	Features    []float64 `json:"features"`
}

// AnomalyVerdict is the scored classification of a single equipment record.
type AnomalyVerdict struct {
	EquipmentID string    `json:"equipment_id"`
	Timestamp   time.Time `json:"timestamp"`
	IsAnomalous bool      `json:"is_anomalous"`
	Severity    float64   `json:"severity"` // outlier score, >= 0
	ReasonCode  string    `json:"reason_code"`
}

// MaintenanceItem is one row of the maintenance priority report: a piece
// of equipment with at least one anomalous record, ranked by how bad its
// worst health score was.
type MaintenanceItem struct {
	FacilityID     string    `json:"facility_id"`
	EquipmentID    string    `json:"equipment_id"`
	MinHealthScore float64   `json:"min_health_score"`
	LastSeen       time.Time `json:"last_seen"`
	Priority       int       `json:"priority"` // 1 = most urgent
}
