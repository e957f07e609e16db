package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PetroPulse/internal/domain/models"
)

func at(n int) time.Time {
	return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
}

func verdict(equipment string, n int, anomalous bool) models.AnomalyVerdict {
	return models.AnomalyVerdict{EquipmentID: equipment, Timestamp: at(n), IsAnomalous: anomalous}
}

func record(equipment, facility string, n int, health float64) models.EquipmentRecord {
	return models.EquipmentRecord{EquipmentID: equipment, FacilityID: facility, Timestamp: at(n), HealthScore: health}
}

func TestBuildMaintenanceReportRanksByWorstHealth(t *testing.T) {
	records := []models.EquipmentRecord{
		record("pump-1", "fac-a", 0, 0.40),
		record("pump-1", "fac-a", 1, 0.25),
		record("pump-2", "fac-b", 0, 0.10),
		record("pump-3", "fac-a", 0, 0.90),
	}
	verdicts := []models.AnomalyVerdict{
		verdict("pump-1", 0, true),
		verdict("pump-1", 1, true),
		verdict("pump-2", 0, true),
		verdict("pump-3", 0, false),
	}

	items := BuildMaintenanceReport(records, verdicts)
	require.Len(t, items, 2)

	assert.Equal(t, "pump-2", items[0].EquipmentID)
	assert.Equal(t, 1, items[0].Priority)
	assert.InDelta(t, 0.10, items[0].MinHealthScore, 1e-12)
	assert.Equal(t, "fac-b", items[0].FacilityID)

	assert.Equal(t, "pump-1", items[1].EquipmentID)
	assert.Equal(t, 2, items[1].Priority)
	assert.InDelta(t, 0.25, items[1].MinHealthScore, 1e-12)
	assert.Equal(t, at(1), items[1].LastSeen)
}

func TestBuildMaintenanceReportOnlyAnomalousRecordsCount(t *testing.T) {
	records := []models.EquipmentRecord{
		record("pump-1", "fac-a", 0, 0.05), // not flagged: must not drag min down
		record("pump-1", "fac-a", 1, 0.50),
	}
	verdicts := []models.AnomalyVerdict{
		verdict("pump-1", 0, false),
		verdict("pump-1", 1, true),
	}

	items := BuildMaintenanceReport(records, verdicts)
	require.Len(t, items, 1)
	assert.InDelta(t, 0.50, items[0].MinHealthScore, 1e-12)
}

func TestBuildMaintenanceReportEmptyWhenNothingFlagged(t *testing.T) {
	records := []models.EquipmentRecord{record("pump-1", "fac-a", 0, 0.9)}
	verdicts := []models.AnomalyVerdict{verdict("pump-1", 0, false)}

	assert.Empty(t, BuildMaintenanceReport(records, verdicts))
}

func TestBuildMaintenanceReportTieBreaksByFirstSeen(t *testing.T) {
	records := []models.EquipmentRecord{
		record("pump-b", "fac-a", 0, 0.30),
		record("pump-a", "fac-a", 1, 0.30),
	}
	verdicts := []models.AnomalyVerdict{
		verdict("pump-b", 0, true),
		verdict("pump-a", 1, true),
	}

	items := BuildMaintenanceReport(records, verdicts)
	require.Len(t, items, 2)
	assert.Equal(t, "pump-b", items[0].EquipmentID)
	assert.Equal(t, "pump-a", items[1].EquipmentID)
}
