package usecase

import (
	"sort"

	"PetroPulse/internal/domain/models"
)

// BuildMaintenanceReport turns anomalous verdicts back into a per-equipment
// priority list: worst observed health score, last time the equipment was
// seen, and a 1-based priority where the lowest health score ranks first.
func BuildMaintenanceReport(records []models.EquipmentRecord, verdicts []models.AnomalyVerdict) []models.MaintenanceItem {
	type key struct{ equipment string }

	flagged := make(map[string]map[int64]bool)
	for _, v := range verdicts {
		if !v.IsAnomalous {
			continue
		}
		if flagged[v.EquipmentID] == nil {
			flagged[v.EquipmentID] = make(map[int64]bool)
		}
		flagged[v.EquipmentID][v.Timestamp.UnixNano()] = true
	}
	if len(flagged) == 0 {
		return nil
	}

	items := make(map[key]*models.MaintenanceItem)
	order := make([]key, 0)
	for i := range records {
		r := &records[i]
		if !flagged[r.EquipmentID][r.Timestamp.UnixNano()] {
			continue
		}
		k := key{equipment: r.EquipmentID}
		it, ok := items[k]
		if !ok {
			it = &models.MaintenanceItem{
				FacilityID:     r.FacilityID,
				EquipmentID:    r.EquipmentID,
				MinHealthScore: r.HealthScore,
				LastSeen:       r.Timestamp,
			}
			items[k] = it
			order = append(order, k)
			continue
		}
		if r.HealthScore < it.MinHealthScore {
			it.MinHealthScore = r.HealthScore
		}
		if r.Timestamp.After(it.LastSeen) {
			it.LastSeen = r.Timestamp
		}
	}

	out := make([]models.MaintenanceItem, 0, len(order))
	for _, k := range order {
		out = append(out, *items[k])
	}
	// Worst health first; first-seen order breaks ties so ranking is stable.
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinHealthScore < out[j].MinHealthScore })
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}
