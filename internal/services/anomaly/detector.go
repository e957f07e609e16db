package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"PetroPulse/internal/domain/models"
	domsvc "PetroPulse/internal/domain/service"
	"PetroPulse/pkg/logger"
)

// Config controls baseline fitting and classification.
type Config struct {
	Trees       int     // isolation trees in the baseline
	SampleSize  int     // subsample per tree
	Threshold   float64 // severity above this (strictly) is anomalous
	Seed        int64
	MinBaseline int // fewest clean rows Fit accepts
}

func DefaultConfig() Config {
	return Config{Trees: 100, SampleSize: 256, Threshold: 0.6, Seed: 42, MinBaseline: 8}
}

// Baseline is the fitted distribution of normal operating data.
type Baseline struct {
	Trees        []ITree `json:"trees"`
	SampleSize   int     `json:"sample_size"`
	Dim          int     `json:"dim"` // health score + sensor features
	N            int     `json:"n"`
	MedianHealth float64 `json:"median_health"`
}

// TrainedOn implements service.BaselineState.
func (b *Baseline) TrainedOn() int { return b.N }

// Detector scores equipment records against a learned baseline.
type Detector struct {
	cfg Config
	log *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Detector {
	def := DefaultConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinBaseline <= 0 {
		cfg.MinBaseline = def.MinBaseline
	}
	return &Detector{cfg: cfg, log: log}
}

// Fit learns the baseline from historical normal operating data. Rows
// with missing values are dropped before fitting, the way the training
// frame was always cleaned upstream.
func (d *Detector) Fit(baseline []models.EquipmentRecord) (domsvc.BaselineState, error) {
	var data [][]float64
	var health []float64
	dim := -1
	for i := range baseline {
		vec, err := recordVector(&baseline[i], dim)
		if err != nil {
			continue
		}
		if dim < 0 {
			dim = len(vec)
		}
		data = append(data, vec)
		health = append(health, baseline[i].HealthScore)
	}
	if len(data) < d.cfg.MinBaseline {
		return nil, &models.DataQualityError{
			Reason: fmt.Sprintf("baseline has %d usable records, need %d", len(data), d.cfg.MinBaseline),
		}
	}

	sample := d.cfg.SampleSize
	if sample > len(data) {
		sample = len(data)
	}
	maxHeight := int(math.Ceil(math.Log2(float64(sample))))

	rng := rand.New(rand.NewSource(d.cfg.Seed))
	trees := make([]ITree, d.cfg.Trees)
	for t := range trees {
		idx := rng.Perm(len(data))[:sample]
		trees[t] = buildITree(data, idx, rng, maxHeight)
	}

	sort.Float64s(health)
	return &Baseline{
		Trees:        trees,
		SampleSize:   sample,
		Dim:          dim,
		N:            len(data),
		MedianHealth: health[len(health)/2],
	}, nil
}

// Score classifies each record. Severity is the isolation score in (0,1);
// a record is anomalous only when severity strictly exceeds the
// threshold, so a tie at the boundary stays normal. A record with missing
// features fails alone: it is logged, skipped, and the batch continues.
func (d *Detector) Score(st domsvc.BaselineState, records []models.EquipmentRecord) ([]models.AnomalyVerdict, error) {
	b, ok := st.(*Baseline)
	if !ok || b == nil {
		return nil, fmt.Errorf("score: state is not an isolation baseline")
	}

	verdicts := make([]models.AnomalyVerdict, 0, len(records))
	norm := avgPathLength(b.SampleSize)
	for i := range records {
		rec := &records[i]
		vec, err := recordVector(rec, b.Dim)
		if err != nil {
			if d.log != nil {
				d.log.Warn("record skipped", logger.String("equipment", rec.EquipmentID), logger.Error(err))
			}
			continue
		}

		var sum float64
		for t := range b.Trees {
			sum += b.Trees[t].pathLength(vec)
		}
		severity := math.Exp2(-(sum / float64(len(b.Trees))) / norm)

		flagged := severity > d.cfg.Threshold
		reason := "normal"
		if flagged {
			reason = "pattern_outlier"
			if rec.HealthScore < b.MedianHealth {
				reason = "low_health"
			}
		}
		verdicts = append(verdicts, models.AnomalyVerdict{
			EquipmentID: rec.EquipmentID,
			Timestamp:   rec.Timestamp,
			IsAnomalous: flagged,
			Severity:    severity,
			ReasonCode:  reason,
		})
	}
	return verdicts, nil
}

// recordVector builds [health, features...] and rejects NaN values or a
// feature vector that does not match the baseline dimensionality.
func recordVector(rec *models.EquipmentRecord, wantDim int) ([]float64, error) {
	if math.IsNaN(rec.HealthScore) {
		return nil, &models.MissingFeatureError{EquipmentID: rec.EquipmentID, Timestamp: rec.Timestamp, Reason: "health score is NaN"}
	}
	vec := make([]float64, 0, len(rec.Features)+1)
	vec = append(vec, rec.HealthScore)
	for i, f := range rec.Features {
		if math.IsNaN(f) {
			return nil, &models.MissingFeatureError{EquipmentID: rec.EquipmentID, Timestamp: rec.Timestamp, Reason: fmt.Sprintf("feature %d is NaN", i)}
		}
		vec = append(vec, f)
	}
	if wantDim >= 0 && len(vec) != wantDim {
		return nil, &models.MissingFeatureError{EquipmentID: rec.EquipmentID, Timestamp: rec.Timestamp, Reason: fmt.Sprintf("feature vector has %d values, baseline expects %d", len(vec), wantDim)}
	}
	return vec, nil
}

var _ domsvc.AnomalyScorer = (*Detector)(nil)
