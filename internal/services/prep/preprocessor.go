package prep

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"PetroPulse/internal/domain/models"
	domsvc "PetroPulse/internal/domain/service"
)

// Config controls window sizes and gap tolerance for feature derivation.
type Config struct {
	Window int           // rolling mean/volatility window, >= 2
	Lags   int           // number of lag features, >= 1
	MaxGap int           // longest run of missing points repaired by interpolation
	Step   time.Duration // expected spacing between points
}

// DefaultConfig matches daily commodity series.
func DefaultConfig() Config {
	return Config{Window: 5, Lags: 3, MaxGap: 3, Step: 24 * time.Hour}
}

// Preprocessor turns raw, possibly messy batches into clean feature tables.
// It is stateless: Prepare returns a fresh table each call and is
// deterministic for identical input.
type Preprocessor struct {
	cfg Config
}

func New(cfg Config) *Preprocessor {
	if cfg.Window < 2 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Lags < 1 {
		cfg.Lags = DefaultConfig().Lags
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultConfig().Step
	}
	return &Preprocessor{cfg: cfg}
}

// Prepare sorts each series by timestamp, deduplicates same-timestamp
// entries keeping the last-seen value, repairs short gaps by linear
// interpolation, and derives rolling features. The first rows without
// enough history for a full window are dropped, never back-filled.
func (p *Preprocessor) Prepare(points []models.TimeSeriesPoint) ([]models.FeatureRow, error) {
	bySeries := make(map[string][]models.TimeSeriesPoint)
	ids := make([]string, 0)
	for _, pt := range points {
		if _, ok := bySeries[pt.SeriesID]; !ok {
			ids = append(ids, pt.SeriesID)
		}
		bySeries[pt.SeriesID] = append(bySeries[pt.SeriesID], pt)
	}
	sort.Strings(ids)

	out := make([]models.FeatureRow, 0, len(points))
	for _, id := range ids {
		rows, err := p.prepareSeries(id, bySeries[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (p *Preprocessor) prepareSeries(id string, pts []models.TimeSeriesPoint) ([]models.FeatureRow, error) {
	// Stable sort so that for duplicate timestamps the last-seen input wins.
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })

	dedup := make([]models.TimeSeriesPoint, 0, len(pts))
	for _, pt := range pts {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp.Equal(pt.Timestamp) {
			dedup[n-1] = pt
			continue
		}
		dedup = append(dedup, pt)
	}

	filled, err := p.fillGaps(id, dedup)
	if err != nil {
		return nil, err
	}

	skip := p.cfg.Window - 1
	if p.cfg.Lags > skip {
		skip = p.cfg.Lags
	}
	if len(filled) <= skip {
		return nil, &models.DataQualityError{
			SeriesID: id,
			Reason:   fmt.Sprintf("%d points, need more than %d for rolling features", len(filled), skip),
		}
	}

	values := make([]float64, len(filled))
	for i, pt := range filled {
		values[i] = pt.Value
	}

	rows := make([]models.FeatureRow, 0, len(filled)-skip)
	for i := skip; i < len(filled); i++ {
		window := values[i-p.cfg.Window+1 : i+1]
		lags := make([]float64, p.cfg.Lags)
		for l := 1; l <= p.cfg.Lags; l++ {
			lags[l-1] = values[i-l]
		}
		rows = append(rows, models.FeatureRow{
			SeriesID:  id,
			Timestamp: filled[i].Timestamp,
			Value:     values[i],
			RollMean:  stat.Mean(window, nil),
			RollVol:   stat.StdDev(window, nil),
			Lags:      lags,
		})
	}
	return rows, nil
}

// fillGaps repairs runs of up to MaxGap missing points by linear
// interpolation; longer runs are unrecoverable.
func (p *Preprocessor) fillGaps(id string, pts []models.TimeSeriesPoint) ([]models.TimeSeriesPoint, error) {
	if len(pts) < 2 {
		return pts, nil
	}
	out := make([]models.TimeSeriesPoint, 0, len(pts))
	out = append(out, pts[0])
	for i := 1; i < len(pts); i++ {
		prev, cur := pts[i-1], pts[i]
		missing := int(math.Round(float64(cur.Timestamp.Sub(prev.Timestamp))/float64(p.cfg.Step))) - 1
		if missing > p.cfg.MaxGap {
			return nil, &models.DataQualityError{
				SeriesID: id,
				Reason: fmt.Sprintf("gap of %d missing points between %s and %s exceeds tolerance %d",
					missing, prev.Timestamp.Format(time.RFC3339), cur.Timestamp.Format(time.RFC3339), p.cfg.MaxGap),
			}
		}
		for m := 1; m <= missing; m++ {
			frac := float64(m) / float64(missing+1)
			out = append(out, models.TimeSeriesPoint{
				SeriesID:  id,
				Timestamp: prev.Timestamp.Add(time.Duration(m) * p.cfg.Step),
				Value:     prev.Value + frac*(cur.Value-prev.Value),
			})
		}
		out = append(out, cur)
	}
	return out, nil
}

// PrepareEquipment sorts telemetry by (equipment, timestamp), keeps the
// last-seen sample for duplicate timestamps and rejects health scores
// outside [0,1]. NaN health scores pass through; they are handled as
// record-level failures at scoring time.
func (p *Preprocessor) PrepareEquipment(records []models.EquipmentRecord) ([]models.EquipmentRecord, error) {
	out := make([]models.EquipmentRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EquipmentID != out[j].EquipmentID {
			return out[i].EquipmentID < out[j].EquipmentID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	dedup := out[:0]
	for _, r := range out {
		if !math.IsNaN(r.HealthScore) && (r.HealthScore < 0 || r.HealthScore > 1) {
			return nil, &models.DataQualityError{
				SeriesID: r.EquipmentID,
				Reason:   fmt.Sprintf("health score %.4f outside [0,1]", r.HealthScore),
			}
		}
		if n := len(dedup); n > 0 && dedup[n-1].EquipmentID == r.EquipmentID && dedup[n-1].Timestamp.Equal(r.Timestamp) {
			dedup[n-1] = r
			continue
		}
		dedup = append(dedup, r)
	}
	return dedup, nil
}

var _ domsvc.Preprocessor = (*Preprocessor)(nil)
