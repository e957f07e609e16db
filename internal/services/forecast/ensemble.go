package forecast

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"PetroPulse/internal/domain/models"
	domsvc "PetroPulse/internal/domain/service"
)

// Config controls ensemble combination and determinism.
type Config struct {
	Horizon      int     // default forecast length
	BoundSigma   float64 // k in point +/- k*stddev, >= 0
	Seed         int64   // base seed for member learners
	MinTrainRows int     // fewest feature rows Fit accepts
	Window       int     // preprocessor rolling window, for the recursion buffer
}

// DefaultConfig mirrors the production defaults: 30-step horizon, 95%-ish
// band, fixed seed for reproducibility.
func DefaultConfig() Config {
	return Config{Horizon: 30, BoundSigma: 1.96, Seed: 42, MinTrainRows: 10, Window: 5}
}

// learner is the capability every ensemble member implements. The member
// set is closed: variants are enumerated in New, nothing is duck-typed in
// at runtime.
type learner interface {
	fit(x [][]float64, y []float64, rng *rand.Rand)
	predict(x []float64) float64
}

// MemberState is one fitted member, tagged by kind so a ModelState
// round-trips through JSON.
type MemberState struct {
	Name   string  `json:"name"`
	Forest *Forest `json:"forest,omitempty"`
	Linear *Linear `json:"linear,omitempty"`
}

func (m *MemberState) learner() learner {
	if m.Forest != nil {
		return m.Forest
	}
	return m.Linear
}

// ModelState is the complete fitted state of the ensemble for one series.
// Fit returns it, Predict consumes it; nothing is cached globally.
type ModelState struct {
	SeriesID      string        `json:"series_id"`
	Window        int           `json:"window"`
	Lags          int           `json:"lags"`
	Step          time.Duration `json:"step"`
	LastTimestamp time.Time     `json:"last_timestamp"`
	TailValues    []float64     `json:"tail_values"` // most recent raw values, oldest first
	Members       []MemberState `json:"members"`
	TrainRMSE     float64       `json:"train_rmse"`
}

// Series implements service.ForecastState.
func (s *ModelState) Series() string { return s.SeriesID }

// Ensemble fits independently-parameterized regression learners on the
// same feature table and combines their predictions. Members model the
// next-step delta rather than the level, so trends survive the
// piecewise-constant trees.
type Ensemble struct {
	cfg Config
}

func New(cfg Config) *Ensemble {
	def := DefaultConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.BoundSigma < 0 {
		cfg.BoundSigma = def.BoundSigma
	}
	if cfg.MinTrainRows < 5 {
		cfg.MinTrainRows = def.MinTrainRows
	}
	if cfg.Window < 2 {
		cfg.Window = def.Window
	}
	return &Ensemble{cfg: cfg}
}

// members enumerates the closed variant set: three forest parameterizations
// plus the OLS trend member.
func members() []MemberState {
	return []MemberState{
		{Name: "forest_shallow", Forest: newForest(40, 3, 2)},
		{Name: "forest_mid", Forest: newForest(60, 4, 2)},
		{Name: "forest_deep", Forest: newForest(80, 5, 1)},
		{Name: "ols_trend", Linear: &Linear{}},
	}
}

// Fit trains every member on rows of a single series and returns the
// fitted state. Pure function of its input: identical rows and seed give
// an identical state.
func (e *Ensemble) Fit(rows []models.FeatureRow) (domsvc.ForecastState, error) {
	need := e.cfg.MinTrainRows + 1
	if tail := e.cfg.Window; tail > need {
		need = tail
	}
	if len(rows) < need {
		id := ""
		if len(rows) > 0 {
			id = rows[0].SeriesID
		}
		return nil, &models.InsufficientHistoryError{SeriesID: id, Got: len(rows), Need: need}
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].SeriesID != rows[0].SeriesID {
			return nil, fmt.Errorf("fit: mixed series %q and %q in one training table", rows[0].SeriesID, rows[i].SeriesID)
		}
	}

	lags := len(rows[0].Lags)
	if lags+1 > len(rows) {
		return nil, &models.InsufficientHistoryError{SeriesID: rows[0].SeriesID, Got: len(rows), Need: lags + 1}
	}
	x := make([][]float64, 0, len(rows)-1)
	y := make([]float64, 0, len(rows)-1)
	for i := 0; i < len(rows)-1; i++ {
		x = append(x, rowFeatures(rows[i]))
		y = append(y, rows[i+1].Value-rows[i].Value)
	}

	state := &ModelState{
		SeriesID:      rows[0].SeriesID,
		Window:        e.cfg.Window,
		Lags:          lags,
		Step:          rows[1].Timestamp.Sub(rows[0].Timestamp),
		LastTimestamp: rows[len(rows)-1].Timestamp,
		Members:       members(),
	}

	for i := range state.Members {
		rng := rand.New(rand.NewSource(e.cfg.Seed + int64(i)*7919))
		state.Members[i].learner().fit(x, y, rng)
	}

	// In-sample RMSE of the combined delta prediction; it floors the band
	// width so bounds keep widening even when members agree exactly.
	var sse float64
	for i := range x {
		var sum float64
		for m := range state.Members {
			sum += state.Members[m].learner().predict(x[i])
		}
		d := sum/float64(len(state.Members)) - y[i]
		sse += d * d
	}
	state.TrainRMSE = math.Sqrt(sse / float64(len(x)))
	if state.TrainRMSE < 1e-9 {
		state.TrainRMSE = 1e-9
	}

	tail := state.Lags + 1
	if state.Window > tail {
		tail = state.Window
	}
	state.TailValues = make([]float64, 0, tail)
	for i := len(rows) - tail; i < len(rows); i++ {
		state.TailValues = append(state.TailValues, rows[i].Value)
	}

	return state, nil
}

// Predict rolls the ensemble forward step by step: each member feeds its
// own prediction back into its lag buffer, so member paths diverge and
// the band width grows with the horizon. The combined point estimate is
// the member mean; bounds are point +/- (k*stddev + rmse*sqrt(step)),
// clamped to never narrow as the horizon advances.
func (e *Ensemble) Predict(st domsvc.ForecastState, horizon int) (models.ForecastResult, error) {
	state, ok := st.(*ModelState)
	if !ok || state == nil {
		return models.ForecastResult{}, fmt.Errorf("predict: state is not a forecast ensemble state")
	}
	if horizon <= 0 {
		horizon = e.cfg.Horizon
	}

	// Per-member recursive paths.
	paths := make([][]float64, len(state.Members))
	for m := range state.Members {
		buf := make([]float64, len(state.TailValues))
		copy(buf, state.TailValues)
		path := make([]float64, horizon)
		for s := 0; s < horizon; s++ {
			xv := bufferFeatures(buf, state.Window, state.Lags)
			next := buf[len(buf)-1] + state.Members[m].learner().predict(xv)
			path[s] = next
			copy(buf, buf[1:])
			buf[len(buf)-1] = next
		}
		paths[m] = path
	}

	result := models.ForecastResult{
		SeriesID: state.SeriesID,
		// Derived from the data, not the wall clock, so identical input
		// reproduces an identical result.
		GeneratedAt: state.LastTimestamp,
		Horizon:     make([]models.HorizonPoint, horizon),
	}

	across := make([]float64, len(state.Members))
	half := 0.0
	for s := 0; s < horizon; s++ {
		for m := range paths {
			across[m] = paths[m][s]
		}
		point := stat.Mean(across, nil)
		h := e.cfg.BoundSigma*stat.StdDev(across, nil) + state.TrainRMSE*math.Sqrt(float64(s+1))
		if h > half {
			half = h
		}
		result.Horizon[s] = models.HorizonPoint{
			Timestamp: state.LastTimestamp.Add(time.Duration(s+1) * state.Step),
			Point:     point,
			Lower:     point - half,
			Upper:     point + half,
		}
	}
	return result, nil
}

// rowFeatures builds the member input for one row: successive deltas of
// the recent values, newest first, plus the rolling volatility.
func rowFeatures(r models.FeatureRow) []float64 {
	chain := make([]float64, 0, len(r.Lags)+1)
	for i := len(r.Lags) - 1; i >= 0; i-- {
		chain = append(chain, r.Lags[i]) // oldest lag first
	}
	chain = append(chain, r.Value)
	return deltaFeatures(chain, r.RollVol)
}

func bufferFeatures(buf []float64, window, lags int) []float64 {
	chain := buf[len(buf)-lags-1:]
	vol := stat.StdDev(buf[len(buf)-window:], nil)
	return deltaFeatures(chain, vol)
}

// deltaFeatures turns an oldest-first value chain into newest-first
// deltas with the volatility appended.
func deltaFeatures(chain []float64, vol float64) []float64 {
	out := make([]float64, 0, len(chain))
	for i := len(chain) - 1; i > 0; i-- {
		out = append(out, chain[i]-chain[i-1])
	}
	out = append(out, vol)
	return out
}

var _ domsvc.Forecaster = (*Ensemble)(nil)
