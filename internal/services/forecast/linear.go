package forecast

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// Linear is an ordinary-least-squares member regressing the next-step
// delta on the most recent delta. It keeps the ensemble honest on
// trending series where piecewise-constant trees flatten out.
type Linear struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

func (m *Linear) fit(x [][]float64, y []float64, _ *rand.Rand) {
	xs := make([]float64, len(x))
	for i := range x {
		xs[i] = x[i][0] // most recent delta
	}
	if stat.Variance(xs, nil) < 1e-12 {
		m.Alpha = stat.Mean(y, nil)
		m.Beta = 0
		return
	}
	m.Alpha, m.Beta = stat.LinearRegression(xs, y, nil, false)
}

func (m *Linear) predict(x []float64) float64 {
	return m.Alpha + m.Beta*x[0]
}
