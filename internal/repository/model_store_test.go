package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	SeriesID string    `json:"series_id"`
	Weights  []float64 `json:"weights"`
}

func TestFileModelStoreRoundTrip(t *testing.T) {
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	in := fakeState{SeriesID: "wti", Weights: []float64{0.1, 0.2}}
	require.NoError(t, store.SaveForecastState("wti", in))

	var out fakeState
	ok, err := store.LoadForecastState("wti", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestFileModelStoreMissing(t *testing.T) {
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	var out fakeState
	ok, err := store.LoadForecastState("absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileModelStoreBaseline(t *testing.T) {
	store, err := NewFileModelStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SaveBaseline(map[string]int{"n": 42}))

	var out map[string]int
	ok, err := store.LoadBaseline(&out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, out["n"])
}

func TestForecastFileNameSanitizes(t *testing.T) {
	assert.Equal(t, "forecast_wti_spot.json", forecastFileName("wti/spot"))
	assert.Equal(t, "forecast_brent.json", forecastFileName("brent"))
}
