package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	ts, ok := ParseTime("2024-03-01T12:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ts.UTC())

	ts, ok = ParseTime("2024-03-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ts.UTC())

	ts, ok = ParseTime("1709294400")
	require.True(t, ok)
	assert.Equal(t, int64(1709294400), ts.Unix())

	_, ok = ParseTime("")
	assert.False(t, ok)

	_, ok = ParseTime("not-a-time")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("garbage", def))
	assert.NotEqual(t, def, ParseTimeDefault("2024-03-01T00:00:00Z", def))
}

func TestAlignToStep(t *testing.T) {
	ts := time.Date(2024, 3, 1, 13, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), AlignToStep(ts, 24*time.Hour))
	assert.Equal(t, ts, AlignToStep(ts, 0))
}

func TestStepsBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(72 * time.Hour)
	assert.Equal(t, 3, StepsBetween(a, b, 24*time.Hour))
	assert.Equal(t, -3, StepsBetween(b, a, 24*time.Hour))
	assert.Equal(t, 0, StepsBetween(a, b, 0))
}
