package airquality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase int64 = 1704067200

func pm25At(ts int64, v float64) Sample {
	s := NewSample(ts)
	s.Components[ComponentPM25] = v
	return s
}

func TestForecastTier_ExactMatchesOnly(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	in := Inputs{Forecast: []Sample{
		pm25At(testBase, 10),
		pm25At(testBase+2*HourSeconds+120, 30),
		pm25At(testBase+2*HourSeconds+240, 34),
	}}

	series, err := b.forecastTier(testBase, 4, in)
	require.NoError(t, err)

	require.Len(t, series.Entries, 4)
	assert.Equal(t, 10.0, series.Entries[0].Values[ComponentPM25])
	assert.Empty(t, series.Entries[1].Values, "forecast tier does not interpolate")
	assert.Equal(t, 32.0, series.Entries[2].Values[ComponentPM25])
	assert.Equal(t, 2, series.Entries[2].SampleCount)
	assert.Empty(t, series.Entries[3].Values)
}

func TestForecastTier_Insufficient(t *testing.T) {
	b := NewBuilder(BuilderConfig{})

	_, err := b.forecastTier(testBase, 4, Inputs{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = b.forecastTier(testBase, 4, Inputs{Forecast: []Sample{pm25At(testBase, 10)}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCombinedTier_IgnoresSamplesOutsideWindow(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	in := Inputs{History: []Sample{pm25At(testBase-HourSeconds, 10)}}

	_, err := b.combinedTier(testBase, 4, in)
	assert.ErrorIs(t, err, ErrInsufficientData)

	series, err := b.historyTier(testBase, 4, in)
	require.NoError(t, err)
	assert.Equal(t, 4, series.Populated(ComponentPM25))
}
