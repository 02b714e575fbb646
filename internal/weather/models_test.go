package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/weather"
)

func ptr(v float64) *float64 { return &v }

func TestObservation_Fields(t *testing.T) {
	obs := &weather.Observation{
		Temperature: ptr(18.5),
		Humidity:    ptr(72),
		Pressure:    ptr(1015),
	}

	f := obs.Fields()
	require.NotNil(t, f.Temperature)
	assert.Equal(t, 18.5, *f.Temperature)
	assert.Equal(t, 72.0, *f.Humidity)
	assert.Equal(t, 1015.0, *f.Pressure)
	assert.Nil(t, f.WindSpeed)
}

func TestObservation_FieldsNil(t *testing.T) {
	var obs *weather.Observation
	assert.True(t, obs.Fields().IsEmpty())
}
