package units

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystem(t *testing.T) {
	tests := []struct {
		in   string
		want System
	}{
		{"US", US},
		{"us", US},
		{"METRIC", Metric},
		{" metricwx ", MetricWX},
		{"1", US},
		{"16", Metric},
		{"17", MetricWX},
	}
	for _, tt := range tests {
		got, err := ParseSystem(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSystem("imperial")
	assert.True(t, errors.Is(err, ErrUnknownSystem))
	_, err = ParseSystem("3")
	assert.True(t, errors.Is(err, ErrUnknownSystem))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "F", Label("outTemp", US))
	assert.Equal(t, "C", Label("outTemp", Metric))
	assert.Equal(t, "inHg", Label("barometer", US))
	assert.Equal(t, "mbar", Label("barometer", MetricWX))
	assert.Equal(t, "mph", Label("windSpeed", US))
	assert.Equal(t, "mps", Label("windSpeed10", MetricWX))
	assert.Equal(t, "in", Label("rain", US))
	assert.Equal(t, "Wpm2", Label("radiation", US))

	// Units that intentionally have no label.
	assert.Equal(t, "", Label("windDir", US))
	assert.Equal(t, "", Label("outHumidity", US))
	assert.Equal(t, "", Label("UV", Metric))
	assert.Equal(t, "", Label("dateTime", US))
	assert.Equal(t, "", Label("noSuchObservation", US))
}

func TestConvert(t *testing.T) {
	v, err := Convert(0, "degree_C", "degree_F")
	require.NoError(t, err)
	assert.InDelta(t, 32.0, v, 1e-9)

	v, err = Convert(212, "degree_F", "degree_C")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)

	v, err = Convert(29.92, "inHg", "mbar")
	require.NoError(t, err)
	assert.InDelta(t, 1013.2, v, 0.1)

	v, err = Convert(10, "mile_per_hour", "km_per_hour")
	require.NoError(t, err)
	assert.InDelta(t, 16.0934, v, 1e-3)

	v, err = Convert(1, "inch", "mm")
	require.NoError(t, err)
	assert.InDelta(t, 25.4, v, 1e-9)

	v, err = Convert(32.5, "degree_F", "degree_F")
	require.NoError(t, err)
	assert.Equal(t, 32.5, v)
}

func TestConvert_Unknown(t *testing.T) {
	_, err := Convert(1, "degree_F", "inHg")
	assert.True(t, errors.Is(err, ErrUnknownConversion))

	_, err = Convert(1, "furlong", "mile")
	assert.True(t, errors.Is(err, ErrUnknownConversion))
}

func TestConvertObs(t *testing.T) {
	v, err := ConvertObs("outTemp", 50, US, Metric)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)

	v, err = ConvertObs("rain", 1, Metric, MetricWX)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)

	_, err = ConvertObs("mystery", 1, US, Metric)
	assert.True(t, errors.Is(err, ErrUnknownConversion))
}
