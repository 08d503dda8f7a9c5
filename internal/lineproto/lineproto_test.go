package lineproto

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influxrelay/internal/record"
	"influxrelay/internal/units"
)

func sampleRecord() *record.Record {
	return &record.Record{
		DateTime:   1536086335,
		UnitSystem: units.US,
		Origin:     record.OriginArchive,
		Values:     map[string]any{"outTemp": 32.5},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		ov     Override
		label  bool
		system units.System
		want   Template
	}{
		{"label appended", "outTemp", Override{}, true, units.US, Template{Name: "outTemp_F"}},
		{"metric label", "outTemp", Override{}, true, units.Metric, Template{Name: "outTemp_C"}},
		{"label disabled", "outTemp", Override{}, false, units.US, Template{Name: "outTemp"}},
		{"no label for percent", "outHumidity", Override{}, true, units.US, Template{Name: "outHumidity"}},
		{"unknown key", "mystery", Override{}, true, units.US, Template{Name: "mystery"}},
		{"format and units only", "outTemp", Override{Format: "%.1f", Units: "degree_C"}, true, units.US,
			Template{Name: "outTemp_F", Format: "%.1f", Units: "degree_C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.key, tt.ov, tt.label, tt.system))
		})
	}
}

func TestResolve_ExplicitNameWins(t *testing.T) {
	ov := Override{Name: "X", Format: "%.2f", Units: "degree_F"}
	for _, label := range []bool{true, false} {
		got := Resolve("outTemp", ov, label, units.Metric)
		assert.Equal(t, "X", got.Name)
		assert.Equal(t, "%.2f", got.Format)
		assert.Equal(t, "degree_F", got.Units)
		assert.Equal(t, got, Resolve("outTemp", ov, label, units.Metric))
	}
}

func TestEncode_SingleLine(t *testing.T) {
	templates := Templates{"outTemp": {Name: "outTemp_F", Format: "%.1f"}}

	p, err := Encode(sampleRecord(), templates, JoinTags("station=A"), "record", SingleLine)
	require.NoError(t, err)

	assert.Equal(t, "record,station=A outTemp_F=32.5 1536086335000000000", p.Body)
	assert.Equal(t, ContentType, p.ContentType)
	assert.Equal(t, 1, p.Fields)
}

func TestEncode_MultiLineDotted(t *testing.T) {
	templates := Templates{"outTemp": {Name: "outTemp_F", Format: "%.1f"}}

	p, err := Encode(sampleRecord(), templates, ",station=A", "weewx", MultiLineDotted)
	require.NoError(t, err)

	assert.Equal(t, "weewx.outTemp_F,station=A value=32.5 1536086335000000000", p.Body)
}

func TestEncode_MultiLine(t *testing.T) {
	rec := sampleRecord()
	rec.Values["inTemp"] = 75.8
	rec.Values["outHumidity"] = 24
	templates := Templates{
		"outTemp":     {Name: "outTemp_F"},
		"inTemp":      {Name: "inTemp_F"},
		"outHumidity": {Name: "outHumidity", Format: "%03.0f"},
	}

	p, err := Encode(rec, templates, "", "record", MultiLine)
	require.NoError(t, err)

	want := "inTemp_F value=75.8 1536086335000000000\n" +
		"outHumidity value=024 1536086335000000000\n" +
		"outTemp_F value=32.5 1536086335000000000"
	assert.Equal(t, want, p.Body)
	assert.Equal(t, 3, p.Fields)
}

func TestEncode_NonNumericExcluded(t *testing.T) {
	for _, format := range []LineFormat{SingleLine, MultiLine, MultiLineDotted} {
		t.Run(string(format), func(t *testing.T) {
			rec := sampleRecord()
			rec.Values["windDir"] = nil
			rec.Values["forecast"] = "sunny"
			templates := Templates{
				"outTemp":  {Name: "outTemp_F"},
				"windDir":  {Name: "windDir"},
				"forecast": {Name: "forecast"},
				"absent":   {Name: "absent"},
			}

			p, err := Encode(rec, templates, ",station=A", "record", format)
			require.NoError(t, err)

			assert.Equal(t, 1, p.Fields)
			assert.NotContains(t, p.Body, "windDir")
			assert.NotContains(t, p.Body, "forecast")
			assert.NotContains(t, p.Body, "absent")
			assert.Contains(t, p.Skipped, "windDir")
			assert.Contains(t, p.Skipped, "forecast")
			assert.NotContains(t, p.Skipped, "absent")
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	rec := sampleRecord()
	rec.Values["barometer"] = 30.1
	rec.Values["windSpeed"] = 4.0
	rec.Values["rain"] = 0.01
	templates := Templates{}
	for k := range rec.Values {
		templates[k] = Resolve(k, Override{}, true, rec.UnitSystem)
	}

	first, err := Encode(rec, templates, ",station=A", "record", SingleLine)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Encode(rec, templates, ",station=A", "record", SingleLine)
		require.NoError(t, err)
		require.Equal(t, first.Body, again.Body)
	}
	assert.Equal(t, "record,station=A barometer_inHg=30.1,outTemp_F=32.5,rain_in=0.01,windSpeed_mph=4 1536086335000000000", first.Body)
}

func TestEncode_UnitConversion(t *testing.T) {
	rec := sampleRecord()
	rec.Values["outTemp"] = 50.0
	rec.Values["barometer"] = 30.0
	templates := Templates{
		"outTemp":   {Name: "outTemp_C", Format: "%.1f", Units: "degree_C"},
		"barometer": {Name: "barometer", Units: "degree_C"},
	}

	p, err := Encode(rec, templates, "", "record", SingleLine)
	require.NoError(t, err)

	assert.Equal(t, "record outTemp_C=10.0 1536086335000000000", p.Body)
	require.Contains(t, p.Skipped, "barometer")
	assert.True(t, errors.Is(p.Skipped["barometer"], units.ErrUnknownConversion))
}

func TestEncode_BadFormatSkipsField(t *testing.T) {
	rec := sampleRecord()
	rec.Values["inTemp"] = 70.0
	templates := Templates{
		"outTemp": {Name: "outTemp_F", Format: "%q"},
		"inTemp":  {Name: "inTemp_F", Format: "%.0f"},
	}

	p, err := Encode(rec, templates, "", "record", SingleLine)
	require.NoError(t, err)

	assert.Equal(t, "record inTemp_F=70 1536086335000000000", p.Body)
	assert.True(t, errors.Is(p.Skipped["outTemp"], ErrBadFormat))
}

func TestEncode_NoFields(t *testing.T) {
	p, err := Encode(sampleRecord(), Templates{}, "", "record", SingleLine)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.Empty(t, p.Body)
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(sampleRecord(), Templates{}, "", "record", LineFormat("csv"))
	assert.True(t, errors.Is(err, ErrUnknownLineFormat))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v      float64
		format string
		want   string
	}{
		{32.5, "", "32.5"},
		{32.5, "%s", "32.5"},
		{24, "%s", "24"},
		{29.9213, "%.3f", "29.921"},
		{45, "%03.0f", "045"},
		{7.9, "%d", "7"},
		{7.9, "%i", "7"},
		{1234.5, "%.2e", "1.23e+03"},
		{12.5, "%.1f%%", "12.5%"},
	}
	for _, tt := range tests {
		got, err := FormatValue(tt.v, tt.format)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.want, got, tt.format)
	}

	for _, bad := range []string{"%q", "plain", "%.1f %.1f", "%"} {
		_, err := FormatValue(1, bad)
		assert.True(t, errors.Is(err, ErrBadFormat), bad)
	}
}

func TestFormatValue_IntegerRange(t *testing.T) {
	for _, v := range []float64{1e20, -1e20, math.Ldexp(1, 63), math.Inf(1), math.NaN()} {
		_, err := FormatValue(v, "%d")
		assert.True(t, errors.Is(err, ErrBadFormat), "%v", v)
	}

	got, err := FormatValue(-9.2e18, "%d")
	require.NoError(t, err)
	assert.Equal(t, "-9200000000000000000", got)
}

func TestEncode_IntegerOverflowSkipsField(t *testing.T) {
	rec := sampleRecord()
	rec.Values["rain"] = 1e20
	templates := Templates{
		"outTemp": {Name: "outTemp_F", Format: "%.1f"},
		"rain":    {Name: "rain_in", Format: "%d"},
	}

	p, err := Encode(rec, templates, "", "record", SingleLine)
	require.NoError(t, err)

	assert.NotContains(t, p.Body, "rain_in")
	assert.True(t, errors.Is(p.Skipped["rain"], ErrBadFormat))
}

func TestJoinTags(t *testing.T) {
	assert.Equal(t, "", JoinTags())
	assert.Equal(t, "", JoinTags("", " "))
	assert.Equal(t, ",station=A", JoinTags("station=A"))
	assert.Equal(t, ",station=A,field=C,binding=loop", JoinTags("station=A,field=C", "", "binding=loop"))
}

func TestParseLineFormat(t *testing.T) {
	f, err := ParseLineFormat("Multi-Line")
	require.NoError(t, err)
	assert.Equal(t, MultiLine, f)

	_, err = ParseLineFormat("json")
	assert.True(t, errors.Is(err, ErrUnknownLineFormat))
}
