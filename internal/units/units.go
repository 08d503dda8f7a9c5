package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// System identifies a station unit system. The numeric values match the
// usUnits field emitted by the station software.
type System int

const (
	US       System = 0x01
	Metric   System = 0x10
	MetricWX System = 0x11
)

// ErrUnknownSystem is returned when a unit system name or code is not recognised.
var ErrUnknownSystem = errors.New("units: unknown unit system")

// ParseSystem accepts a unit system name (US, METRIC, METRICWX) or its numeric code.
func ParseSystem(s string) (System, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "US":
		return US, nil
	case "METRIC":
		return Metric, nil
	case "METRICWX":
		return MetricWX, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		sys := System(n)
		if sys.Valid() {
			return sys, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSystem, s)
}

// Valid reports whether s is one of the known unit systems.
func (s System) Valid() bool {
	switch s {
	case US, Metric, MetricWX:
		return true
	}
	return false
}

func (s System) String() string {
	switch s {
	case US:
		return "US"
	case Metric:
		return "METRIC"
	case MetricWX:
		return "METRICWX"
	}
	return fmt.Sprintf("System(%d)", int(s))
}

// Group is a unit group: a set of observations sharing a physical quantity.
type Group string

const (
	GroupTemperature   Group = "group_temperature"
	GroupPercent       Group = "group_percent"
	GroupPressure      Group = "group_pressure"
	GroupSpeed         Group = "group_speed"
	GroupSpeed2        Group = "group_speed2"
	GroupDirection     Group = "group_direction"
	GroupRain          Group = "group_rain"
	GroupRainRate      Group = "group_rainrate"
	GroupRadiation     Group = "group_radiation"
	GroupUV            Group = "group_uv"
	GroupAltitude      Group = "group_altitude"
	GroupDistance      Group = "group_distance"
	GroupTime          Group = "group_time"
	GroupInterval      Group = "group_interval"
	GroupVolt          Group = "group_volt"
	GroupCount         Group = "group_count"
	GroupMoisture      Group = "group_moisture"
	GroupConcentration Group = "group_concentration"
)

var obsGroups = map[string]Group{
	"outTemp":     GroupTemperature,
	"inTemp":      GroupTemperature,
	"dewpoint":    GroupTemperature,
	"heatindex":   GroupTemperature,
	"windchill":   GroupTemperature,
	"appTemp":     GroupTemperature,
	"humidex":     GroupTemperature,
	"inDewpoint":  GroupTemperature,
	"extraTemp1":  GroupTemperature,
	"extraTemp2":  GroupTemperature,
	"extraTemp3":  GroupTemperature,
	"soilTemp1":   GroupTemperature,
	"soilTemp2":   GroupTemperature,
	"soilTemp3":   GroupTemperature,
	"soilTemp4":   GroupTemperature,
	"leafTemp1":   GroupTemperature,
	"leafTemp2":   GroupTemperature,
	"outHumidity": GroupPercent,
	"inHumidity":  GroupPercent,
	"extraHumid1": GroupPercent,
	"extraHumid2": GroupPercent,
	"cloudcover":  GroupPercent,

	"rxCheckPercent": GroupPercent,

	"barometer": GroupPressure,
	"pressure":  GroupPressure,
	"altimeter": GroupPressure,

	"windSpeed":   GroupSpeed,
	"windGust":    GroupSpeed,
	"windSpeed10": GroupSpeed2,
	"rms":         GroupSpeed2,
	"vecavg":      GroupSpeed2,
	"windDir":     GroupDirection,
	"windGustDir": GroupDirection,
	"vecdir":      GroupDirection,

	"rain":     GroupRain,
	"ET":       GroupRain,
	"hail":     GroupRain,
	"rainRate": GroupRainRate,
	"hailRate": GroupRainRate,

	"radiation":   GroupRadiation,
	"maxSolarRad": GroupRadiation,
	"UV":          GroupUV,

	"altitude":           GroupAltitude,
	"cloudbase":          GroupAltitude,
	"lightning_distance": GroupDistance,

	"dateTime": GroupTime,
	"interval": GroupInterval,

	"consBatteryVoltage": GroupVolt,
	"heatingVoltage":     GroupVolt,
	"supplyVoltage":      GroupVolt,
	"referenceVoltage":   GroupVolt,

	"lightning_strike_count": GroupCount,

	"soilMoist1": GroupMoisture,
	"soilMoist2": GroupMoisture,
	"soilMoist3": GroupMoisture,
	"soilMoist4": GroupMoisture,
	"leafWet1":   GroupCount,
	"leafWet2":   GroupCount,

	"pm1_0":  GroupConcentration,
	"pm2_5":  GroupConcentration,
	"pm10_0": GroupConcentration,
}

var systemUnits = map[System]map[Group]string{
	US: {
		GroupTemperature:   "degree_F",
		GroupPercent:       "percent",
		GroupPressure:      "inHg",
		GroupSpeed:         "mile_per_hour",
		GroupSpeed2:        "mile_per_hour2",
		GroupDirection:     "degree_compass",
		GroupRain:          "inch",
		GroupRainRate:      "inch_per_hour",
		GroupRadiation:     "watt_per_meter_squared",
		GroupUV:            "uv_index",
		GroupAltitude:      "foot",
		GroupDistance:      "mile",
		GroupTime:          "unix_epoch",
		GroupInterval:      "minute",
		GroupVolt:          "volt",
		GroupCount:         "count",
		GroupMoisture:      "centibar",
		GroupConcentration: "microgram_per_meter_cubed",
	},
	Metric: {
		GroupTemperature:   "degree_C",
		GroupPercent:       "percent",
		GroupPressure:      "mbar",
		GroupSpeed:         "km_per_hour",
		GroupSpeed2:        "km_per_hour2",
		GroupDirection:     "degree_compass",
		GroupRain:          "cm",
		GroupRainRate:      "cm_per_hour",
		GroupRadiation:     "watt_per_meter_squared",
		GroupUV:            "uv_index",
		GroupAltitude:      "meter",
		GroupDistance:      "km",
		GroupTime:          "unix_epoch",
		GroupInterval:      "minute",
		GroupVolt:          "volt",
		GroupCount:         "count",
		GroupMoisture:      "centibar",
		GroupConcentration: "microgram_per_meter_cubed",
	},
	MetricWX: {
		GroupTemperature:   "degree_C",
		GroupPercent:       "percent",
		GroupPressure:      "mbar",
		GroupSpeed:         "meter_per_second",
		GroupSpeed2:        "meter_per_second2",
		GroupDirection:     "degree_compass",
		GroupRain:          "mm",
		GroupRainRate:      "mm_per_hour",
		GroupRadiation:     "watt_per_meter_squared",
		GroupUV:            "uv_index",
		GroupAltitude:      "meter",
		GroupDistance:      "km",
		GroupTime:          "unix_epoch",
		GroupInterval:      "minute",
		GroupVolt:          "volt",
		GroupCount:         "count",
		GroupMoisture:      "centibar",
		GroupConcentration: "microgram_per_meter_cubed",
	},
}

// GroupOf returns the unit group of an observation.
func GroupOf(obs string) (Group, bool) {
	g, ok := obsGroups[obs]
	return g, ok
}

// StandardUnit returns the unit an observation is expressed in under the
// given unit system. ok is false when the observation or system is unknown.
func StandardUnit(system System, obs string) (unit string, group Group, ok bool) {
	group, ok = obsGroups[obs]
	if !ok {
		return "", "", false
	}
	unit, ok = systemUnits[system][group]
	if !ok {
		return "", "", false
	}
	return unit, group, true
}

// labelReductions shortens verbose unit names. An empty value means the unit
// contributes no label at all.
var labelReductions = map[string]string{
	"degree_F":               "F",
	"degree_C":               "C",
	"inch":                   "in",
	"mile_per_hour":          "mph",
	"mile_per_hour2":         "mph",
	"km_per_hour":            "kph",
	"km_per_hour2":           "kph",
	"meter_per_second":       "mps",
	"meter_per_second2":      "mps",
	"degree_compass":         "",
	"watt_per_meter_squared": "Wpm2",
	"uv_index":               "",
	"percent":                "",
	"unix_epoch":             "",
}

// Label returns the units label for an observation under a unit system,
// or "" when the observation has no label.
func Label(obs string, system System) string {
	unit, _, ok := StandardUnit(system, obs)
	if !ok {
		return ""
	}
	if short, found := labelReductions[unit]; found {
		return short
	}
	return unit
}
