package units

import (
	"errors"
	"fmt"
)

// ErrUnknownConversion is returned when two units cannot be converted into each other.
var ErrUnknownConversion = errors.New("units: unknown conversion")

// unitDef expresses a unit as a linear function of its family's base unit:
// base = value*scale + offset.
type unitDef struct {
	family string
	scale  float64
	offset float64
}

var unitDefs = map[string]unitDef{
	"degree_C": {"temperature", 1, 0},
	"degree_F": {"temperature", 5.0 / 9.0, -160.0 / 9.0},
	"degree_K": {"temperature", 1, -273.15},

	"mbar": {"pressure", 1, 0},
	"hPa":  {"pressure", 1, 0},
	"kPa":  {"pressure", 10, 0},
	"inHg": {"pressure", 33.86389, 0},
	"mmHg": {"pressure", 1.3332239, 0},

	"meter_per_second":  {"speed", 1, 0},
	"meter_per_second2": {"speed", 1, 0},
	"km_per_hour":       {"speed", 1 / 3.6, 0},
	"km_per_hour2":      {"speed", 1 / 3.6, 0},
	"mile_per_hour":     {"speed", 0.44704, 0},
	"mile_per_hour2":    {"speed", 0.44704, 0},
	"knot":              {"speed", 0.514444, 0},
	"knot2":             {"speed", 0.514444, 0},

	"mm":    {"length", 1, 0},
	"cm":    {"length", 10, 0},
	"inch":  {"length", 25.4, 0},
	"foot":  {"length", 304.8, 0},
	"meter": {"length", 1000, 0},
	"km":    {"length", 1e6, 0},
	"mile":  {"length", 1609344, 0},

	"mm_per_hour":   {"rainrate", 1, 0},
	"cm_per_hour":   {"rainrate", 10, 0},
	"inch_per_hour": {"rainrate", 25.4, 0},

	"second": {"interval", 1, 0},
	"minute": {"interval", 60, 0},
	"hour":   {"interval", 3600, 0},

	"percent":                   {"percent", 1, 0},
	"degree_compass":            {"direction", 1, 0},
	"watt_per_meter_squared":    {"radiation", 1, 0},
	"uv_index":                  {"uv", 1, 0},
	"unix_epoch":                {"time", 1, 0},
	"volt":                      {"volt", 1, 0},
	"count":                     {"count", 1, 0},
	"centibar":                  {"moisture", 1, 0},
	"microgram_per_meter_cubed": {"concentration", 1, 0},
}

// Convert converts value from one unit to another. Converting a unit to
// itself returns value unchanged.
func Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	src, ok := unitDefs[from]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrUnknownConversion, from)
	}
	dst, ok := unitDefs[to]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrUnknownConversion, to)
	}
	if src.family != dst.family {
		return 0, fmt.Errorf("%w: %s to %s", ErrUnknownConversion, from, to)
	}
	base := value*src.scale + src.offset
	return (base - dst.offset) / dst.scale, nil
}

// ConvertObs converts the value of observation obs, expressed in the
// standard unit of system from, into the standard unit of system to.
func ConvertObs(obs string, value float64, from, to System) (float64, error) {
	if from == to {
		return value, nil
	}
	src, _, ok := StandardUnit(from, obs)
	if !ok {
		return 0, fmt.Errorf("%w: no unit for %q in %s", ErrUnknownConversion, obs, from)
	}
	dst, _, ok := StandardUnit(to, obs)
	if !ok {
		return 0, fmt.Errorf("%w: no unit for %q in %s", ErrUnknownConversion, obs, to)
	}
	return Convert(value, src, dst)
}
