package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"influxrelay/internal/units"
)

// Origin identifies which station event produced a record.
type Origin string

const (
	OriginLoop    Origin = "loop"
	OriginArchive Origin = "archive"
)

// ParseOrigin parses "loop" or "archive", case-insensitively.
func ParseOrigin(s string) (Origin, error) {
	switch Origin(strings.ToLower(s)) {
	case OriginLoop:
		return OriginLoop, nil
	case OriginArchive:
		return OriginArchive, nil
	}
	return "", fmt.Errorf("record: unknown origin %q", s)
}

// Reserved keys carried in the dedicated Record fields rather than Values.
const (
	KeyDateTime = "dateTime"
	KeyUnits    = "usUnits"
)

var (
	ErrMissingDateTime = errors.New("record: missing dateTime")
	ErrMissingUnits    = errors.New("record: missing usUnits")
)

// Record is one measurement set produced by the station.
type Record struct {
	// DateTime is the record timestamp in seconds since the epoch.
	DateTime   int64
	UnitSystem units.System
	Origin     Origin
	// Values maps observation names to values. A value may be nil, a
	// number, or a string; only values that coerce to a float are uploaded.
	Values map[string]any
}

// Clone returns a copy of r with its own Values map.
func (r *Record) Clone() *Record {
	out := *r
	out.Values = make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return &out
}

// Float coerces a record value to a float64. Booleans, nil, NaN and
// unparsable strings are rejected.
func Float(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToSystem returns a copy of r with every convertible value expressed in
// the standard units of target. Values that cannot be converted are kept
// as they are.
func (r *Record) ToSystem(target units.System) *Record {
	out := r.Clone()
	if r.UnitSystem == target {
		return out
	}
	for k, v := range r.Values {
		f, ok := Float(v)
		if !ok {
			continue
		}
		converted, err := units.ConvertObs(k, f, r.UnitSystem, target)
		if err != nil {
			continue
		}
		out.Values[k] = converted
	}
	out.UnitSystem = target
	return out
}

// Decode parses a JSON object of observation values into a Record. The
// object must carry dateTime and usUnits; every other key becomes a value.
func Decode(data []byte, origin Origin) (*Record, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("record: decode: %w", err)
	}
	return FromMap(raw, origin)
}

// FromMap builds a Record from a flat observation map.
func FromMap(raw map[string]any, origin Origin) (*Record, error) {
	ts, ok := raw[KeyDateTime]
	if !ok {
		return nil, ErrMissingDateTime
	}
	tsf, ok := Float(ts)
	if !ok {
		return nil, fmt.Errorf("%w: value %v is not numeric", ErrMissingDateTime, ts)
	}
	us, ok := raw[KeyUnits]
	if !ok {
		return nil, ErrMissingUnits
	}
	usf, ok := Float(us)
	if !ok {
		return nil, fmt.Errorf("%w: value %v is not numeric", ErrMissingUnits, us)
	}
	system := units.System(int(usf))
	if !system.Valid() {
		return nil, fmt.Errorf("record: %w: %v", units.ErrUnknownSystem, us)
	}

	rec := &Record{
		DateTime:   int64(tsf),
		UnitSystem: system,
		Origin:     origin,
		Values:     make(map[string]any, len(raw)),
	}
	for k, v := range raw {
		if k == KeyDateTime || k == KeyUnits {
			continue
		}
		rec.Values[k] = v
	}
	return rec, nil
}
