package lineproto

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"influxrelay/internal/record"
	"influxrelay/internal/units"
)

// LineFormat selects the shape of the encoded payload.
type LineFormat string

const (
	// SingleLine writes one line per record with every observation as a field.
	SingleLine LineFormat = "single-line"
	// MultiLine writes one line per observation, named after the observation.
	MultiLine LineFormat = "multi-line"
	// MultiLineDotted is MultiLine with the measurement prefixed to each name.
	MultiLineDotted LineFormat = "multi-line-dotted"
)

// ContentType is the MIME type of every encoded payload.
const ContentType = "text/plain; charset=utf-8"

const nanosPerSecond = 1_000_000_000

// ErrUnknownLineFormat is returned for a line format other than the three supported ones.
var ErrUnknownLineFormat = errors.New("lineproto: unknown line format")

// ParseLineFormat validates a configured line format.
func ParseLineFormat(s string) (LineFormat, error) {
	switch f := LineFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case SingleLine, MultiLine, MultiLineDotted:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLineFormat, s)
}

// Payload is an encoded request body.
type Payload struct {
	Body        string
	ContentType string
	// Fields is the number of observations written.
	Fields int
	// Skipped lists observations that had a template but could not be
	// written, with the reason.
	Skipped map[string]error
}

// Empty reports whether the payload carries no observations.
func (p Payload) Empty() bool {
	return p.Fields == 0
}

// JoinTags concatenates non-empty tag fragments into the literal tag string
// placed after a measurement name: a leading comma, fragments separated by
// commas. Tag values are not escaped.
func JoinTags(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, ", ")
		if p == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(p)
	}
	return b.String()
}

// Encode renders a record as line protocol. Observations are written in
// ascending key order. An observation whose value is missing or not
// numeric, whose unit conversion fails, or whose format fails is left out
// and reported in Payload.Skipped.
func Encode(rec *record.Record, templates Templates, tags, measurement string, format LineFormat) (Payload, error) {
	switch format {
	case SingleLine, MultiLine, MultiLineDotted:
	default:
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownLineFormat, format)
	}

	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := strconv.FormatInt(rec.DateTime*nanosPerSecond, 10)
	payload := Payload{ContentType: ContentType}
	fields := make([]string, 0, len(keys))

	for _, k := range keys {
		tmpl := templates[k]
		raw, present := rec.Values[k]
		if !present {
			continue
		}
		s, err := renderValue(rec, k, raw, tmpl)
		if err != nil {
			if payload.Skipped == nil {
				payload.Skipped = make(map[string]error)
			}
			payload.Skipped[k] = err
			continue
		}

		switch format {
		case SingleLine:
			fields = append(fields, tmpl.Name+"="+s)
		case MultiLine:
			fields = append(fields, tmpl.Name+tags+" value="+s+" "+ts)
		case MultiLineDotted:
			fields = append(fields, measurement+"."+tmpl.Name+tags+" value="+s+" "+ts)
		}
	}

	payload.Fields = len(fields)
	if payload.Fields == 0 {
		return payload, nil
	}
	if format == SingleLine {
		payload.Body = measurement + tags + " " + strings.Join(fields, ",") + " " + ts
	} else {
		payload.Body = strings.Join(fields, "\n")
	}
	return payload, nil
}

var errNotNumeric = errors.New("lineproto: value is not numeric")

func renderValue(rec *record.Record, key string, raw any, tmpl Template) (string, error) {
	v, ok := record.Float(raw)
	if !ok {
		return "", fmt.Errorf("%w: %v", errNotNumeric, raw)
	}
	if tmpl.Units != "" {
		from, _, known := units.StandardUnit(rec.UnitSystem, key)
		if !known {
			return "", fmt.Errorf("%w: no source unit for %q", units.ErrUnknownConversion, key)
		}
		converted, err := units.Convert(v, from, tmpl.Units)
		if err != nil {
			return "", err
		}
		v = converted
	}
	return FormatValue(v, tmpl.Format)
}
