package lineproto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadFormat is returned when a template format cannot format a number.
var ErrBadFormat = errors.New("lineproto: bad format")

// FormatValue formats v with a printf-style format holding exactly one
// directive. "%s" and the empty format produce the shortest decimal
// representation; "%d" and "%i" truncate to an integer and fail for
// values beyond the int64 range.
func FormatValue(v float64, format string) (string, error) {
	if format == "" || format == "%s" {
		return generic(v), nil
	}

	start, end, err := directive(format)
	if err != nil {
		return "", err
	}
	d := format[start:end]
	verb := d[len(d)-1]

	var out string
	switch verb {
	case 'd', 'i':
		// values outside the int64 range, NaN included, would wrap
		if !(math.Abs(v) < 1<<63) {
			return "", fmt.Errorf("%w: %v does not fit an integer", ErrBadFormat, v)
		}
		fixed := format[:start] + d[:len(d)-1] + "d" + format[end:]
		out = fmt.Sprintf(fixed, int64(v))
	case 'e', 'E', 'f', 'F', 'g', 'G':
		out = fmt.Sprintf(format, v)
	case 's':
		out = fmt.Sprintf(format, generic(v))
	default:
		return "", fmt.Errorf("%w: unsupported verb %q in %q", ErrBadFormat, verb, format)
	}
	if strings.Contains(out, "%!") {
		return "", fmt.Errorf("%w: %q", ErrBadFormat, format)
	}
	return out, nil
}

func generic(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// directive locates the single formatting directive in format and returns
// its [start, end) byte range.
func directive(format string) (int, int, error) {
	start, end := -1, -1
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			i++
			continue
		}
		if start >= 0 {
			return 0, 0, fmt.Errorf("%w: more than one directive in %q", ErrBadFormat, format)
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
		}
		if j >= len(format) {
			return 0, 0, fmt.Errorf("%w: incomplete directive in %q", ErrBadFormat, format)
		}
		start, end = i, j+1
		i = j
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("%w: no directive in %q", ErrBadFormat, format)
	}
	return start, end, nil
}
