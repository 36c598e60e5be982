// Package timeutil implements the ISO-8601 conversions and chunking
// helper the collector needs. The canonical formatted form produced by
// Format is sent over the wire as the dispatch.earliest_time /
// dispatch.latest_time parameters and must remain byte-stable.
package timeutil

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// CanonicalLayout is the exact wire format Splunk expects for dispatch
// time parameters: UTC, microsecond precision, explicit +0000 offset.
const CanonicalLayout = "2006-01-02T15:04:05.000000-0700"

// ParseSeconds parses an ISO-8601 timestamp (any offset) and returns
// the UTC epoch time as a floating-point number of seconds.
func ParseSeconds(s string) (float64, error) {
	t, err := parseAny(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing timestamp %q", s)
	}
	return ToSeconds(t), nil
}

// a handful of layouts seen in practice; Splunk's own dispatch params
// always round-trip through Format below, but inbound event timestamps
// and config-supplied bounds may carry any valid ISO-8601 offset form.
var inputLayouts = []string{
	CanonicalLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999Z07:00",
}

func parseAny(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// ToSeconds converts a time.Time to a floating point UTC epoch second,
// preserving sub-second precision.
func ToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromSeconds converts a floating point UTC epoch second back to a
// time.Time, rounded to the nearest microsecond (the canonical wire
// precision) so float error cannot shift the formatted value.
func FromSeconds(seconds float64) time.Time {
	micros := int64(math.Round(seconds * 1e6))
	return time.Unix(0, micros*1000).UTC()
}

// Format renders a UTC epoch second in the canonical
// YYYY-MM-DDThh:mm:ss.ffffff+0000 form used on the wire.
func Format(seconds float64) string {
	return FromSeconds(seconds).Format(CanonicalLayout)
}

// Chunks splits xs into consecutive slices of at most n elements each;
// the final slice may be shorter. Chunks panics if n <= 0.
func Chunks[T any](xs []T, n int) [][]T {
	if n <= 0 {
		panic("timeutil: chunk size must be positive")
	}
	if len(xs) == 0 {
		return nil
	}
	ret := make([][]T, 0, (len(xs)+n-1)/n)
	for i := 0; i < len(xs); i += n {
		end := i + n
		if end > len(xs) {
			end = len(xs)
		}
		ret = append(ret, xs[i:end])
	}
	return ret
}
