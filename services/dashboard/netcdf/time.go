package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var referenceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02_15:04:05",
	"2006-01-02",
}

// decodeTimes converts CF "<unit> since <reference>" offsets to UTC times.
func decodeTimes(offsets []float64, units string) ([]time.Time, error) {
	unit, ref, err := parseUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("missing time value at index %d", i)
		}
		out[i] = ref.Add(time.Duration(math.Round(v * float64(unit)))).UTC()
	}
	return out, nil
}

func parseUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "secs", "sec", "s":
		unit = time.Second
	case "minutes", "minute", "mins", "min":
		unit = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	ref, err := parseReference(parts[1])
	if err != nil {
		return 0, time.Time{}, err
	}
	return unit, ref, nil
}

func parseReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " UTC")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported reference time %q", s)
}
