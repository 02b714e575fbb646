package airquality

import (
	"math"
	"strings"
	"time"
)

// ForecastRecord is one hourly entry of a forecast provider payload.
// Component keys use the provider's naming (e.g. "pm2_5", "no2").
type ForecastRecord struct {
	Dt         int64
	Components map[string]*float64
}

// HistoryRecord is one measurement from a historical-samples provider.
// Each record carries a single parameter.
type HistoryRecord struct {
	Location   string
	Parameter  string
	Value      *float64
	MeasuredAt string
}

// CurrentRecord is a single current-moment reading.
type CurrentRecord struct {
	Dt         int64
	Components map[string]*float64
}

// historyTimeLayouts are tried in order when parsing HistoryRecord timestamps.
var historyTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeForecast converts forecast records to canonical samples.
// Records without a usable timestamp are dropped.
func NormalizeForecast(records []ForecastRecord) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		if r.Dt <= 0 {
			continue
		}
		samples = append(samples, fromComponentMap(r.Dt, r.Components))
	}
	return samples
}

// NormalizeHistory converts single-parameter history records to canonical samples.
// Records with an unparseable timestamp are dropped; records whose value is
// missing or a sentinel yield an empty sample.
func NormalizeHistory(records []HistoryRecord) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		ts, ok := parseHistoryTime(r.MeasuredAt)
		if !ok {
			continue
		}
		s := NewSample(ts)
		if c, ok := ParseComponent(r.Parameter); ok {
			if v, ok := usableValue(r.Value); ok {
				s.Components[c] = v
			}
		}
		samples = append(samples, s)
	}
	return samples
}

// NormalizeCurrent converts a current reading to a canonical sample.
// The second return value is false when the record has no usable timestamp.
func NormalizeCurrent(r CurrentRecord) (Sample, bool) {
	if r.Dt <= 0 {
		return Sample{}, false
	}
	return fromComponentMap(r.Dt, r.Components), true
}

// ParseComponent maps a provider parameter name to a Component.
// Unsupported parameters (so2, nh3, ...) return false.
func ParseComponent(name string) (Component, bool) {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)

	switch key {
	case "pm25":
		return ComponentPM25, true
	case "pm10":
		return ComponentPM10, true
	case "no2":
		return ComponentNO2, true
	case "o3":
		return ComponentO3, true
	case "co":
		return ComponentCO, true
	default:
		return "", false
	}
}

func fromComponentMap(ts int64, raw map[string]*float64) Sample {
	s := NewSample(ts)
	for name, value := range raw {
		c, ok := ParseComponent(name)
		if !ok {
			continue
		}
		if v, ok := usableValue(value); ok {
			s.Components[c] = v
		}
	}
	return s
}

// usableValue rejects null, non-finite and negative sentinel values.
func usableValue(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func parseHistoryTime(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range historyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}
