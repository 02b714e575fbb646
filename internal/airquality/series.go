package airquality

import (
	"time"

	"github.com/rs/zerolog"
)

// SeriesSource is the warning source used for series-level degradation.
const SeriesSource = "series"

// BuilderConfig holds configuration for the series builder.
type BuilderConfig struct {
	// Length is the default number of hourly entries. Default: 24.
	Length int

	// MinPopulated is the number of hours that must carry PM2.5 for a tier
	// to be accepted. Default: 2.
	MinPopulated int

	// HistoryLookback widens the history-only tier window before the series
	// start to give the interpolator more anchors. Default: 12 hours.
	HistoryLookback time.Duration

	// OfflineDefault is replicated when no provider furnished any reading.
	// Nil disables the static fallback.
	OfflineDefault *Sample

	// Logger for builder decisions.
	Logger zerolog.Logger
}

// DefaultBuilderConfig returns the default configuration.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Length:          24,
		MinPopulated:    2,
		HistoryLookback: 12 * time.Hour,
	}
}

// Inputs are the normalized samples fetched for one request.
type Inputs struct {
	// Forecast holds forward-looking forecast samples.
	Forecast []Sample

	// History holds recent historical samples.
	History []Sample

	// Current is a single current-moment reading, if one was fetched.
	Current *Sample
}

// Result is the outcome of a series build.
type Result struct {
	Series   Series
	Warnings []Warning
}

// Builder runs the tiered fallback chain that turns samples into a series.
// A Builder holds no per-request state and is safe for concurrent use.
type Builder struct {
	config BuilderConfig
	logger zerolog.Logger
}

// NewBuilder creates a new Builder with the given configuration.
func NewBuilder(config BuilderConfig) *Builder {
	defaults := DefaultBuilderConfig()
	if config.Length <= 0 {
		config.Length = defaults.Length
	}
	if config.MinPopulated <= 0 {
		config.MinPopulated = defaults.MinPopulated
	}
	if config.HistoryLookback <= 0 {
		config.HistoryLookback = defaults.HistoryLookback
	}
	return &Builder{config: config, logger: config.Logger}
}

// Length returns the configured default series length.
func (b *Builder) Length() int {
	return b.config.Length
}

// tierFunc produces a candidate series or ErrInsufficientData.
type tierFunc func(start int64, n int, in Inputs) (Series, error)

// Build produces a series of exactly n hourly entries starting at the hour
// containing now. n <= 0 uses the configured length. Tiers are tried in
// priority order and the first one with enough PM2.5 hours wins; the final
// replication tier always succeeds.
func (b *Builder) Build(now time.Time, n int, in Inputs) Result {
	if n <= 0 {
		n = b.config.Length
	}
	start := HourStart(now.Unix())

	tiers := []struct {
		tier Tier
		fn   tierFunc
	}{
		{TierCombined, b.combinedTier},
		{TierForecastDirect, b.forecastTier},
		{TierHistory, b.historyTier},
	}

	for _, t := range tiers {
		series, err := t.fn(start, n, in)
		if err != nil {
			b.logger.Debug().
				Str("tier", t.tier.String()).
				Err(err).
				Msg("series tier rejected")
			continue
		}
		series.Tier = t.tier
		b.logger.Debug().
			Str("tier", t.tier.String()).
			Int("pm25_hours", series.Populated(ComponentPM25)).
			Msg("series tier selected")
		return Result{Series: series}
	}

	return b.replicateTier(start, n, in)
}

// combinedTier merges forecast and history samples inside the target window
// and interpolates every target hour.
func (b *Builder) combinedTier(start int64, n int, in Inputs) (Series, error) {
	if len(in.Forecast) == 0 && len(in.History) == 0 {
		return Series{}, ErrInsufficientData
	}

	samples := make([]Sample, 0, len(in.Forecast)+len(in.History))
	samples = append(samples, in.Forecast...)
	samples = append(samples, in.History...)

	buckets := AggregateWindow(samples, start, windowEnd(start, n))
	return b.accept(interpolateSeries(buckets, start, n))
}

// forecastTier uses exact hour matches from the forecast only.
func (b *Builder) forecastTier(start int64, n int, in Inputs) (Series, error) {
	if len(in.Forecast) == 0 {
		return Series{}, ErrInsufficientData
	}

	buckets := Aggregate(in.Forecast)
	series := newSeries(start, n)
	for i := range series.Entries {
		bucket, ok := buckets[start+int64(i)*HourSeconds]
		if !ok {
			continue
		}
		series.Entries[i].SampleCount = bucket.SampleCount
		for _, c := range Components {
			if v, ok := bucket.Average(c); ok {
				series.Entries[i].Values[c] = v
			}
		}
	}
	return b.accept(series)
}

// historyTier interpolates history alone over a window that starts
// HistoryLookback before the series, then keeps the n target hours.
func (b *Builder) historyTier(start int64, n int, in Inputs) (Series, error) {
	if len(in.History) == 0 {
		return Series{}, ErrInsufficientData
	}

	from := HourStart(start - int64(b.config.HistoryLookback/time.Second))
	buckets := AggregateWindow(in.History, from, windowEnd(start, n))
	return b.accept(interpolateSeries(buckets, start, n))
}

// replicateTier copies one representative sample into every hour with a
// sample count of zero. Without any representative the entries stay empty.
func (b *Builder) replicateTier(start int64, n int, in Inputs) Result {
	series := newSeries(start, n)
	series.Tier = TierReplicated

	rep, source := b.representative(in)
	if rep == nil {
		b.logger.Error().
			Int("hours", n).
			Msg("no air quality data from any source")
		return Result{
			Series: series,
			Warnings: []Warning{{
				Source: SeriesSource,
				Detail: ErrNoDataAtAll.Error(),
			}},
		}
	}

	for i := range series.Entries {
		for c, v := range rep.Components {
			series.Entries[i].Values[c] = v
		}
	}

	b.logger.Debug().
		Str("tier", TierReplicated.String()).
		Str("representative", source).
		Time("representative_at", rep.Time()).
		Msg("series tier selected")

	return Result{
		Series: series,
		Warnings: []Warning{{
			Source: SeriesSource,
			Detail: "insufficient hourly data, replicated " + source + " reading across all hours",
		}},
	}
}

// representative builds the replication sample component by component: the
// most recent same-day history average first, then the current reading, then
// the offline default. The label names the source that supplied PM2.5, or the
// first contributing source when none did.
func (b *Builder) representative(in Inputs) (*Sample, string) {
	chain := []struct {
		name   string
		sample *Sample
	}{
		{"history_average", HistoryAverage(in.History)},
		{"current", in.Current},
		{"offline_default", b.config.OfflineDefault},
	}

	var rep *Sample
	source := ""
	for _, c := range chain {
		if c.sample == nil || c.sample.IsEmpty() {
			continue
		}
		if rep == nil {
			s := NewSample(c.sample.Timestamp)
			rep, source = &s, c.name
		}
		for comp, v := range c.sample.Components {
			if _, ok := rep.Components[comp]; ok {
				continue
			}
			rep.Components[comp] = v
			if comp == ComponentPM25 {
				source = c.name
			}
		}
	}
	return rep, source
}

func (b *Builder) accept(series Series) (Series, error) {
	if series.Populated(ComponentPM25) < b.config.MinPopulated {
		return Series{}, ErrInsufficientData
	}
	return series, nil
}

// HistoryAverage averages each component over the history samples that share
// the UTC day of the most recent non-empty sample. Nil if history is empty.
func HistoryAverage(history []Sample) *Sample {
	var latest int64
	found := false
	for _, s := range history {
		if s.IsEmpty() {
			continue
		}
		if !found || s.Timestamp > latest {
			latest, found = s.Timestamp, true
		}
	}
	if !found {
		return nil
	}

	day := dayKey(latest)
	sameDay := make([]Sample, 0, len(history))
	for _, s := range history {
		if !s.IsEmpty() && dayKey(s.Timestamp) == day {
			// Collapse into one bucket regardless of hour.
			sameDay = append(sameDay, Sample{Timestamp: latest, Components: s.Components})
		}
	}

	bucket := Aggregate(sameDay)[HourStart(latest)]
	avg := NewSample(latest)
	for _, c := range Components {
		if v, ok := bucket.Average(c); ok {
			avg.Components[c] = v
		}
	}
	return &avg
}

func interpolateSeries(buckets Buckets, start int64, n int) Series {
	series := Series{Start: unixUTC(start), Entries: make([]Entry, n)}
	for i := 0; i < n; i++ {
		series.Entries[i] = InterpolateEntry(buckets, start+int64(i)*HourSeconds)
	}
	return series
}

func newSeries(start int64, n int) Series {
	series := Series{Start: unixUTC(start), Entries: make([]Entry, n)}
	for i := range series.Entries {
		series.Entries[i] = Entry{
			Time:   unixUTC(start + int64(i)*HourSeconds),
			Values: make(map[Component]float64),
		}
	}
	return series
}

func windowEnd(start int64, n int) int64 {
	return start + int64(n)*HourSeconds
}

func dayKey(ts int64) string {
	return unixUTC(ts).Format("2006-01-02")
}

func unixUTC(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
