package series

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/cache"
	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider"
	"github.com/breatheroute/airseries/internal/telemetry"
	"github.com/breatheroute/airseries/internal/weather"
)

// Config holds the sources and settings of a Service. Nil sources are skipped.
type Config struct {
	Forecast ForecastSource
	History  []HistorySource
	Current  CurrentSource
	Weather  weather.PointProvider
	Climate  weather.ClimateProvider
	Geocoder Geocoder

	// ClimateCountries gates the climate source. Empty disables it.
	ClimateCountries geo.AllowList

	// Builder runs the fallback chain. Default: airquality.NewBuilder with defaults.
	Builder *airquality.Builder

	// Loader caches provider payloads per grid cell. Nil disables caching.
	Loader *cache.Loader

	// GridSize is the cache cell size in degrees.
	// Default: 0.1
	GridSize float64

	// Metrics records provider calls and build outcomes. Optional.
	Metrics *telemetry.SeriesMetrics

	// CallTimeout bounds every provider call.
	// Default: 20 seconds
	CallTimeout time.Duration

	// HistoryWindow is how far before the series start history is requested.
	// Default: 24 hours
	HistoryWindow time.Duration

	// MaxHours caps Request.Hours.
	// Default: 168
	MaxHours int

	// Logger for service operations.
	Logger zerolog.Logger

	// Now overrides the clock.
	Now func() time.Time
}

// Service builds hourly series. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	config  Config
	builder *airquality.Builder
	tracer  trace.Tracer
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a new Service.
func NewService(cfg Config) *Service {
	if cfg.Builder == nil {
		cfg.Builder = airquality.NewBuilder(airquality.BuilderConfig{Logger: cfg.Logger})
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = 0.1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 24 * time.Hour
	}
	if cfg.MaxHours <= 0 {
		cfg.MaxHours = 168
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		config:  cfg,
		builder: cfg.Builder,
		tracer:  telemetry.Tracer(),
		logger:  cfg.Logger,
		now:     now,
	}
}

// fetched holds the captured outcome of every provider call for one request.
type fetched struct {
	forecast provider.Result[[]airquality.ForecastRecord]
	history  []provider.Result[[]airquality.HistoryRecord]
	current  provider.Result[airquality.CurrentRecord]
	point    provider.Result[*weather.Observation]
	place    provider.Result[geo.Place]
	climate  provider.Result[airquality.DailyClimate]
}

// BuildHourlySeries fetches every source concurrently and builds a series of
// req.Hours entries starting at the current hour. Provider failures become
// warnings; only invalid input is an error.
func (s *Service) BuildHourlySeries(ctx context.Context, req Request) (*Response, error) {
	p := geo.Point{Lat: req.Lat, Lon: req.Lon}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := req.Hours
	if n == 0 {
		n = s.builder.Length()
	}
	if n < 1 || n > s.config.MaxHours {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidHours, n, s.config.MaxHours)
	}

	ctx, span := s.tracer.Start(ctx, "series.BuildHourlySeries",
		trace.WithAttributes(
			attribute.Float64("geo.lat", p.Lat),
			attribute.Float64("geo.lon", p.Lon),
			attribute.Int("series.hours", n),
		),
	)
	defer span.End()

	began := s.now()
	now := began.UTC()
	start := time.Unix(airquality.HourStart(now.Unix()), 0).UTC()
	end := start.Add(time.Duration(n) * time.Hour)

	f := s.fetch(ctx, p, start, end)

	var warnings []airquality.Warning
	in := airquality.Inputs{}

	if records, ok := f.forecast.Get(); ok {
		in.Forecast = airquality.NormalizeForecast(records)
	}
	for _, h := range f.history {
		if records, ok := h.Get(); ok {
			in.History = append(in.History, airquality.NormalizeHistory(records)...)
		}
	}
	if record, ok := f.current.Get(); ok {
		if sample, ok := airquality.NormalizeCurrent(record); ok && !sample.IsEmpty() {
			in.Current = &sample
		}
	}

	warnings = append(warnings, s.warnings(f)...)

	result := s.builder.Build(now, n, in)
	warnings = append(warnings, result.Warnings...)

	var point *airquality.WeatherFields
	if obs, ok := f.point.Get(); ok && obs != nil {
		fields := obs.Fields()
		point = &fields
	}
	airquality.Enrich(&result.Series, f.climate.Or(nil), point)

	place := f.place.Or(geo.Place{})
	if req.Name != "" {
		place.Name = req.Name
	}

	resp := &Response{
		Site: Site{
			Lat:         p.Lat,
			Lon:         p.Lon,
			Name:        place.Name,
			ID:          place.ID(p),
			CountryCode: place.CountryCode,
		},
		GeneratedAt: now,
		Series:      result.Series,
		Warnings:    warnings,
	}

	tier := result.Series.Tier.String()
	span.SetAttributes(
		attribute.String("series.tier", tier),
		attribute.Int("series.warnings", len(warnings)),
	)
	if s.config.Metrics != nil {
		sources := make([]string, len(warnings))
		for i, w := range warnings {
			sources[i] = w.Source
		}
		s.config.Metrics.RecordBuild(ctx, tier, sources, s.now().Sub(began))
	}

	s.logger.Debug().
		Str("site", resp.Site.ID).
		Str("tier", tier).
		Int("hours", n).
		Int("forecast_samples", len(in.Forecast)).
		Int("history_samples", len(in.History)).
		Int("warnings", len(warnings)).
		Msg("series built")

	return resp, nil
}

// fetch issues every provider call concurrently and waits for all of them.
// Each goroutine records its own outcome, so the group never short-circuits.
func (s *Service) fetch(ctx context.Context, p geo.Point, start, end time.Time) fetched {
	var (
		f    fetched
		g    errgroup.Group
		cell = geo.GridCell(p, s.config.GridSize)
		hour = start.Format("2006010215")
	)

	if src := s.config.Forecast; src != nil {
		g.Go(func() error {
			f.forecast = call(ctx, s, src.Name(), key(src.Name(), "forecast", cell, hour),
				func(ctx context.Context) ([]airquality.ForecastRecord, error) {
					return src.Forecast(ctx, p)
				})
			return nil
		})
	}

	f.history = make([]provider.Result[[]airquality.HistoryRecord], len(s.config.History))
	from := start.Add(-s.config.HistoryWindow)
	for i, src := range s.config.History {
		g.Go(func() error {
			f.history[i] = call(ctx, s, src.Name(), key(src.Name(), "history", cell, from.Format("2006010215"), hour),
				func(ctx context.Context) ([]airquality.HistoryRecord, error) {
					return src.History(ctx, p, from, start)
				})
			return nil
		})
	}

	if src := s.config.Current; src != nil {
		g.Go(func() error {
			f.current = call(ctx, s, src.Name(), key(src.Name(), "current", cell, hour),
				func(ctx context.Context) (airquality.CurrentRecord, error) {
					return src.Current(ctx, p)
				})
			return nil
		})
	}

	if src := s.config.Weather; src != nil {
		g.Go(func() error {
			f.point = call(ctx, s, src.Name(), key(src.Name(), "weather", cell, hour),
				func(ctx context.Context) (*weather.Observation, error) {
					return src.CurrentWeather(ctx, p)
				})
			return nil
		})
	}

	if src := s.config.Geocoder; src != nil {
		g.Go(func() error {
			f.place = call(ctx, s, src.Name(), key(src.Name(), "geocode", geo.GridCell(p, 0.01)),
				func(ctx context.Context) (geo.Place, error) {
					return src.ReverseGeocode(ctx, p)
				})

			place, ok := f.place.Get()
			climate := s.config.Climate
			if !ok || climate == nil || !s.config.ClimateCountries.Allows(place.CountryCode) {
				return nil
			}
			last := end.Add(-time.Second)
			f.climate = call(ctx, s, climate.Name(), key(climate.Name(), "climate", cell, airquality.DayKey(start), airquality.DayKey(last)),
				func(ctx context.Context) (airquality.DailyClimate, error) {
					return climate.DailyClimate(ctx, p, start, last)
				})
			return nil
		})
	}

	_ = g.Wait()
	return f
}

// warnings lists the failed provider calls in a fixed source order.
func (s *Service) warnings(f fetched) []airquality.Warning {
	var out []airquality.Warning
	add := func(name string, err error) {
		if err != nil {
			out = append(out, airquality.Warning{Source: name, Detail: err.Error()})
		}
	}

	if s.config.Forecast != nil {
		add(s.config.Forecast.Name(), f.forecast.Err)
	}
	for i, src := range s.config.History {
		add(src.Name(), f.history[i].Err)
	}
	if s.config.Current != nil {
		add(s.config.Current.Name(), f.current.Err)
	}
	if s.config.Weather != nil {
		add(s.config.Weather.Name(), f.point.Err)
	}
	if s.config.Geocoder != nil {
		add(s.config.Geocoder.Name(), f.place.Err)
	}
	if s.config.Climate != nil {
		add(s.config.Climate.Name(), f.climate.Err)
	}
	return out
}

// call runs one provider call under its own timeout and span, through the
// cache when one is configured, and captures the outcome.
func call[T any](ctx context.Context, s *Service, name, cacheKey string, fn func(context.Context) (T, error)) provider.Result[T] {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "provider."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider.name", name)),
	)
	defer span.End()

	began := time.Now()
	var (
		v   T
		err error
	)
	if s.config.Loader != nil {
		v, err = cache.Load(ctx, s.config.Loader, cacheKey, fn)
	} else {
		v, err = fn(ctx)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.RecordProvider(ctx, name, time.Since(began), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn().
			Str("provider", name).
			Err(err).
			Msg("provider unavailable, continuing without it")
	}
	return provider.From(v, err)
}

// key joins a provider name, operation and scope into a cache key. The
// operation is required: one adapter may serve several sources under one name.
func key(parts ...string) string {
	out := "v1"
	for _, p := range parts {
		out += ":" + p
	}
	return out
}
