package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SeriesMetrics holds the instruments recorded while building series.
type SeriesMetrics struct {
	providerDuration metric.Float64Histogram
	providerTotal    metric.Int64Counter
	tierTotal        metric.Int64Counter
	warningTotal     metric.Int64Counter
	buildDuration    metric.Float64Histogram
}

// NewSeriesMetrics creates the series instruments on the global meter provider.
func NewSeriesMetrics() (*SeriesMetrics, error) {
	return NewSeriesMetricsWithMeter(otel.Meter(InstrumentationName))
}

// NewSeriesMetricsWithMeter creates the series instruments on meter.
func NewSeriesMetricsWithMeter(meter metric.Meter) (*SeriesMetrics, error) {
	providerDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	providerTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	tierTotal, err := meter.Int64Counter(
		"series.tier.total",
		metric.WithDescription("Series built, by winning fallback tier"),
		metric.WithUnit("{series}"),
	)
	if err != nil {
		return nil, err
	}

	warningTotal, err := meter.Int64Counter(
		"series.warning.total",
		metric.WithDescription("Degraded sources reported in series responses"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, err
	}

	buildDuration, err := meter.Float64Histogram(
		"series.build.duration",
		metric.WithDescription("End-to-end series build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SeriesMetrics{
		providerDuration: providerDuration,
		providerTotal:    providerTotal,
		tierTotal:        tierTotal,
		warningTotal:     warningTotal,
		buildDuration:    buildDuration,
	}, nil
}

// RecordProvider records one provider call.
func (m *SeriesMetrics) RecordProvider(ctx context.Context, provider string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.Bool("error", err != nil),
	)
	ctx = context.WithoutCancel(ctx)
	m.providerDuration.Record(ctx, duration.Seconds(), attrs)
	m.providerTotal.Add(ctx, 1, attrs)
}

// RecordBuild records a finished series build.
func (m *SeriesMetrics) RecordBuild(ctx context.Context, tier string, warnings []string, duration time.Duration) {
	ctx = context.WithoutCancel(ctx)
	m.tierTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("series.tier", tier)))
	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("series.tier", tier)))
	for _, source := range warnings {
		m.warningTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("warning.source", source)))
	}
}
