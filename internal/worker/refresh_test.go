package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/series"
	"github.com/breatheroute/airseries/internal/worker"
)

// fakeBuilder returns a forecast series, or errors for latitudes in fail.
type fakeBuilder struct {
	mu       sync.Mutex
	seen     []series.Request
	calls    atomic.Int32
	fail     map[float64]bool
	tier     airquality.Tier
	warnings []airquality.Warning
	delay    time.Duration
}

func (b *fakeBuilder) BuildHourlySeries(ctx context.Context, req series.Request) (*series.Response, error) {
	b.calls.Add(1)
	b.mu.Lock()
	b.seen = append(b.seen, req)
	b.mu.Unlock()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.fail[req.Lat] {
		return nil, series.ErrInvalidCoordinates
	}
	tier := b.tier
	if tier == airquality.TierNone {
		tier = airquality.TierForecastDirect
	}
	return &series.Response{
		Series:   airquality.Series{Tier: tier},
		Warnings: b.warnings,
	}, nil
}

func sites(lats ...float64) []series.Request {
	out := make([]series.Request, len(lats))
	for i, lat := range lats {
		out[i] = series.Request{Lat: lat, Lon: 4.9}
	}
	return out
}

func newJob(builder worker.SeriesBuilder, cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Builder: builder,
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.TotalSites())
}

func TestRefreshJob_Run(t *testing.T) {
	builder := &fakeBuilder{}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(52.1, 52.2, 52.3, 52.4), Concurrency: 2})

	result := job.Run(context.Background())

	assert.Equal(t, 4, result.TotalSites)
	assert.Equal(t, 4, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.Degraded)
	assert.Equal(t, map[string]int{"forecast_direct": 4}, result.Tiers)
	assert.Empty(t, result.Errors)
	assert.Equal(t, int32(4), builder.calls.Load())
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestRefreshJob_ErrorCollection(t *testing.T) {
	builder := &fakeBuilder{fail: map[float64]bool{52.2: true}}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(52.1, 52.2, 52.3)})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 52.2, result.Errors[0].Site.Lat)
	assert.Contains(t, result.Errors[0].Error, "coordinates")
}

func TestRefreshJob_DegradedBuilds(t *testing.T) {
	builder := &fakeBuilder{
		tier:     airquality.TierReplicated,
		warnings: []airquality.Warning{{Source: "openaq", Detail: "timeout"}},
	}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2)})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 2, result.Degraded)
	assert.Equal(t, map[string]int{"replicated": 2}, result.Tiers)
}

func TestRefreshJob_SiteTimeout(t *testing.T) {
	builder := &fakeBuilder{delay: time.Second}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1), Timeout: 20 * time.Millisecond})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, context.DeadlineExceeded.Error())
}

func TestRefreshJob_ContextCancellation(t *testing.T) {
	builder := &fakeBuilder{}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2, 3), Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 3, result.Failed)
	assert.Zero(t, builder.calls.Load())
	for _, e := range result.Errors {
		assert.Equal(t, context.Canceled.Error(), e.Error)
	}
}

func TestRefreshJob_RunSites(t *testing.T) {
	builder := &fakeBuilder{}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2, 3)})

	result := job.RunSites(context.Background(), []series.Request{{Lat: 40.7, Lon: -74, Name: "nyc", Hours: 6}})

	assert.Equal(t, 1, result.TotalSites)
	require.Len(t, builder.seen, 1)
	assert.Equal(t, series.Request{Lat: 40.7, Lon: -74, Name: "nyc", Hours: 6}, builder.seen[0])
}

func TestRefreshJob_GetMetrics(t *testing.T) {
	builder := &fakeBuilder{fail: map[float64]bool{2: true}}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2)})

	job.Run(context.Background())
	job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.SuccessfulRefreshes)
	assert.Equal(t, int64(2), m.FailedRefreshes)
	assert.False(t, m.LastRefreshAt.IsZero())
	assert.GreaterOrEqual(t, m.TotalDuration, m.LastRefreshDuration)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	job := newJob(&fakeBuilder{}, worker.RefreshConfig{Sites: sites(1)})
	job.Run(context.Background())

	snapshot := job.MetricsSnapshot()

	assert.Equal(t, int64(1), snapshot["total_runs"])
	assert.Equal(t, int64(1), snapshot["successful_refreshes"])
	assert.Contains(t, snapshot, "last_refresh_duration")
}

func TestNewRefreshJob_AppliesDefaults(t *testing.T) {
	builder := &fakeBuilder{delay: 50 * time.Millisecond}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2, 3)})

	start := time.Now()
	result := job.Run(context.Background())

	// Default concurrency builds all three sites in parallel.
	assert.Equal(t, 3, result.Successful)
	assert.Less(t, time.Since(start), 140*time.Millisecond)
}
