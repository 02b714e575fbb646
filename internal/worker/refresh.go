package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/series"
)

// SeriesBuilder builds the series for one site. Building populates the
// provider cache as a side effect.
type SeriesBuilder interface {
	BuildHourlySeries(ctx context.Context, req series.Request) (*series.Response, error)
}

// RefreshJob replays series builds for the configured sites.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	builder SeriesBuilder
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns           int64
	SuccessfulRefreshes int64
	FailedRefreshes     int64
	DegradedRefreshes   int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Builder SeriesBuilder
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		builder: cfg.Builder,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalSites int
	Successful int
	Failed     int

	// Degraded counts successful builds that carried provider warnings.
	Degraded int

	// Tiers counts successful builds by the tier that produced them.
	Tiers  map[string]int
	Errors []RefreshError
}

// RefreshError represents a failed site build.
type RefreshError struct {
	Site  series.Request
	Error string
}

// Run warms every configured site.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunSites(ctx, j.config.Sites)
}

// RunSites warms the given sites with the job's concurrency and timeout.
func (j *RefreshJob) RunSites(ctx context.Context, sites []series.Request) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:  startTime,
		TotalSites: len(sites),
		Tiers:      make(map[string]int),
	}

	j.logger.Info().
		Int("total_sites", result.TotalSites).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm-up")

	sitesChan := make(chan series.Request, len(sites))
	resultsChan := make(chan siteResult, len(sites))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, sitesChan, resultsChan)
		}()
	}

	for _, s := range sites {
		sitesChan <- s
	}
	close(sitesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{Site: sr.site, Error: sr.err.Error()})
			continue
		}
		result.Successful++
		result.Tiers[sr.tier.String()]++
		if sr.warnings > 0 {
			result.Degraded++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("degraded", result.Degraded).
		Msg("cache warm-up completed")

	return result
}

type siteResult struct {
	site     series.Request
	tier     airquality.Tier
	warnings int
	err      error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, sites <-chan series.Request, results chan<- siteResult) {
	for site := range sites {
		if err := ctx.Err(); err != nil {
			results <- siteResult{site: site, err: err}
			continue
		}
		results <- j.refreshSite(ctx, site)
	}
}

func (j *RefreshJob) refreshSite(ctx context.Context, site series.Request) siteResult {
	siteCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	resp, err := j.builder.BuildHourlySeries(siteCtx, site)
	if err != nil {
		j.logger.Warn().
			Err(err).
			Float64("lat", site.Lat).
			Float64("lon", site.Lon).
			Msg("site warm-up failed")
		return siteResult{site: site, err: err}
	}
	return siteResult{
		site:     site,
		tier:     resp.Series.Tier,
		warnings: len(resp.Warnings),
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefreshes += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.DegradedRefreshes += int64(result.Degraded)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulRefreshes: j.metrics.SuccessfulRefreshes,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		DegradedRefreshes:   j.metrics.DegradedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"successful_refreshes":  m.SuccessfulRefreshes,
		"failed_refreshes":      m.FailedRefreshes,
		"degraded_refreshes":    m.DegradedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
