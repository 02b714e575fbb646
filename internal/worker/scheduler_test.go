package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/worker"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	builder := &fakeBuilder{}
	job := newJob(builder, worker.RefreshConfig{Sites: sites(1, 2)})
	s := worker.NewScheduler(job, time.Hour, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool {
		return job.GetMetrics().TotalRuns == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), builder.calls.Load())
}

func TestScheduler_NoSitesStaysIdle(t *testing.T) {
	s := worker.NewScheduler(newJob(&fakeBuilder{}, worker.RefreshConfig{}), time.Minute, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestScheduler_InvalidInterval(t *testing.T) {
	s := worker.NewScheduler(newJob(&fakeBuilder{}, worker.RefreshConfig{Sites: sites(1)}), 0, zerolog.Nop())

	assert.Error(t, s.Start(context.Background()))
}
