package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/series"
	"github.com/breatheroute/airseries/internal/worker"
)

func TestDispatch_WarmSites(t *testing.T) {
	builder := &fakeBuilder{}
	h := worker.NewDispatcher(newJob(builder, worker.RefreshConfig{Sites: sites(1, 2)}), zerolog.Nop())

	require.NoError(t, h.Dispatch(context.Background(), []byte(`{"job_type":"warm_sites"}`)))
	assert.Equal(t, int32(2), builder.calls.Load())
}

func TestDispatch_WarmSitesOverride(t *testing.T) {
	builder := &fakeBuilder{}
	h := worker.NewDispatcher(newJob(builder, worker.RefreshConfig{Sites: sites(1, 2)}), zerolog.Nop())

	err := h.Dispatch(context.Background(),
		[]byte(`{"job_type":"warm_sites","sites":[{"lat":48.85,"lon":2.35,"name":"paris","hours":12}]}`))
	require.NoError(t, err)

	require.Len(t, builder.seen, 1)
	assert.Equal(t, series.Request{Lat: 48.85, Lon: 2.35, Name: "paris", Hours: 12}, builder.seen[0])
}

func TestDispatch_WarmSitesTooManyFailures(t *testing.T) {
	builder := &fakeBuilder{fail: map[float64]bool{1: true, 2: true}}
	h := worker.NewDispatcher(newJob(builder, worker.RefreshConfig{Sites: sites(1, 2, 3)}), zerolog.Nop())

	err := h.Dispatch(context.Background(), []byte(`{"job_type":"warm_sites"}`))
	assert.ErrorContains(t, err, "too many warm-up failures: 2/3")
}

func TestDispatch_HealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		builder  *fakeBuilder
		wantErr  string
		wantSite series.Request
	}{
		{
			name:     "live data",
			builder:  &fakeBuilder{tier: airquality.TierCombined},
			wantSite: series.Request{Lat: 1, Lon: 4.9, Hours: 1},
		},
		{
			name: "every provider down",
			builder: &fakeBuilder{
				tier:     airquality.TierReplicated,
				warnings: []airquality.Warning{{Source: "forecast", Detail: "down"}},
			},
			wantErr:  "no live provider data",
			wantSite: series.Request{Lat: 1, Lon: 4.9, Hours: 1},
		},
		{
			name:     "build error",
			builder:  &fakeBuilder{fail: map[float64]bool{1: true}},
			wantErr:  "health check failed",
			wantSite: series.Request{Lat: 1, Lon: 4.9, Hours: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := worker.NewDispatcher(newJob(tt.builder, worker.RefreshConfig{Sites: sites(1, 2)}), zerolog.Nop())

			err := h.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, tt.builder.seen, 1)
			assert.Equal(t, tt.wantSite, tt.builder.seen[0])
		})
	}
}

func TestDispatch_HealthCheckWithoutSites(t *testing.T) {
	builder := &fakeBuilder{}
	h := worker.NewDispatcher(newJob(builder, worker.RefreshConfig{}), zerolog.Nop())

	require.NoError(t, h.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`)))
	require.Len(t, builder.seen, 1)
	assert.Equal(t, 1, builder.seen[0].Hours)
}

func TestDispatch_InvalidMessages(t *testing.T) {
	h := worker.NewDispatcher(newJob(&fakeBuilder{}, worker.RefreshConfig{}), zerolog.Nop())

	err := h.Dispatch(context.Background(), []byte(`{"job_type":"provider_refresh"}`))
	assert.ErrorIs(t, err, worker.ErrUnknownJob)

	err = h.Dispatch(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrUnknownJob)
	assert.Contains(t, err.Error(), "parse message")
}

func TestDispatcher_Close(t *testing.T) {
	h := worker.NewDispatcher(newJob(&fakeBuilder{}, worker.RefreshConfig{}), zerolog.Nop())
	assert.NoError(t, h.Close())
}
