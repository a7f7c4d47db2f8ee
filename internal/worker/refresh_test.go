package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
	"github.com/weatherdeck/weatherdeck/internal/weather"
	"github.com/weatherdeck/weatherdeck/internal/worker"
)

type fakeRefresher struct {
	mu        sync.Mutex
	result    *aggregator.Result
	committed bool
	calls     atomic.Int32
	deadline  bool
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*aggregator.Result, bool) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	return f.result, f.committed
}

func resultWith(failed ...bool) *aggregator.Result {
	res := &aggregator.Result{Generation: 7}
	for i, f := range failed {
		e := aggregator.Entry{Location: location.New("", "city", float64(i), 0)}
		if f {
			e.Err = failure.KindWeatherAPI
		} else {
			e.Weather = &weather.Snapshot{}
		}
		res.Entries = append(res.Entries, e)
	}
	return res
}

func newJob(r worker.Refresher) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.DefaultRefreshConfig(),
		Refresher: r,
		Logger:    zerolog.Nop(),
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 10*time.Minute, cfg.Interval)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.InDelta(t, 0.5, cfg.MaxFailureRatio, 1e-9)
}

func TestRefreshJob_Run(t *testing.T) {
	r := &fakeRefresher{result: resultWith(false, true, false), committed: true}
	job := newJob(r)

	result := job.Run(context.Background())

	assert.Equal(t, uint64(7), result.Generation)
	assert.True(t, result.Committed)
	assert.Equal(t, 3, result.Entries)
	assert.Equal(t, 1, result.Failed)
	assert.InDelta(t, 1.0/3.0, result.FailureRatio(), 1e-9)
	assert.True(t, r.deadline, "cycle runs under a timeout")
}

func TestRefreshJob_GetMetrics(t *testing.T) {
	r := &fakeRefresher{result: resultWith(false, true), committed: true}
	job := newJob(r)

	_ = job.Run(context.Background())
	r.committed = false
	_ = job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRefreshes)
	assert.Equal(t, int64(1), m.StaleRefreshes)
	assert.Equal(t, int64(2), m.RefreshedEntries)
	assert.Equal(t, int64(2), m.FailedEntries)
	assert.NotZero(t, m.LastRefreshAt)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	job := newJob(&fakeRefresher{result: resultWith(), committed: true})
	_ = job.Run(context.Background())

	snapshot := job.MetricsSnapshot()

	assert.Contains(t, snapshot, "total_refreshes")
	assert.Contains(t, snapshot, "failed_entries")
	assert.Contains(t, snapshot, "last_refresh_at")
	assert.Contains(t, snapshot, "last_refresh_duration")
}

func TestRefreshResult_FailureRatioEmpty(t *testing.T) {
	assert.Zero(t, (&worker.RefreshResult{}).FailureRatio())
}

func TestDispatcher_Refresh(t *testing.T) {
	tests := []struct {
		name    string
		result  *aggregator.Result
		wantErr error
	}{
		{"all good", resultWith(false, false), nil},
		{"half failed is tolerated", resultWith(false, true), nil},
		{"mostly failed", resultWith(true, true, false), worker.ErrTooManyFailures},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRefresher{result: tt.result, committed: true}
			d := worker.NewDispatcher(worker.DispatcherConfig{RefreshJob: newJob(r), Logger: zerolog.Nop()})

			err := d.Handle(context.Background(), []byte(`{"job_type":"refresh"}`))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), r.calls.Load())
		})
	}
}

func TestDispatcher_BadMessages(t *testing.T) {
	r := &fakeRefresher{result: resultWith(), committed: true}
	d := worker.NewDispatcher(worker.DispatcherConfig{RefreshJob: newJob(r), Logger: zerolog.Nop()})

	err := d.Handle(context.Background(), []byte(`{"job_type":"alert_evaluation"}`))
	assert.ErrorIs(t, err, worker.ErrUnknownJobType)

	err = d.Handle(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrUnknownJobType)

	assert.Zero(t, r.calls.Load())
}

func TestDispatcher_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "open-meteo",
		DisableRetries: true,
		Registry:       registry,
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			Name:        "open-meteo",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
		},
	})

	d := worker.NewDispatcher(worker.DispatcherConfig{
		RefreshJob: newJob(&fakeRefresher{result: resultWith()}),
		Registry:   registry,
		Logger:     zerolog.Nop(),
	})
	msg := []byte(`{"job_type":"health_check"}`)

	require.NoError(t, d.Handle(context.Background(), msg))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	err = d.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, worker.ErrUpstreamUnhealthy)
	assert.Contains(t, err.Error(), "open-meteo")
}

func TestScheduler_DisabledInterval(t *testing.T) {
	r := &fakeRefresher{result: resultWith(), committed: true}
	s := worker.NewScheduler(newJob(r), 0, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.False(t, s.IsRunning())
}

func TestScheduler_RunsJobPeriodically(t *testing.T) {
	r := &fakeRefresher{result: resultWith(false), committed: true}
	s := worker.NewScheduler(newJob(r), 50*time.Millisecond, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}
