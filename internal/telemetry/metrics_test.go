package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/weatherdeck/weatherdeck/internal/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestUpstreamMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := telemetry.NewUpstreamMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRequest(ctx, "open-meteo", "forecast", 120*time.Millisecond, nil)
	m.RecordRequest(ctx, "open-meteo", "forecast", 80*time.Millisecond, errors.New("HTTP 503"))
	m.RecordCacheHit(ctx, "open-meteo")
	m.RecordCacheHit(ctx, "open-meteo")
	m.RecordCacheMiss(ctx, "open-meteo")
	m.RecordRefresh(ctx, time.Second, 2)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["upstream.request.total"]))
	assert.Equal(t, int64(2), sumOf(t, data["weather.cache.hit"]))
	assert.Equal(t, int64(1), sumOf(t, data["weather.cache.miss"]))
	assert.Equal(t, int64(2), sumOf(t, data["refresh.entry.failures"]))
	assert.Contains(t, data, "upstream.request.duration")
	assert.Contains(t, data, "refresh.cycle.duration")
}

func TestUpstreamMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.UpstreamMetrics
	assert.NotPanics(t, func() {
		m.RecordRequest(context.Background(), "x", "y", time.Millisecond, nil)
		m.RecordCacheHit(context.Background(), "x")
		m.RecordCacheMiss(context.Background(), "x")
		m.RecordRefresh(context.Background(), time.Millisecond, 1)
	})
}
