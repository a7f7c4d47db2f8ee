package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UpstreamMetrics records upstream call latency and response cache effectiveness.
// A nil *UpstreamMetrics is valid and records nothing.
type UpstreamMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	refreshDuration metric.Float64Histogram
	refreshFailures metric.Int64Counter
}

// NewUpstreamMetrics registers the instruments on meter.
func NewUpstreamMetrics(meter metric.Meter) (*UpstreamMetrics, error) {
	requestDuration, err := meter.Float64Histogram(
		"upstream.request.duration",
		metric.WithDescription("Duration of upstream weather and geocoding requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"upstream.request.total",
		metric.WithDescription("Total number of upstream requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"weather.cache.hit",
		metric.WithDescription("Weather snapshots served from the response cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"weather.cache.miss",
		metric.WithDescription("Weather lookups that went to the upstream"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	refreshDuration, err := meter.Float64Histogram(
		"refresh.cycle.duration",
		metric.WithDescription("Duration of background refresh cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	refreshFailures, err := meter.Int64Counter(
		"refresh.entry.failures",
		metric.WithDescription("Locations that degraded to placeholders during a refresh cycle"),
		metric.WithUnit("{location}"),
	)
	if err != nil {
		return nil, err
	}

	return &UpstreamMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		refreshDuration: refreshDuration,
		refreshFailures: refreshFailures,
	}, nil
}

// RecordRequest records one upstream call.
func (m *UpstreamMetrics) RecordRequest(ctx context.Context, upstream, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("upstream.name", upstream),
		attribute.String("upstream.operation", operation),
		attribute.Bool("error", err != nil),
	)
	// Detached so a cancelled request still gets recorded.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// RecordCacheHit counts a weather cache hit.
func (m *UpstreamMetrics) RecordCacheHit(ctx context.Context, upstream string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("upstream.name", upstream)))
}

// RecordCacheMiss counts a weather cache miss.
func (m *UpstreamMetrics) RecordCacheMiss(ctx context.Context, upstream string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("upstream.name", upstream)))
}

// RecordRefresh records a finished refresh cycle.
func (m *UpstreamMetrics) RecordRefresh(ctx context.Context, duration time.Duration, failed int) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.refreshDuration.Record(ctx, duration.Seconds())
	if failed > 0 {
		m.refreshFailures.Add(ctx, int64(failed))
	}
}
