package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics records upstream provider calls and raw-session cache use.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := Meter()

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"session.cache.hit",
		metric.WithDescription("Raw session cache hits by tier"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"session.cache.miss",
		metric.WithDescription("Raw session cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records one provider call. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordRequest(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	// Detach from request cancellation so late calls still get recorded.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a hit in the given tier ("memory" or "store").
func (m *ProviderMetrics) RecordCacheHit(ctx context.Context, tier, operation string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("cache.tier", tier),
		attribute.String("provider.operation", operation),
	))
}

// RecordCacheMiss records a miss in every cache tier.
func (m *ProviderMetrics) RecordCacheMiss(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("provider.operation", operation),
	))
}

// ComparisonMetrics records comparison pipeline outcomes.
type ComparisonMetrics struct {
	duration      metric.Float64Histogram
	driversFailed metric.Int64Counter
	insights      metric.Int64Histogram
}

// NewComparisonMetrics creates the comparison instruments on the global meter.
func NewComparisonMetrics() (*ComparisonMetrics, error) {
	meter := Meter()

	duration, err := meter.Float64Histogram(
		"comparison.duration",
		metric.WithDescription("Duration of lap comparisons in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	driversFailed, err := meter.Int64Counter(
		"comparison.driver.unavailable",
		metric.WithDescription("Drivers excluded from a comparison because their lap could not be loaded"),
		metric.WithUnit("{driver}"),
	)
	if err != nil {
		return nil, err
	}

	insights, err := meter.Int64Histogram(
		"comparison.insights",
		metric.WithDescription("Number of insights produced per comparison"),
		metric.WithUnit("{insight}"),
	)
	if err != nil {
		return nil, err
	}

	return &ComparisonMetrics{
		duration:      duration,
		driversFailed: driversFailed,
		insights:      insights,
	}, nil
}

// RecordComparison records one finished comparison. A nil receiver is a no-op.
func (m *ComparisonMetrics) RecordComparison(ctx context.Context, sessionType string, duration time.Duration, unavailable, insights int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("session.type", sessionType)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	ctx = context.WithoutCancel(ctx)
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if unavailable > 0 {
		m.driversFailed.Add(ctx, int64(unavailable), metric.WithAttributes(attrs...))
	}
	m.insights.Record(ctx, int64(insights), metric.WithAttributes(attrs...))
}
