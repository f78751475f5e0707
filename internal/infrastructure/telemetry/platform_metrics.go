package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrPlatform   = attribute.Key("platform")
	attrHTTPMethod = attribute.Key("http.method")
	attrHTTPStatus = attribute.Key("http.status_code")
)

// platformDurationBuckets are the outbound call duration boundaries in
// seconds. A rate limited call sleeps 3s per attempt, hence the long tail.
var platformDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PlatformMetrics tracks outbound calls to the storefront and ERP platforms.
// A nil *PlatformMetrics records nothing.
type PlatformMetrics struct {
	requests    metric.Int64Counter
	retries     metric.Int64Counter
	rateLimited metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewPlatformMetrics registers the platform call instruments on the meter.
func NewPlatformMetrics(meter metric.Meter) (*PlatformMetrics, error) {
	var (
		m   PlatformMetrics
		err error
	)
	if m.requests, err = meter.Int64Counter("platform_requests_total",
		metric.WithDescription("Outbound platform requests by final status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform_requests_total: %w", err)
	}
	if m.retries, err = meter.Int64Counter("platform_request_retries_total",
		metric.WithDescription("Retried platform request attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform_request_retries_total: %w", err)
	}
	if m.rateLimited, err = meter.Int64Counter("platform_rate_limited_total",
		metric.WithDescription("Platform requests abandoned after exhausting rate limit retries"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform_rate_limited_total: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("platform_request_duration_seconds",
		metric.WithDescription("Duration of outbound platform requests including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(platformDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create platform_request_duration_seconds: %w", err)
	}
	return &m, nil
}

// RecordRequest records a completed request.
func (m *PlatformMetrics) RecordRequest(ctx context.Context, platform, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attrPlatform.String(platform),
		attrHTTPMethod.String(method),
		attrHTTPStatus.String(strconv.Itoa(status)),
	))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attrPlatform.String(platform),
		attrHTTPMethod.String(method),
	))
}

// RecordRetry records one retried attempt.
func (m *PlatformMetrics) RecordRetry(ctx context.Context, platform string, status int) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attrPlatform.String(platform),
		attrHTTPStatus.String(strconv.Itoa(status)),
	))
}

// RecordRateLimited records a request abandoned on rate limiting.
func (m *PlatformMetrics) RecordRateLimited(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrPlatform.String(platform)))
}
