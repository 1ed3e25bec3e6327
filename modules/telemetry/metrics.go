// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	rl "httperrors/modules/ratelimit"
)

// HTTPMetrics holds counters and histograms for HTTP endpoint instrumentation
type HTTPMetrics struct {
	requestCounter    metric.Int64Counter
	durationHisto     metric.Float64Histogram
	responseSizeHisto metric.Int64Histogram
}

// NewHTTPMetrics creates a new HTTPMetrics instance for a given service name
func NewHTTPMetrics(serviceName string) (*HTTPMetrics, error) {
	meter := otel.Meter(serviceName)

	requestCounter, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHisto, err := meter.Float64Histogram(
		"http_server_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	responseSizeHisto, err := meter.Int64Histogram(
		"http_server_response_size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestCounter:    requestCounter,
		durationHisto:     durationHisto,
		responseSizeHisto: responseSizeHisto,
	}, nil
}

// RequestSample is one served request as seen by the telemetry middleware.
type RequestSample struct {
	Method string
	// Route is the mux pattern, or the raw path for unmatched requests.
	Route     string
	Status    int
	RateLimit string
	Duration  time.Duration
	Size      int64
}

// RecordRequest records a single HTTP request with its attributes
func (m *HTTPMetrics) RecordRequest(ctx context.Context, s RequestSample) {
	attrs := metric.WithAttributes(
		attribute.String("http_method", s.Method),
		attribute.String("http_endpoint", s.Route),
		attribute.String("http_status_code", strconv.Itoa(s.Status)),
		attribute.String("ratelimit_outcome", s.RateLimit),
	)

	m.requestCounter.Add(ctx, 1, attrs)
	m.durationHisto.Record(ctx, float64(s.Duration.Microseconds())/1000, attrs)
	if s.Size > 0 {
		m.responseSizeHisto.Record(ctx, s.Size, attrs)
	}
}

// RateLimitMetrics counts throttling decisions and tracks the in-memory
// window store size. Keys are never used as attributes to keep cardinality bounded.
type RateLimitMetrics struct {
	decisions metric.Int64Counter
	evictions metric.Int64Counter
	windows   metric.Int64Gauge
}

func NewRateLimitMetrics(serviceName string) (*RateLimitMetrics, error) {
	meter := otel.Meter(serviceName)

	decisions, err := meter.Int64Counter(
		"ratelimit_decisions_total",
		metric.WithDescription("Rate limit decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"ratelimit_window_evictions_total",
		metric.WithDescription("Expired windows reclaimed by the sweeper"),
		metric.WithUnit("{window}"),
	)
	if err != nil {
		return nil, err
	}

	windows, err := meter.Int64Gauge(
		"ratelimit_windows",
		metric.WithDescription("Windows held in memory after the last sweep"),
		metric.WithUnit("{window}"),
	)
	if err != nil {
		return nil, err
	}

	return &RateLimitMetrics{decisions: decisions, evictions: evictions, windows: windows}, nil
}

// RecordDecision matches ratelimit.DecisionHook.
func (m *RateLimitMetrics) RecordDecision(ctx context.Context, _ string, d rl.Decision) {
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSweep matches the sweeper hook.
func (m *RateLimitMetrics) RecordSweep(ctx context.Context, evicted, remaining int) {
	m.evictions.Add(ctx, int64(evicted))
	m.windows.Record(ctx, int64(remaining))
}
