// Package observe wires OpenTelemetry metrics and traces, session-aware slog
// loggers and the HTTP middleware of the assessment service.
//
// Instruments live in [Metrics]. Production code uses [DefaultMetrics], bound
// to the Prometheus-backed provider installed by [InitProvider]; tests build
// their own with [NewMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fluentia metrics.
const meterName = "github.com/MrWong99/fluentia"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// AssessmentDuration tracks end-to-end final assessment latency. Use with
	// attribute.String("tier", ...).
	AssessmentDuration metric.Float64Histogram

	// AIDuration tracks a single AI provider assessment call. Use with
	// attribute.String("provider", ...).
	AIDuration metric.Float64Histogram

	// InterimMatchDuration tracks real-time interim matching latency.
	InterimMatchDuration metric.Float64Histogram

	// AssessmentScore is the distribution of overall scores by tier.
	AssessmentScore metric.Float64Histogram

	// --- Counters ---

	// Assessments counts finished assessments by the tier that produced them.
	Assessments metric.Int64Counter

	// ProviderRequests counts AI provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts AI provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Use with
	// attributes attribute.String("provider", ...), attribute.String("to", ...)
	CircuitTransitions metric.Int64Counter

	// StoreErrors counts failed persistence operations by backend and op.
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for calls
// that may include a network round trip to an AI provider.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// interimBuckets covers the sub-millisecond to tens-of-milliseconds range the
// interim matcher must stay within.
var interimBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// scoreBuckets splits the 0-100 score range into the feedback bands.
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AssessmentDuration, err = m.Float64Histogram("fluentia.assessment.duration",
		metric.WithDescription("Latency of a final assessment across all tiers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AIDuration, err = m.Float64Histogram("fluentia.ai.duration",
		metric.WithDescription("Latency of a single AI provider assessment call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InterimMatchDuration, err = m.Float64Histogram("fluentia.interim.duration",
		metric.WithDescription("Latency of matching one interim transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(interimBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssessmentScore, err = m.Float64Histogram("fluentia.assessment.score",
		metric.WithDescription("Overall score of finished assessments."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Assessments, err = m.Int64Counter("fluentia.assessments",
		metric.WithDescription("Total final assessments by producing tier."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("fluentia.provider.requests",
		metric.WithDescription("Total AI provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("fluentia.provider.errors",
		metric.WithDescription("Total AI provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("fluentia.circuit.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and target state."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("fluentia.store.errors",
		metric.WithDescription("Failed persistence operations by backend and operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("fluentia.active_sessions",
		metric.WithDescription("Number of open streaming sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("fluentia.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the Prometheus-backed provider. Panics if
// instrument creation fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAssessment records one finished assessment produced by tier.
func (m *Metrics) RecordAssessment(ctx context.Context, tier string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("tier", tier))
	m.Assessments.Add(ctx, 1, attrs)
	m.AssessmentDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordScore records the overall score of an assessment produced by tier.
func (m *Metrics) RecordScore(ctx context.Context, tier string, score float64) {
	m.AssessmentScore.Record(ctx, score, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordProviderRequest records one AI provider call and its latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string, d time.Duration) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.AIDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordProviderError records an AI provider failure of the given kind
// (for example "timeout", "no_json", "implausible", "error").
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCircuitTransition records a circuit breaker moving to state to.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, provider, to string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("to", to),
		),
	)
}

// RecordStoreError records a failed persistence operation.
func (m *Metrics) RecordStoreError(ctx context.Context, backend, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}
