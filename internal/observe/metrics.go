// Package observe provides the observability primitives of tikun:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and the
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// a Prometheus exporter bridge set up by [InitProvider]. [DefaultMetrics]
// returns a package-level instance; tests should build their own with
// [NewMetrics] and a private [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tikunlabs/tikun"

// Correction methods used as the "method" attribute.
const (
	MethodPhrase = "phrase"
	MethodLLM    = "llm"
)

// Metrics holds the metric instruments of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// CorrectDuration tracks the deterministic phrase stage.
	CorrectDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// Corrections counts substitutions applied. Attribute: method.
	Corrections metric.Int64Counter

	// Reverted counts LLM edits undone by strict verification.
	Reverted metric.Int64Counter

	// ProviderRequests counts provider calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// CustomRuleOps counts custom rule store operations. Attributes: op, status.
	CustomRuleOps metric.Int64Counter

	// DictionaryRules is the number of rules in the active dictionary.
	DictionaryRules metric.Int64Gauge

	// InFlight is the number of HTTP requests being served.
	InFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP latency. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, spanning in-process
// matching (sub-millisecond) up to slow LLM rewrites.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CorrectDuration, err = m.Float64Histogram("tikun.correct.duration",
		metric.WithDescription("Latency of the phrase correction stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("tikun.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("tikun.corrections",
		metric.WithDescription("Substitutions applied, by method."),
	); err != nil {
		return nil, err
	}
	if met.Reverted, err = m.Int64Counter("tikun.naturalize.reverted",
		metric.WithDescription("Undeclared LLM edits reverted by strict verification."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("tikun.provider.requests",
		metric.WithDescription("Provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("tikun.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CustomRuleOps, err = m.Int64Counter("tikun.custom_rules.ops",
		metric.WithDescription("Custom rule store operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.DictionaryRules, err = m.Int64Gauge("tikun.dictionary.rules",
		metric.WithDescription("Number of rules in the active dictionary."),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("tikun.http.in_flight",
		metric.WithDescription("HTTP requests currently being served."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("tikun.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCorrections adds n to the corrections counter for method. n <= 0 is
// ignored.
func (m *Metrics) RecordCorrections(ctx context.Context, method string, n int) {
	if n <= 0 {
		return
	}
	m.Corrections.Add(ctx, int64(n), metric.WithAttributes(attribute.String("method", method)))
}

// RecordProviderRequest increments the provider request counter.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCustomRuleOp increments the custom rule operation counter.
func (m *Metrics) RecordCustomRuleOp(ctx context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CustomRuleOps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}
